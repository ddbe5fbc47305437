package render

import (
	"image/color"
	"math"
	"strconv"

	"github.com/sifan077/PowerQR/internal/app/model"
)

// paint returns the premultiplied color of a fill at a canvas point.
type paint func(x, y float64) color.RGBA

func parseHex(hex string) color.RGBA {
	h := model.NormalizeHex(hex)
	v, _ := strconv.ParseUint(h[1:], 16, 32)
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

func solidPaint(hex string) paint {
	c := parseHex(hex)
	return func(float64, float64) color.RGBA { return c }
}

// fillPaint builds the paint for f over a width x height canvas. The second
// return is false for a transparent fill.
func fillPaint(f model.Fill, width, height int) (paint, bool) {
	if f.Transparent {
		return nil, false
	}
	if f.Gradient == nil || len(f.Gradient.Stops) == 0 {
		return solidPaint(f.Color), true
	}
	return gradientPaint(*f.Gradient, width, height), true
}

// gradientPaint projects each point on the gradient axis, rotated clockwise
// by Rotation degrees from left-to-right and centred on the canvas.
func gradientPaint(g model.Gradient, width, height int) paint {
	stops := make([]struct {
		at float64
		c  color.RGBA
	}, len(g.Stops))
	for i, s := range g.Stops {
		stops[i].at = s.Offset
		stops[i].c = parseHex(s.Color)
	}

	theta := float64(g.Rotation) * math.Pi / 180
	cos, sin := math.Cos(theta), math.Sin(theta)
	w, h := float64(width), float64(height)
	span := math.Abs(w*cos) + math.Abs(h*sin)
	if span == 0 {
		span = 1
	}
	cx, cy := w/2, h/2

	return func(x, y float64) color.RGBA {
		t := ((x-cx)*cos+(y-cy)*sin)/span + 0.5
		t = math.Max(0, math.Min(1, t))
		if t <= stops[0].at {
			return stops[0].c
		}
		for i := 1; i < len(stops); i++ {
			if t <= stops[i].at {
				a, b := stops[i-1], stops[i]
				k := (t - a.at) / math.Max(b.at-a.at, 1e-9)
				return lerp(a.c, b.c, k)
			}
		}
		return stops[len(stops)-1].c
	}
}

func lerp(a, b color.RGBA, k float64) color.RGBA {
	mix := func(p, q uint8) uint8 {
		return uint8(math.Round(float64(p) + (float64(q)-float64(p))*k))
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: mix(a.A, b.A)}
}
