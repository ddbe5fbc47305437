package render

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/sifan077/PowerQR/internal/app/model"
	xdraw "golang.org/x/image/draw"
)

// subsamples per pixel axis used for edge coverage.
const subsamples = 2

// rasterize paints sc onto a new canvas. It checks ctx between shapes so a
// cancelled export stops early.
func rasterize(ctx context.Context, cfg model.RenderConfig, sc scene, logo image.Image) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, sc.width, sc.height))

	if bg, ok := fillPaint(cfg.Background, sc.width, sc.height); ok {
		for y := 0; y < sc.height; y++ {
			for x := 0; x < sc.width; x++ {
				img.SetRGBA(x, y, bg(float64(x)+0.5, float64(y)+0.5))
			}
		}
	}

	paints := map[layer]paint{
		layerOuterCorner: solidPaint(cfg.OuterCorners.Color),
		layerInnerCorner: solidPaint(cfg.InnerCorners.Color),
	}
	if p, ok := fillPaint(cfg.Modules, sc.width, sc.height); ok {
		paints[layerModules] = p
	} else {
		paints[layerModules] = solidPaint(model.DefaultForegroundHex)
	}

	for i, s := range sc.shapes {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		fillShape(img, s, paints[s.layer])
	}

	if logo != nil && sc.logoBox != nil {
		b := sc.logoBox
		dst := image.Rect(
			int(math.Round(b.x)), int(math.Round(b.y)),
			int(math.Round(b.x+b.w)), int(math.Round(b.y+b.h)),
		)
		xdraw.CatmullRom.Scale(img, dst, logo, logo.Bounds(), xdraw.Over, nil)
	}
	return img, nil
}

func fillShape(img *image.RGBA, s shape, p paint) {
	b := s.outer
	x0 := max(int(math.Floor(b.x)), 0)
	y0 := max(int(math.Floor(b.y)), 0)
	x1 := min(int(math.Ceil(b.x+b.w)), img.Rect.Dx())
	y1 := min(int(math.Ceil(b.y+b.h)), img.Rect.Dy())

	step := 1.0 / subsamples
	total := subsamples * subsamples
	for py := y0; py < y1; py++ {
		for px := x0; px < x1; px++ {
			hits := 0
			for sy := 0; sy < subsamples; sy++ {
				for sx := 0; sx < subsamples; sx++ {
					if s.contains(float64(px)+(float64(sx)+0.5)*step, float64(py)+(float64(sy)+0.5)*step) {
						hits++
					}
				}
			}
			if hits == 0 {
				continue
			}
			src := p(float64(px)+0.5, float64(py)+0.5)
			blend(img, px, py, src, float64(hits)/float64(total))
		}
	}
}

// blend composites src with coverage a over the existing pixel.
func blend(img *image.RGBA, x, y int, src color.RGBA, a float64) {
	if a >= 1 {
		img.SetRGBA(x, y, src)
		return
	}
	dst := img.RGBAAt(x, y)
	mix := func(s, d uint8) uint8 {
		return uint8(math.Round(float64(s)*a + float64(d)*(1-a)))
	}
	img.SetRGBA(x, y, color.RGBA{
		R: mix(src.R, dst.R),
		G: mix(src.G, dst.G),
		B: mix(src.B, dst.B),
		A: mix(src.A, dst.A),
	})
}

// flatten composites img over white, for encoders without alpha.
func flatten(img *image.RGBA) *image.RGBA {
	out := image.NewRGBA(img.Rect)
	for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
		for x := img.Rect.Min.X; x < img.Rect.Max.X; x++ {
			c := img.RGBAAt(x, y)
			inv := 255 - uint16(c.A)
			out.SetRGBA(x, y, color.RGBA{
				R: uint8(uint16(c.R) + inv),
				G: uint8(uint16(c.G) + inv),
				B: uint8(uint16(c.B) + inv),
				A: 0xff,
			})
		}
	}
	return out
}
