package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sifan077/PowerQR/internal/app/model"
)

// encodeSVG writes sc as a standalone SVG document.
func encodeSVG(cfg model.RenderConfig, sc scene, logo *Logo) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`,
		sc.width, sc.height, sc.width, sc.height)

	var defs strings.Builder
	bgFill := svgFill("bg", cfg.Background, sc, &defs)
	fgFill := svgFill("fg", cfg.Modules, sc, &defs)
	if defs.Len() > 0 {
		buf.WriteString("<defs>")
		buf.WriteString(defs.String())
		buf.WriteString("</defs>")
	}

	if !cfg.Background.Transparent {
		fmt.Fprintf(&buf, `<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`, sc.width, sc.height, bgFill)
	}

	layers := []struct {
		layer layer
		fill  string
	}{
		{layerModules, fgFill},
		{layerOuterCorner, model.NormalizeHex(cfg.OuterCorners.Color)},
		{layerInnerCorner, model.NormalizeHex(cfg.InnerCorners.Color)},
	}
	for _, l := range layers {
		var d strings.Builder
		for _, s := range sc.shapes {
			if s.layer != l.layer {
				continue
			}
			writeBoxPath(&d, s.outer)
			if s.hole != nil {
				writeBoxPath(&d, *s.hole)
			}
		}
		if d.Len() == 0 {
			continue
		}
		fmt.Fprintf(&buf, `<path fill-rule="evenodd" fill="%s" d="%s"/>`, l.fill, d.String())
	}

	if logo != nil && sc.logoBox != nil && len(logo.Data) > 0 {
		b := sc.logoBox
		fmt.Fprintf(&buf, `<image x="%s" y="%s" width="%s" height="%s" href="data:%s;base64,%s"/>`,
			num(b.x), num(b.y), num(b.w), num(b.h), logo.MIME, base64.StdEncoding.EncodeToString(logo.Data))
	}

	buf.WriteString("</svg>")
	return buf.Bytes()
}

// svgFill returns the fill attribute for f, adding a gradient definition to
// defs when needed.
func svgFill(id string, f model.Fill, sc scene, defs *strings.Builder) string {
	if f.Transparent {
		return "none"
	}
	if f.Gradient == nil || len(f.Gradient.Stops) == 0 {
		return model.NormalizeHex(f.Color)
	}

	theta := float64(f.Gradient.Rotation) * math.Pi / 180
	cos, sin := math.Cos(theta), math.Sin(theta)
	w, h := float64(sc.width), float64(sc.height)
	half := (math.Abs(w*cos) + math.Abs(h*sin)) / 2

	fmt.Fprintf(defs, `<linearGradient id="%s" gradientUnits="userSpaceOnUse" x1="%s" y1="%s" x2="%s" y2="%s">`,
		id, num(w/2-cos*half), num(h/2-sin*half), num(w/2+cos*half), num(h/2+sin*half))
	for _, s := range f.Gradient.Stops {
		fmt.Fprintf(defs, `<stop offset="%s" stop-color="%s"/>`, num(s.Offset), model.NormalizeHex(s.Color))
	}
	defs.WriteString("</linearGradient>")
	return "url(#" + id + ")"
}

func writeBoxPath(d *strings.Builder, b box) {
	r := b.r
	right, bottom := b.x+b.w, b.y+b.h

	fmt.Fprintf(d, "M%s %sH%s", num(b.x+r[0]), num(b.y), num(right-r[1]))
	if r[1] > 0 {
		fmt.Fprintf(d, "A%s %s 0 0 1 %s %s", num(r[1]), num(r[1]), num(right), num(b.y+r[1]))
	}
	fmt.Fprintf(d, "V%s", num(bottom-r[2]))
	if r[2] > 0 {
		fmt.Fprintf(d, "A%s %s 0 0 1 %s %s", num(r[2]), num(r[2]), num(right-r[2]), num(bottom))
	}
	fmt.Fprintf(d, "H%s", num(b.x+r[3]))
	if r[3] > 0 {
		fmt.Fprintf(d, "A%s %s 0 0 1 %s %s", num(r[3]), num(r[3]), num(b.x), num(bottom-r[3]))
	}
	fmt.Fprintf(d, "V%s", num(b.y+r[0]))
	if r[0] > 0 {
		fmt.Fprintf(d, "A%s %s 0 0 1 %s %s", num(r[0]), num(r[0]), num(b.x+r[0]), num(b.y))
	}
	d.WriteString("Z")
}

func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
