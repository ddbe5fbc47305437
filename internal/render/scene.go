package render

import (
	"math"

	"github.com/sifan077/PowerQR/internal/app/model"
)

// layer identifies which paint a shape is filled with.
type layer int

const (
	layerModules layer = iota
	layerOuterCorner
	layerInnerCorner
)

// box is a rectangle with per-corner radii (top-left, top-right,
// bottom-right, bottom-left), all in pixels.
type box struct {
	x, y, w, h float64
	r          [4]float64
}

func (b box) contains(px, py float64) bool {
	if px < b.x || py < b.y || px > b.x+b.w || py > b.y+b.h {
		return false
	}
	u, v := px-b.x, py-b.y
	switch {
	case b.r[0] > 0 && u < b.r[0] && v < b.r[0]:
		return within(u, v, b.r[0], b.r[0], b.r[0])
	case b.r[1] > 0 && u > b.w-b.r[1] && v < b.r[1]:
		return within(u, v, b.w-b.r[1], b.r[1], b.r[1])
	case b.r[2] > 0 && u > b.w-b.r[2] && v > b.h-b.r[2]:
		return within(u, v, b.w-b.r[2], b.h-b.r[2], b.r[2])
	case b.r[3] > 0 && u < b.r[3] && v > b.h-b.r[3]:
		return within(u, v, b.r[3], b.h-b.r[3], b.r[3])
	}
	return true
}

func within(u, v, cx, cy, r float64) bool {
	du, dv := u-cx, v-cy
	return du*du+dv*dv <= r*r
}

// shape is what gets painted: a box, optionally with a box-shaped hole.
type shape struct {
	layer layer
	outer box
	hole  *box
}

func (s shape) contains(px, py float64) bool {
	if !s.outer.contains(px, py) {
		return false
	}
	return s.hole == nil || !s.hole.contains(px, py)
}

// scene is the resolved geometry of one symbol at one size. Raster and SVG
// output are both drawn from it.
type scene struct {
	width, height int
	cell          float64
	originX       float64
	originY       float64
	qrSize        float64
	shapes        []shape
	logoBox       *box
}

// moduleRadii gives corner radii as a fraction of the module size.
func moduleRadii(s model.ModuleShape) [4]float64 {
	switch s {
	case model.ModuleSquare:
		return [4]float64{}
	case model.ModuleDots:
		return [4]float64{0.5, 0.5, 0.5, 0.5}
	case model.ModuleExtraRounded:
		return [4]float64{0.4, 0.4, 0.4, 0.4}
	case model.ModuleClassy:
		return [4]float64{0.5, 0, 0.5, 0}
	case model.ModuleClassyRounded:
		return [4]float64{0.5, 0.2, 0.5, 0.2}
	default: // rounded
		return [4]float64{0.25, 0.25, 0.25, 0.25}
	}
}

func uniform(r float64) [4]float64 {
	return [4]float64{r, r, r, r}
}

func scaled(r [4]float64, k float64) [4]float64 {
	return [4]float64{r[0] * k, r[1] * k, r[2] * k, r[3] * k}
}

// isFinder reports whether module (x, y) lies in one of the three 7x7
// finder patterns of an n-module symbol.
func isFinder(x, y, n int) bool {
	inTop := y < 7
	inLeft := x < 7
	return (inTop && inLeft) || (inTop && x >= n-7) || (inLeft && y >= n-7)
}

// buildScene lays out matrix on a cfg.Width x cfg.Height canvas.
func buildScene(cfg model.RenderConfig, matrix [][]bool, logoW, logoH int) scene {
	n := len(matrix)
	side := float64(min(cfg.Width, cfg.Height))
	margin := float64(cfg.MarginPx)
	if 2*margin >= side {
		margin = 0
	}
	qrSize := side - 2*margin
	cell := qrSize / float64(n)

	sc := scene{
		width:   cfg.Width,
		height:  cfg.Height,
		cell:    cell,
		originX: (float64(cfg.Width) - qrSize) / 2,
		originY: (float64(cfg.Height) - qrSize) / 2,
		qrSize:  qrSize,
	}

	radii := scaled(moduleRadii(cfg.ModuleShape), cell)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			if !matrix[y][x] || isFinder(x, y, n) {
				continue
			}
			sc.shapes = append(sc.shapes, shape{
				layer: layerModules,
				outer: box{
					x: sc.originX + float64(x)*cell,
					y: sc.originY + float64(y)*cell,
					w: cell,
					h: cell,
					r: radii,
				},
			})
		}
	}

	for _, at := range [][2]int{{0, 0}, {n - 7, 0}, {0, n - 7}} {
		fx := sc.originX + float64(at[0])*cell
		fy := sc.originY + float64(at[1])*cell
		sc.shapes = append(sc.shapes, finderRing(cfg.OuterCorners.Shape, fx, fy, cell))
		sc.shapes = append(sc.shapes, finderEye(cfg.InnerCorners.Shape, fx, fy, cell))
	}

	if logoW > 0 && logoH > 0 && cfg.LogoSizeRatio > 0 {
		limit := qrSize * cfg.LogoSizeRatio
		k := math.Min(limit/float64(logoW), limit/float64(logoH))
		w, h := float64(logoW)*k, float64(logoH)*k
		sc.logoBox = &box{
			x: float64(cfg.Width)/2 - w/2,
			y: float64(cfg.Height)/2 - h/2,
			w: w,
			h: h,
		}
	}
	return sc
}

func finderRing(kind string, x, y, cell float64) shape {
	outer := box{x: x, y: y, w: 7 * cell, h: 7 * cell}
	hole := box{x: x + cell, y: y + cell, w: 5 * cell, h: 5 * cell}
	switch model.OuterCornerShape(kind) {
	case model.OuterCornerDot:
		outer.r = uniform(3.5 * cell)
		hole.r = uniform(2.5 * cell)
	case model.OuterCornerExtraRounded:
		outer.r = uniform(2.5 * cell)
		hole.r = uniform(1.5 * cell)
	}
	return shape{layer: layerOuterCorner, outer: outer, hole: &hole}
}

func finderEye(kind string, x, y, cell float64) shape {
	eye := box{x: x + 2*cell, y: y + 2*cell, w: 3 * cell, h: 3 * cell}
	if model.InnerCornerShape(kind) == model.InnerCornerDot {
		eye.r = uniform(1.5 * cell)
	}
	return shape{layer: layerInnerCorner, outer: eye}
}
