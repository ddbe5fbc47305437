package service

// Size bounds for the two rendering domains.
const (
	PreviewMinPx = 100
	PreviewMaxPx = 350
	ExportMinPx  = 256
	ExportMaxPx  = 4000

	// EngineMinPx is the smallest size the raster engine is asked to draw.
	EngineMinPx = 100

	DefaultExportSizePx     = 1024
	DefaultNewLinkPreviewPx = 320
)

// SizingPolicy keeps preview and export sizes in separate domains. A preview
// size never feeds the export clamp and vice versa.
type SizingPolicy struct {
	PreviewMin int
	PreviewMax int
	ExportMin  int
	ExportMax  int
}

// DefaultSizingPolicy returns the standard bounds.
func DefaultSizingPolicy() SizingPolicy {
	return SizingPolicy{
		PreviewMin: PreviewMinPx,
		PreviewMax: PreviewMaxPx,
		ExportMin:  ExportMinPx,
		ExportMax:  ExportMaxPx,
	}
}

// Normalized repairs zero or inverted bounds, and keeps the export floor at
// or above what the engine can draw.
func (p SizingPolicy) Normalized() SizingPolicy {
	def := DefaultSizingPolicy()
	if p.PreviewMin <= 0 {
		p.PreviewMin = def.PreviewMin
	}
	if p.PreviewMax < p.PreviewMin {
		p.PreviewMax = max(def.PreviewMax, p.PreviewMin)
	}
	if p.ExportMin <= 0 {
		p.ExportMin = def.ExportMin
	}
	if p.ExportMin < EngineMinPx {
		p.ExportMin = EngineMinPx
	}
	if p.ExportMax < p.ExportMin {
		p.ExportMax = max(def.ExportMax, p.ExportMin)
	}
	return p
}

// Preview clamps a requested on-screen size.
func (p SizingPolicy) Preview(requested int) int {
	return clamp(requested, p.PreviewMin, p.PreviewMax)
}

// Export clamps a requested export size.
func (p SizingPolicy) Export(requested int) int {
	return clamp(requested, p.ExportMin, p.ExportMax)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
