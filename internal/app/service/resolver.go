package service

import (
	"math"

	"github.com/sifan077/PowerQR/internal/app/model"
)

// Resolver turns a possibly partial StyleDescriptor into a RenderConfig.
// It holds no state between calls: every Resolve re-derives the corner
// colors from the current foreground.
type Resolver struct {
	sizing SizingPolicy
}

// NewResolver returns a Resolver that clamps previews with sizing.
func NewResolver(sizing SizingPolicy) *Resolver {
	return &Resolver{sizing: sizing.Normalized()}
}

// Sizing exposes the policy the resolver clamps with.
func (r *Resolver) Sizing() SizingPolicy {
	return r.sizing
}

// Resolve produces the preview configuration for data drawn with desc.
func (r *Resolver) Resolve(data string, desc model.StyleDescriptor) model.RenderConfig {
	d := CompleteStyle(desc)
	size := r.sizing.Preview(d.PreviewSizePx)
	outer, inner := CornerColors(d)

	logo := ""
	if d.Logo != nil {
		logo = d.Logo.SourceURI
	}

	return model.RenderConfig{
		Data:            data,
		Width:           size,
		Height:          size,
		MarginPx:        d.MarginPx,
		ErrorCorrection: d.ErrorCorrection,
		LogoURI:         logo,
		LogoSizeRatio:   d.LogoSizeRatio,
		ModuleShape:     d.ModuleShape,
		Modules:         ResolveFill(d.Foreground),
		OuterCorners:    model.CornerPaint{Shape: string(d.OuterCornerShape), Color: outer},
		InnerCorners:    model.CornerPaint{Shape: string(d.InnerCornerShape), Color: inner},
		Background:      ResolveBackground(d.Background),
	}
}

// ResolveForExport resolves desc and substitutes the clamped export size.
func (r *Resolver) ResolveForExport(data string, desc model.StyleDescriptor, exportPx int) model.RenderConfig {
	return r.Resolve(data, desc).WithSize(r.sizing.Export(exportPx))
}

// CornerColors applies the inherit-unless-overridden cascade: the outer ring
// follows the foreground's primary color, the inner eye its secondary color.
func CornerColors(desc model.StyleDescriptor) (outer, inner string) {
	fg := desc.Foreground
	outer = desc.OuterCornerColor.Or(fg.Primary())
	inner = desc.InnerCornerColor.Or(fg.Secondary())
	return model.NormalizeHex(outer), model.NormalizeHex(inner)
}

// ResolveFill maps a foreground ColorSpec to a flat color or a two-stop gradient.
func ResolveFill(c model.ColorSpec) model.Fill {
	if c.IsGradient() {
		return model.Fill{
			Gradient: &model.Gradient{
				Rotation: c.Rotation,
				Stops: []model.ColorStop{
					{Offset: 0, Color: c.Start},
					{Offset: 1, Color: c.End},
				},
			},
		}
	}
	return model.Fill{Color: c.Color}
}

// ResolveBackground is ResolveFill with the transparent sentinel taking
// precedence over any configured mode.
func ResolveBackground(c model.ColorSpec) model.Fill {
	if c.IsTransparent() {
		return model.Fill{Transparent: true}
	}
	return ResolveFill(c)
}

// CompleteStyle fills unset fields with defaults, normalizes colors and
// clamps margin and logo ratio. Zero numeric fields other than size and logo
// ratio are meaningful (margin 0) and are kept.
func CompleteStyle(desc model.StyleDescriptor) model.StyleDescriptor {
	d := desc

	if d.PreviewSizePx <= 0 {
		d.PreviewSizePx = model.DefaultPreviewSizePx
	}
	d.MarginPx = clamp(d.MarginPx, 0, model.MaxMarginPx)

	d.Foreground = d.Foreground.Normalized()
	if d.Foreground.Mode == "" || d.Foreground.IsTransparent() {
		d.Foreground = model.SolidColor(model.DefaultForegroundHex)
	}
	d.Background = d.Background.Normalized()
	if d.Background.Mode == "" {
		d.Background = model.SolidColor(model.DefaultBackgroundHex)
	}

	if d.Logo != nil && d.Logo.SourceURI == "" {
		d.Logo = nil
	}
	if math.IsNaN(d.LogoSizeRatio) || d.LogoSizeRatio < 0 {
		d.LogoSizeRatio = 0
	}
	if d.LogoSizeRatio > model.MaxLogoSizeRatio {
		d.LogoSizeRatio = model.MaxLogoSizeRatio
	}

	if !d.ModuleShape.Valid() {
		d.ModuleShape = model.DefaultModuleShape
	}
	if !d.OuterCornerShape.Valid() {
		d.OuterCornerShape = model.DefaultOuterCornerShape
	}
	if !d.InnerCornerShape.Valid() {
		d.InnerCornerShape = model.DefaultInnerCornerShape
	}
	if !d.ErrorCorrection.Valid() {
		d.ErrorCorrection = model.DefaultErrorCorrection
	}

	if v, ok := d.OuterCornerColor.Get(); ok {
		d.OuterCornerColor = model.Explicit(model.NormalizeHex(v))
	}
	if v, ok := d.InnerCornerColor.Get(); ok {
		d.InnerCornerColor = model.Explicit(model.NormalizeHex(v))
	}
	return d
}
