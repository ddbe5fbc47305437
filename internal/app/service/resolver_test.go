package service

import (
	"testing"

	"github.com/sifan077/PowerQR/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_CornersFollowForeground(t *testing.T) {
	r := NewResolver(DefaultSizingPolicy())
	desc := model.DefaultStyle()

	desc.Foreground = model.SolidColor("#FF0000")
	cfg := r.Resolve("https://s.example.com/a", desc)
	assert.Equal(t, "#ff0000", cfg.OuterCorners.Color)
	assert.Equal(t, "#ff0000", cfg.InnerCorners.Color)

	// Changing the foreground later moves inherited corners with it.
	desc.Foreground = model.LinearGradient("#00ff00", "#0000ff", 90)
	cfg = r.Resolve("https://s.example.com/a", desc)
	assert.Equal(t, "#00ff00", cfg.OuterCorners.Color)
	assert.Equal(t, "#0000ff", cfg.InnerCorners.Color)
}

func TestResolver_ExplicitCornerOverride(t *testing.T) {
	r := NewResolver(DefaultSizingPolicy())
	desc := model.DefaultStyle()
	desc.OuterCornerColor = model.Explicit("ABC")

	desc.Foreground = model.SolidColor("#123456")
	cfg := r.Resolve("x", desc)
	assert.Equal(t, "#aabbcc", cfg.OuterCorners.Color)
	assert.Equal(t, "#123456", cfg.InnerCorners.Color)

	desc.Foreground = model.SolidColor("#654321")
	cfg = r.Resolve("x", desc)
	assert.Equal(t, "#aabbcc", cfg.OuterCorners.Color)
	assert.Equal(t, "#654321", cfg.InnerCorners.Color)
}

func TestResolver_TransparentBackgroundWins(t *testing.T) {
	r := NewResolver(DefaultSizingPolicy())
	desc := model.DefaultStyle()
	desc.Background = model.Transparent()

	cfg := r.Resolve("x", desc)
	assert.True(t, cfg.Background.Transparent)
	assert.Nil(t, cfg.Background.Gradient)
	assert.Empty(t, cfg.Background.Color)
}

func TestResolver_InheritedEqualsExplicitForeground(t *testing.T) {
	r := NewResolver(DefaultSizingPolicy())
	for name, fg := range map[string]model.ColorSpec{
		"solid":    model.SolidColor("#336699"),
		"gradient": model.LinearGradient("#00ff00", "#0000ff", 135),
	} {
		t.Run(name, func(t *testing.T) {
			inherited := model.DefaultStyle()
			inherited.Foreground = fg

			explicit := inherited
			explicit.OuterCornerColor = model.Explicit(fg.Primary())
			explicit.InnerCornerColor = model.Explicit(fg.Secondary())

			assert.Equal(t, r.Resolve("x", inherited), r.Resolve("x", explicit))
		})
	}
}

func TestResolver_TransparencyBeatsBackgroundMode(t *testing.T) {
	r := NewResolver(DefaultSizingPolicy())
	state := model.DefaultEditorState()
	state.BgMode = model.ColorModeLinear
	state.BgColor = "#ff0000"
	state.BgColor2 = "#00ff00"
	state.BgAngle = 45
	state.BgTransparent = true

	cfg := r.Resolve("x", state.Descriptor())
	assert.Equal(t, model.Fill{Transparent: true}, cfg.Background)

	state.BgTransparent = false
	cfg = r.Resolve("x", state.Descriptor())
	require.NotNil(t, cfg.Background.Gradient)
	assert.False(t, cfg.Background.Transparent)
}

func TestResolver_GradientFill(t *testing.T) {
	r := NewResolver(DefaultSizingPolicy())
	desc := model.DefaultStyle()
	desc.Foreground = model.LinearGradient("#ff0000", "#0000ff", -90)

	cfg := r.Resolve("x", desc)
	require.NotNil(t, cfg.Modules.Gradient)
	assert.Equal(t, 270, cfg.Modules.Gradient.Rotation)
	assert.Equal(t, []model.ColorStop{{Offset: 0, Color: "#ff0000"}, {Offset: 1, Color: "#0000ff"}}, cfg.Modules.Gradient.Stops)
}

func TestResolver_DefaultsAndClamps(t *testing.T) {
	r := NewResolver(DefaultSizingPolicy())
	cfg := r.Resolve("x", model.StyleDescriptor{PreviewSizePx: 9000, MarginPx: 99, LogoSizeRatio: 3})

	assert.Equal(t, PreviewMaxPx, cfg.Width)
	assert.Equal(t, cfg.Width, cfg.Height)
	assert.Equal(t, model.MaxMarginPx, cfg.MarginPx)
	assert.Equal(t, model.MaxLogoSizeRatio, cfg.LogoSizeRatio)
	assert.Equal(t, model.DefaultModuleShape, cfg.ModuleShape)
	assert.Equal(t, model.DefaultErrorCorrection, cfg.ErrorCorrection)
	assert.Equal(t, model.DefaultForegroundHex, cfg.Modules.Color)
	assert.Equal(t, model.DefaultBackgroundHex, cfg.Background.Color)
}

func TestResolver_ExportSizeIndependentOfPreview(t *testing.T) {
	r := NewResolver(DefaultSizingPolicy())
	desc := model.DefaultStyle()
	desc.PreviewSizePx = 320

	preview := r.Resolve("x", desc)
	export := r.ResolveForExport("x", desc, 2048)
	assert.Equal(t, 320, preview.Width)
	assert.Equal(t, 2048, export.Width)

	// Resolving for export leaves the preview config untouched.
	assert.Equal(t, 320, r.Resolve("x", desc).Width)
}
