package model

import (
	"regexp"
	"strings"
)

// ColorMode tags the variant held by a ColorSpec.
type ColorMode string

const (
	ColorModeSolid  ColorMode = "solid"
	ColorModeLinear ColorMode = "linear"
)

// TransparentColor is the background sentinel stored as a solid color.
const TransparentColor = "transparent"

// FallbackHex is what NormalizeHex returns for anything it cannot read.
const FallbackHex = "#000000"

var hexPattern = regexp.MustCompile(`^#[0-9a-f]{6}$`)

// NormalizeHex turns loosely formatted input into a lowercase #rrggbb value.
// It never fails: unreadable input becomes FallbackHex.
func NormalizeHex(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return FallbackHex
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	if len(s) == 4 {
		s = string([]byte{'#', s[1], s[1], s[2], s[2], s[3], s[3]})
	}
	if !hexPattern.MatchString(s) {
		return FallbackHex
	}
	return s
}

// NormalizeRotation folds any angle into [0,360).
func NormalizeRotation(deg int) int {
	return ((deg % 360) + 360) % 360
}

// ColorSpec is either a solid color or a two-stop linear gradient.
// Build values with SolidColor, LinearGradient or Transparent so the
// normalization invariants hold.
type ColorSpec struct {
	Mode     ColorMode
	Color    string
	Start    string
	End      string
	Rotation int
}

// SolidColor returns a normalized solid ColorSpec.
func SolidColor(hex string) ColorSpec {
	return ColorSpec{Mode: ColorModeSolid, Color: NormalizeHex(hex)}
}

// LinearGradient returns a normalized linear gradient ColorSpec.
func LinearGradient(start, end string, rotation int) ColorSpec {
	return ColorSpec{
		Mode:     ColorModeLinear,
		Start:    NormalizeHex(start),
		End:      NormalizeHex(end),
		Rotation: NormalizeRotation(rotation),
	}
}

// Transparent returns the background-only transparent sentinel.
func Transparent() ColorSpec {
	return ColorSpec{Mode: ColorModeSolid, Color: TransparentColor}
}

// IsTransparent reports whether c is the transparent sentinel.
func (c ColorSpec) IsTransparent() bool {
	return c.Mode == ColorModeSolid && c.Color == TransparentColor
}

// IsGradient reports whether c is a linear gradient.
func (c ColorSpec) IsGradient() bool {
	return c.Mode == ColorModeLinear
}

// Primary is the solid color, or the gradient start.
func (c ColorSpec) Primary() string {
	if c.IsGradient() {
		return c.Start
	}
	return c.Color
}

// Secondary is the solid color, or the gradient end.
func (c ColorSpec) Secondary() string {
	if c.IsGradient() {
		return c.End
	}
	return c.Color
}

// Normalized re-applies the ColorSpec invariants. A zero value stays zero so
// callers can still detect "unset".
func (c ColorSpec) Normalized() ColorSpec {
	switch {
	case c.Mode == "":
		return ColorSpec{}
	case c.IsTransparent():
		return Transparent()
	case c.IsGradient():
		return LinearGradient(c.Start, c.End, c.Rotation)
	default:
		return SolidColor(c.Color)
	}
}
