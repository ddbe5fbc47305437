package model

import "math"

// EditorState is every toggle the QR editor shows. It keeps values the
// descriptor does not need (the second gradient color while in solid mode,
// the corner pickers while "matches foreground" is on) so switching modes
// back and forth does not lose what the operator picked.
type EditorState struct {
	Size             int                  `json:"size"`
	Margin           int                  `json:"margin"`
	ModuleShape      ModuleShape          `json:"dotsType"`
	OuterCornerShape OuterCornerShape     `json:"cornersSquareType"`
	InnerCornerShape InnerCornerShape     `json:"cornersDotType"`
	ErrorCorrection  ErrorCorrectionLevel `json:"errorCorrection"`

	FgMode   ColorMode `json:"fgMode"`
	FgColor  string    `json:"fgColor"`
	FgColor2 string    `json:"fgColor2"`
	FgAngle  int       `json:"fgAngle"`

	BgTransparent bool      `json:"bgTransparent"`
	BgMode        ColorMode `json:"bgMode"`
	BgColor       string    `json:"bgColor"`
	BgColor2      string    `json:"bgColor2"`
	BgAngle       int       `json:"bgAngle"`

	Logo     string  `json:"logo"`
	LogoSize float64 `json:"logoSize"`

	OuterMatchesForeground bool   `json:"cornersSquareMatchFg"`
	InnerMatchesForeground bool   `json:"cornersDotMatchFg"`
	OuterCornerColor       string `json:"cornersSquareColor"`
	InnerCornerColor       string `json:"cornersDotColor"`
}

// DefaultEditorState is the state for a style with nothing persisted.
func DefaultEditorState() EditorState {
	return EditorState{
		Size:                   DefaultPreviewSizePx,
		Margin:                 DefaultMarginPx,
		ModuleShape:            DefaultModuleShape,
		OuterCornerShape:       DefaultOuterCornerShape,
		InnerCornerShape:       DefaultInnerCornerShape,
		ErrorCorrection:        DefaultErrorCorrection,
		FgMode:                 ColorModeSolid,
		FgColor:                DefaultForegroundHex,
		FgColor2:               DefaultForeground2Hex,
		BgMode:                 ColorModeSolid,
		BgColor:                DefaultBackgroundHex,
		BgColor2:               DefaultBackground2Hex,
		LogoSize:               DefaultLogoSizeRatio,
		OuterMatchesForeground: true,
		InnerMatchesForeground: true,
		OuterCornerColor:       DefaultForegroundHex,
		InnerCornerColor:       DefaultForeground2Hex,
	}
}

// NewLinkEditorState is the "reset appearance" state of the create flow.
func NewLinkEditorState(previewPx int) EditorState {
	s := DefaultEditorState()
	s.Size = previewPx
	return s
}

// Descriptor builds the StyleDescriptor the editor currently shows.
func (s EditorState) Descriptor() StyleDescriptor {
	d := StyleDescriptor{
		PreviewSizePx:    s.Size,
		MarginPx:         s.Margin,
		LogoSizeRatio:    s.LogoSize,
		ModuleShape:      s.ModuleShape,
		OuterCornerShape: s.OuterCornerShape,
		InnerCornerShape: s.InnerCornerShape,
		ErrorCorrection:  s.ErrorCorrection,
	}

	if s.FgMode == ColorModeLinear {
		d.Foreground = LinearGradient(s.FgColor, s.FgColor2, s.FgAngle)
	} else {
		d.Foreground = SolidColor(s.FgColor)
	}

	switch {
	case s.BgTransparent:
		d.Background = Transparent()
	case s.BgMode == ColorModeLinear:
		d.Background = LinearGradient(s.BgColor, s.BgColor2, s.BgAngle)
	default:
		d.Background = SolidColor(s.BgColor)
	}

	if s.Logo != "" {
		d.Logo = &Logo{SourceURI: s.Logo}
	}
	if !s.OuterMatchesForeground {
		d.OuterCornerColor = Explicit(NormalizeHex(s.OuterCornerColor))
	}
	if !s.InnerMatchesForeground {
		d.InnerCornerColor = Explicit(NormalizeHex(s.InnerCornerColor))
	}
	return d
}

// EditorPatch changes some editor toggles. Nil fields are left alone.
type EditorPatch struct {
	Size             *int     `json:"size,omitempty"`
	Margin           *int     `json:"margin,omitempty"`
	ModuleShape      *string  `json:"dotsType,omitempty"`
	OuterCornerShape *string  `json:"cornersSquareType,omitempty"`
	InnerCornerShape *string  `json:"cornersDotType,omitempty"`
	ErrorCorrection  *string  `json:"errorCorrection,omitempty"`
	FgMode           *string  `json:"fgMode,omitempty"`
	FgColor          *string  `json:"fgColor,omitempty"`
	FgColor2         *string  `json:"fgColor2,omitempty"`
	FgAngle          *int     `json:"fgAngle,omitempty"`
	BgTransparent    *bool    `json:"bgTransparent,omitempty"`
	BgMode           *string  `json:"bgMode,omitempty"`
	BgColor          *string  `json:"bgColor,omitempty"`
	BgColor2         *string  `json:"bgColor2,omitempty"`
	BgAngle          *int     `json:"bgAngle,omitempty"`
	Logo             *string  `json:"logo,omitempty"`
	LogoSize         *float64 `json:"logoSize,omitempty"`

	OuterMatchesForeground *bool   `json:"cornersSquareMatchFg,omitempty"`
	InnerMatchesForeground *bool   `json:"cornersDotMatchFg,omitempty"`
	OuterCornerColor       *string `json:"cornersSquareColor,omitempty"`
	InnerCornerColor       *string `json:"cornersDotColor,omitempty"`
}

// ApplyTo validates p and writes it into s. Nothing is written when an
// enum value is unknown.
func (p EditorPatch) ApplyTo(s *EditorState) error {
	next := *s

	if p.ModuleShape != nil {
		v := ModuleShape(*p.ModuleShape)
		if !v.Valid() {
			return NewValidationError("dotsType", "unknown dots type "+*p.ModuleShape)
		}
		next.ModuleShape = v
	}
	if p.OuterCornerShape != nil {
		v := OuterCornerShape(*p.OuterCornerShape)
		if !v.Valid() {
			return NewValidationError("cornersSquareType", "unknown corner square type "+*p.OuterCornerShape)
		}
		next.OuterCornerShape = v
	}
	if p.InnerCornerShape != nil {
		v := InnerCornerShape(*p.InnerCornerShape)
		if !v.Valid() {
			return NewValidationError("cornersDotType", "unknown corner dot type "+*p.InnerCornerShape)
		}
		next.InnerCornerShape = v
	}
	if p.ErrorCorrection != nil {
		v := ErrorCorrectionLevel(*p.ErrorCorrection)
		if !v.Valid() {
			return NewValidationError("errorCorrection", "error correction must be one of L, M, Q, H")
		}
		next.ErrorCorrection = v
	}
	if p.FgMode != nil {
		m, err := parseMode("fgMode", *p.FgMode)
		if err != nil {
			return err
		}
		next.FgMode = m
	}
	if p.BgMode != nil {
		m, err := parseMode("bgMode", *p.BgMode)
		if err != nil {
			return err
		}
		next.BgMode = m
	}

	if p.Size != nil {
		next.Size = *p.Size
	}
	if p.Margin != nil {
		next.Margin = min(max(*p.Margin, 0), MaxMarginPx)
	}
	if p.FgColor != nil {
		next.FgColor = NormalizeHex(*p.FgColor)
	}
	if p.FgColor2 != nil {
		next.FgColor2 = NormalizeHex(*p.FgColor2)
	}
	if p.FgAngle != nil {
		next.FgAngle = NormalizeRotation(*p.FgAngle)
	}
	if p.BgTransparent != nil {
		next.BgTransparent = *p.BgTransparent
	}
	if p.BgColor != nil {
		next.BgColor = NormalizeHex(*p.BgColor)
	}
	if p.BgColor2 != nil {
		next.BgColor2 = NormalizeHex(*p.BgColor2)
	}
	if p.BgAngle != nil {
		next.BgAngle = NormalizeRotation(*p.BgAngle)
	}
	if p.Logo != nil {
		next.Logo = *p.Logo
	}
	if p.LogoSize != nil {
		v := *p.LogoSize
		if math.IsNaN(v) {
			v = DefaultLogoSizeRatio
		}
		next.LogoSize = min(max(v, 0), MaxLogoSizeRatio)
	}
	if p.OuterMatchesForeground != nil {
		next.OuterMatchesForeground = *p.OuterMatchesForeground
	}
	if p.InnerMatchesForeground != nil {
		next.InnerMatchesForeground = *p.InnerMatchesForeground
	}
	if p.OuterCornerColor != nil {
		next.OuterCornerColor = NormalizeHex(*p.OuterCornerColor)
	}
	if p.InnerCornerColor != nil {
		next.InnerCornerColor = NormalizeHex(*p.InnerCornerColor)
	}

	*s = next
	return nil
}

func parseMode(field, v string) (ColorMode, error) {
	switch ColorMode(v) {
	case ColorModeSolid, ColorModeLinear:
		return ColorMode(v), nil
	}
	return "", NewValidationError(field, "mode must be solid or linear")
}
