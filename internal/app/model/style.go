package model

// ModuleShape is the shape of each data module.
type ModuleShape string

const (
	ModuleRounded       ModuleShape = "rounded"
	ModuleDots          ModuleShape = "dots"
	ModuleClassy        ModuleShape = "classy"
	ModuleClassyRounded ModuleShape = "classy-rounded"
	ModuleSquare        ModuleShape = "square"
	ModuleExtraRounded  ModuleShape = "extra-rounded"
)

// Valid reports whether s is a known module shape.
func (s ModuleShape) Valid() bool {
	switch s {
	case ModuleRounded, ModuleDots, ModuleClassy, ModuleClassyRounded, ModuleSquare, ModuleExtraRounded:
		return true
	}
	return false
}

// OuterCornerShape is the shape of the 7x7 finder ring.
type OuterCornerShape string

const (
	OuterCornerDot          OuterCornerShape = "dot"
	OuterCornerSquare       OuterCornerShape = "square"
	OuterCornerExtraRounded OuterCornerShape = "extra-rounded"
)

func (s OuterCornerShape) Valid() bool {
	switch s {
	case OuterCornerDot, OuterCornerSquare, OuterCornerExtraRounded:
		return true
	}
	return false
}

// InnerCornerShape is the shape of the 3x3 finder eye.
type InnerCornerShape string

const (
	InnerCornerDot    InnerCornerShape = "dot"
	InnerCornerSquare InnerCornerShape = "square"
)

func (s InnerCornerShape) Valid() bool {
	return s == InnerCornerDot || s == InnerCornerSquare
}

// ErrorCorrectionLevel is the QR recovery level.
type ErrorCorrectionLevel string

const (
	ErrorCorrectionL ErrorCorrectionLevel = "L"
	ErrorCorrectionM ErrorCorrectionLevel = "M"
	ErrorCorrectionQ ErrorCorrectionLevel = "Q"
	ErrorCorrectionH ErrorCorrectionLevel = "H"
)

func (l ErrorCorrectionLevel) Valid() bool {
	switch l {
	case ErrorCorrectionL, ErrorCorrectionM, ErrorCorrectionQ, ErrorCorrectionH:
		return true
	}
	return false
}

// Defaults applied wherever a style field is missing.
const (
	DefaultPreviewSizePx  = 300
	DefaultMarginPx       = 8
	DefaultLogoSizeRatio  = 0.2
	DefaultForegroundHex  = "#1f2937"
	DefaultForeground2Hex = "#111827"
	DefaultBackgroundHex  = "#ffffff"
	DefaultBackground2Hex = "#f3f4f6"

	DefaultModuleShape      = ModuleRounded
	DefaultOuterCornerShape = OuterCornerSquare
	DefaultInnerCornerShape = InnerCornerDot
	DefaultErrorCorrection  = ErrorCorrectionQ

	MaxMarginPx      = 32
	MaxLogoSizeRatio = 0.5
)

// Override is either inherited from somewhere else or set explicitly.
type Override[T any] struct {
	value T
	set   bool
}

// Inherit returns an unset override.
func Inherit[T any]() Override[T] {
	return Override[T]{}
}

// Explicit returns an override holding v.
func Explicit[T any](v T) Override[T] {
	return Override[T]{value: v, set: true}
}

// Get returns the explicit value and whether one is set.
func (o Override[T]) Get() (T, bool) {
	return o.value, o.set
}

// IsSet reports whether the override is explicit.
func (o Override[T]) IsSet() bool {
	return o.set
}

// Or returns the explicit value, or fallback when inherited.
func (o Override[T]) Or(fallback T) T {
	if o.set {
		return o.value
	}
	return fallback
}

// Logo points at the image placed in the middle of the code.
type Logo struct {
	SourceURI string
}

// StyleDescriptor is the declarative description of one QR code's look.
type StyleDescriptor struct {
	PreviewSizePx    int
	MarginPx         int
	Foreground       ColorSpec
	Background       ColorSpec
	Logo             *Logo
	LogoSizeRatio    float64
	ModuleShape      ModuleShape
	OuterCornerShape OuterCornerShape
	InnerCornerShape InnerCornerShape
	OuterCornerColor Override[string]
	InnerCornerColor Override[string]
	ErrorCorrection  ErrorCorrectionLevel
}

// DefaultStyle returns the style a freshly opened editor starts from.
func DefaultStyle() StyleDescriptor {
	return StyleDescriptor{
		PreviewSizePx:    DefaultPreviewSizePx,
		MarginPx:         DefaultMarginPx,
		Foreground:       SolidColor(DefaultForegroundHex),
		Background:       SolidColor(DefaultBackgroundHex),
		LogoSizeRatio:    DefaultLogoSizeRatio,
		ModuleShape:      DefaultModuleShape,
		OuterCornerShape: DefaultOuterCornerShape,
		InnerCornerShape: DefaultInnerCornerShape,
		ErrorCorrection:  DefaultErrorCorrection,
	}
}
