package model

// ColorStop is one stop of a linear gradient; Offset is in [0,1].
type ColorStop struct {
	Offset float64 `json:"offset"`
	Color  string  `json:"color"`
}

// Gradient is a resolved linear gradient.
type Gradient struct {
	Rotation int         `json:"rotation"`
	Stops    []ColorStop `json:"colorStops"`
}

// Fill is exactly one of: transparent, a flat color, or a gradient.
type Fill struct {
	Transparent bool      `json:"transparent,omitempty"`
	Color       string    `json:"color,omitempty"`
	Gradient    *Gradient `json:"gradient,omitempty"`
}

// CornerPaint is a resolved finder pattern part.
type CornerPaint struct {
	Shape string `json:"type"`
	Color string `json:"color"`
}

// RenderConfig is a fully resolved rendering configuration. Nothing in it is
// optional or inherited; engines draw it as-is.
type RenderConfig struct {
	Data            string               `json:"data"`
	Width           int                  `json:"width"`
	Height          int                  `json:"height"`
	MarginPx        int                  `json:"margin"`
	ErrorCorrection ErrorCorrectionLevel `json:"errorCorrectionLevel"`
	LogoURI         string               `json:"image,omitempty"`
	LogoSizeRatio   float64              `json:"imageSize"`
	ModuleShape     ModuleShape          `json:"dotsType"`
	Modules         Fill                 `json:"dots"`
	OuterCorners    CornerPaint          `json:"cornersSquare"`
	InnerCorners    CornerPaint          `json:"cornersDot"`
	Background      Fill                 `json:"background"`
}

// WithSize returns a copy of c drawn at px by px. Gradient stops are copied so
// the two configs share nothing mutable.
func (c RenderConfig) WithSize(px int) RenderConfig {
	out := c
	out.Width = px
	out.Height = px
	out.Modules = c.Modules.clone()
	out.Background = c.Background.clone()
	return out
}

func (f Fill) clone() Fill {
	if f.Gradient == nil {
		return f
	}
	g := *f.Gradient
	g.Stops = append([]ColorStop(nil), f.Gradient.Stops...)
	f.Gradient = &g
	return f
}

// ImageFormat is an export encoding.
type ImageFormat string

const (
	FormatPNG  ImageFormat = "png"
	FormatSVG  ImageFormat = "svg"
	FormatJPEG ImageFormat = "jpeg"
	FormatWEBP ImageFormat = "webp"
)

// ParseImageFormat accepts the four export formats; "jpg" is read as jpeg and
// empty input means png.
func ParseImageFormat(s string) (ImageFormat, error) {
	switch s {
	case "", "png":
		return FormatPNG, nil
	case "svg":
		return FormatSVG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "webp":
		return FormatWEBP, nil
	}
	return "", NewValidationError("format", "format must be one of png, svg, jpeg, webp")
}

// ContentType is the MIME type served for f.
func (f ImageFormat) ContentType() string {
	switch f {
	case FormatSVG:
		return "image/svg+xml"
	case FormatJPEG:
		return "image/jpeg"
	case FormatWEBP:
		return "image/webp"
	default:
		return "image/png"
	}
}
