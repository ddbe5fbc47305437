package service

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/sifan077/PowerQR/internal/app/model"
	"go.uber.org/zap"
)

// PersistedVersion is the qrinfo schema version written by ToPersisted.
const PersistedVersion = 1

// PersistedColor is the wire shape of a ColorSpec inside qrinfo.
type PersistedColor struct {
	Mode     string `json:"mode"`
	Color    string `json:"color,omitempty"`
	Color1   string `json:"color1,omitempty"`
	Color2   string `json:"color2,omitempty"`
	Rotation *int   `json:"rotation,omitempty"`
}

// PersistedStyle is the qrinfo object stored on a link record. Field names
// match what existing records already hold.
type PersistedStyle struct {
	Version            int            `json:"version"`
	Size               int            `json:"size"`
	Margin             int            `json:"margin"`
	Foreground         PersistedColor `json:"foreground"`
	Background         PersistedColor `json:"background"`
	Logo               string         `json:"logo,omitempty"`
	LogoSize           float64        `json:"logoSize"`
	DotsType           string         `json:"dotsType"`
	CornersSquareType  string         `json:"cornersSquareType"`
	CornersDotType     string         `json:"cornersDotType"`
	CornersSquareColor string         `json:"cornersSquareColor,omitempty"`
	CornersDotColor    string         `json:"cornersDotColor,omitempty"`
	ErrorCorrection    string         `json:"errorCorrection"`
}

// persistedInput mirrors PersistedStyle with every field optional so missing
// keys can be told apart from zero values.
type persistedInput struct {
	Version            *int                 `json:"version"`
	Size               *int                 `json:"size"`
	Margin             *int                 `json:"margin"`
	Foreground         *persistedColorInput `json:"foreground"`
	Background         *persistedColorInput `json:"background"`
	Logo               *string              `json:"logo"`
	LogoSize           *float64             `json:"logoSize"`
	DotsType           *string              `json:"dotsType"`
	CornersSquareType  *string              `json:"cornersSquareType"`
	CornersDotType     *string              `json:"cornersDotType"`
	CornersSquareColor *string              `json:"cornersSquareColor"`
	CornersDotColor    *string              `json:"cornersDotColor"`
	ErrorCorrection    *string              `json:"errorCorrection"`
}

type persistedColorInput struct {
	Mode     *string  `json:"mode"`
	Color    *string  `json:"color"`
	Color1   *string  `json:"color1"`
	Color2   *string  `json:"color2"`
	Rotation *float64 `json:"rotation"`
}

// PersistenceAdapter converts between StyleDescriptor and the qrinfo JSON
// stored by the backend.
type PersistenceAdapter struct {
	sizing SizingPolicy
	logger *zap.Logger
}

// NewPersistenceAdapter returns an adapter that clamps persisted sizes with sizing.
func NewPersistenceAdapter(sizing SizingPolicy, logger *zap.Logger) *PersistenceAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PersistenceAdapter{sizing: sizing.Normalized(), logger: logger}
}

// Encode builds the persisted form of desc. Only resolved values are written;
// an inherited corner color is written as an absent key.
func (a *PersistenceAdapter) Encode(desc model.StyleDescriptor) PersistedStyle {
	d := CompleteStyle(desc)

	out := PersistedStyle{
		Version:           PersistedVersion,
		Size:              a.sizing.Preview(d.PreviewSizePx),
		Margin:            d.MarginPx,
		Foreground:        encodeColor(d.Foreground),
		Background:        encodeColor(d.Background),
		LogoSize:          d.LogoSizeRatio,
		DotsType:          string(d.ModuleShape),
		CornersSquareType: string(d.OuterCornerShape),
		CornersDotType:    string(d.InnerCornerShape),
		ErrorCorrection:   string(d.ErrorCorrection),
	}
	if d.Logo != nil {
		out.Logo = d.Logo.SourceURI
	}
	if v, ok := d.OuterCornerColor.Get(); ok {
		out.CornersSquareColor = v
	}
	if v, ok := d.InnerCornerColor.Get(); ok {
		out.CornersDotColor = v
	}
	return out
}

// ToPersisted serializes desc to qrinfo JSON.
func (a *PersistenceAdapter) ToPersisted(desc model.StyleDescriptor) (json.RawMessage, error) {
	data, err := json.Marshal(a.Encode(desc))
	if err != nil {
		return nil, fmt.Errorf("encode qrinfo: %w", err)
	}
	return data, nil
}

// FromPersisted rebuilds the editor state from stored qrinfo. Missing fields
// get their documented defaults; only malformed JSON is an error.
func (a *PersistenceAdapter) FromPersisted(raw json.RawMessage) (model.EditorState, error) {
	state := model.DefaultEditorState()

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return state, nil
	}

	var in persistedInput
	if err := json.Unmarshal(trimmed, &in); err != nil {
		return state, model.NewValidationError("qrinfo", fmt.Sprintf("malformed style: %v", err))
	}

	if in.Version != nil && *in.Version > PersistedVersion {
		a.logger.Warn("qrinfo written by a newer schema, decoding best-effort",
			zap.Int("version", *in.Version),
			zap.Int("supported", PersistedVersion),
		)
	}

	if in.Size != nil {
		state.Size = *in.Size
	}
	if in.Margin != nil {
		state.Margin = min(max(*in.Margin, 0), model.MaxMarginPx)
	}
	if in.DotsType != nil {
		if v := model.ModuleShape(*in.DotsType); v.Valid() {
			state.ModuleShape = v
		} else {
			a.warnUnknown("dotsType", *in.DotsType)
		}
	}
	if in.CornersSquareType != nil {
		if v := model.OuterCornerShape(*in.CornersSquareType); v.Valid() {
			state.OuterCornerShape = v
		} else {
			a.warnUnknown("cornersSquareType", *in.CornersSquareType)
		}
	}
	if in.CornersDotType != nil {
		if v := model.InnerCornerShape(*in.CornersDotType); v.Valid() {
			state.InnerCornerShape = v
		} else {
			a.warnUnknown("cornersDotType", *in.CornersDotType)
		}
	}
	if in.ErrorCorrection != nil {
		if v := model.ErrorCorrectionLevel(*in.ErrorCorrection); v.Valid() {
			state.ErrorCorrection = v
		} else {
			a.warnUnknown("errorCorrection", *in.ErrorCorrection)
		}
	}

	if fg := in.Foreground; fg != nil {
		if mode(fg) == model.ColorModeLinear {
			state.FgMode = model.ColorModeLinear
			state.FgColor = model.NormalizeHex(strOr(fg.Color1, model.DefaultForegroundHex))
			state.FgColor2 = model.NormalizeHex(strOr(fg.Color2, model.DefaultForeground2Hex))
			state.FgAngle = rotation(fg.Rotation)
		} else {
			state.FgMode = model.ColorModeSolid
			state.FgColor = model.NormalizeHex(strOr(fg.Color, model.DefaultForegroundHex))
		}
	}

	if bg := in.Background; bg != nil {
		switch {
		case mode(bg) == model.ColorModeLinear:
			state.BgMode = model.ColorModeLinear
			state.BgColor = model.NormalizeHex(strOr(bg.Color1, model.DefaultBackgroundHex))
			state.BgColor2 = model.NormalizeHex(strOr(bg.Color2, model.DefaultBackground2Hex))
			state.BgAngle = rotation(bg.Rotation)
		case bg.Color != nil && *bg.Color == model.TransparentColor:
			state.BgTransparent = true
			state.BgMode = model.ColorModeSolid
		default:
			state.BgMode = model.ColorModeSolid
			state.BgColor = model.NormalizeHex(strOr(bg.Color, model.DefaultBackgroundHex))
		}
	}

	if in.Logo != nil {
		state.Logo = *in.Logo
	}
	if in.LogoSize != nil {
		state.LogoSize = min(max(*in.LogoSize, 0), model.MaxLogoSizeRatio)
	}

	// "Matches foreground" is not stored: it is whatever has no override.
	if in.CornersSquareColor != nil && *in.CornersSquareColor != "" {
		state.OuterMatchesForeground = false
		state.OuterCornerColor = model.NormalizeHex(*in.CornersSquareColor)
	}
	if in.CornersDotColor != nil && *in.CornersDotColor != "" {
		state.InnerMatchesForeground = false
		state.InnerCornerColor = model.NormalizeHex(*in.CornersDotColor)
	}

	return state, nil
}

// DecodeStyle is FromPersisted for read-only callers: malformed input is
// logged and replaced by defaults.
func (a *PersistenceAdapter) DecodeStyle(linkID string, raw json.RawMessage) model.EditorState {
	state, err := a.FromPersisted(raw)
	if err != nil {
		a.logger.Warn("stored style unreadable, using defaults", zap.String("link_id", linkID), zap.Error(err))
		return model.DefaultEditorState()
	}
	return state
}

func (a *PersistenceAdapter) warnUnknown(field, value string) {
	a.logger.Warn("unknown qrinfo value, using default", zap.String("field", field), zap.String("value", value))
}

func encodeColor(c model.ColorSpec) PersistedColor {
	if c.IsGradient() {
		rot := c.Rotation
		return PersistedColor{
			Mode:     string(model.ColorModeLinear),
			Color1:   c.Start,
			Color2:   c.End,
			Rotation: &rot,
		}
	}
	return PersistedColor{Mode: string(model.ColorModeSolid), Color: c.Color}
}

func mode(c *persistedColorInput) model.ColorMode {
	if c.Mode != nil && model.ColorMode(*c.Mode) == model.ColorModeLinear {
		return model.ColorModeLinear
	}
	return model.ColorModeSolid
}

func rotation(v *float64) int {
	if v == nil {
		return 0
	}
	return model.NormalizeRotation(int(*v))
}

func strOr(v *string, fallback string) string {
	if v == nil || *v == "" {
		return fallback
	}
	return *v
}
