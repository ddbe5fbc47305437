// Package render draws resolved QR configurations as PNG, JPEG, WebP or SVG.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"sync"
	"sync/atomic"

	"github.com/HugoSmits86/nativewebp"
	"github.com/sifan077/PowerQR/internal/app/model"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

var (
	// ErrUnsupportedFormat is returned by Extract for formats the engine cannot encode.
	ErrUnsupportedFormat = errors.New("format not supported by this engine")
	// ErrNotRendered is returned by Extract before Render completed.
	ErrNotRendered = errors.New("instance has not been rendered")
	// ErrReleased is returned by any call on a released instance.
	ErrReleased = errors.New("instance already released")
)

// Engine creates rendering instances.
type Engine interface {
	NewInstance(cfg model.RenderConfig) (Instance, error)
}

// Instance is one drawable QR symbol. Render must complete before Extract;
// Release frees it and is safe to call more than once.
type Instance interface {
	Render(ctx context.Context) error
	Extract(ctx context.Context, format model.ImageFormat) ([]byte, error)
	Config() model.RenderConfig
	Release()
}

// RasterEngine encodes the symbol with go-qrcode and paints it itself.
type RasterEngine struct {
	logos  *LogoLoader
	logger *zap.Logger
	live   atomic.Int64
	minPx  int
	maxPx  int
}

// RasterEngineConfig bounds the canvas sizes the engine accepts.
type RasterEngineConfig struct {
	MinPx int
	MaxPx int
}

// NewRasterEngine returns an engine that loads logos through logos.
func NewRasterEngine(cfg RasterEngineConfig, logos *LogoLoader, logger *zap.Logger) *RasterEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MinPx <= 0 {
		cfg.MinPx = 100
	}
	if cfg.MaxPx < cfg.MinPx {
		cfg.MaxPx = 4000
	}
	return &RasterEngine{logos: logos, logger: logger, minPx: cfg.MinPx, maxPx: cfg.MaxPx}
}

// Live is the number of instances created and not yet released.
func (e *RasterEngine) Live() int64 {
	return e.live.Load()
}

// NewInstance validates cfg and returns an unrendered instance.
func (e *RasterEngine) NewInstance(cfg model.RenderConfig) (Instance, error) {
	if cfg.Data == "" {
		return nil, errors.New("render: empty data")
	}
	if cfg.Width < e.minPx || cfg.Height < e.minPx || cfg.Width > e.maxPx || cfg.Height > e.maxPx {
		return nil, fmt.Errorf("render: size %dx%d outside %d..%d", cfg.Width, cfg.Height, e.minPx, e.maxPx)
	}
	e.live.Add(1)
	return &rasterInstance{engine: e, cfg: cfg}, nil
}

type paintResult struct {
	scene scene
	img   *image.RGBA
	logo  *Logo
	err   error
}

type rasterInstance struct {
	engine *RasterEngine
	cfg    model.RenderConfig

	mu       sync.Mutex
	result   *paintResult
	released bool
	once     sync.Once
}

func (i *rasterInstance) Config() model.RenderConfig {
	return i.cfg
}

// Render paints on a separate goroutine and waits for it or for ctx.
func (i *rasterInstance) Render(ctx context.Context) error {
	i.mu.Lock()
	if i.released {
		i.mu.Unlock()
		return ErrReleased
	}
	i.mu.Unlock()

	done := make(chan paintResult, 1)
	go func() {
		done <- i.paint(ctx)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-done:
		if res.err != nil {
			return res.err
		}
		i.mu.Lock()
		defer i.mu.Unlock()
		if i.released {
			return ErrReleased
		}
		i.result = &res
		return nil
	}
}

func (i *rasterInstance) paint(ctx context.Context) paintResult {
	matrix, err := encodeMatrix(i.cfg.Data, i.cfg.ErrorCorrection)
	if err != nil {
		return paintResult{err: err}
	}

	var logo *Logo
	logoW, logoH := 0, 0
	if i.cfg.LogoURI != "" && i.cfg.LogoSizeRatio > 0 {
		if i.engine.logos == nil {
			return paintResult{err: fmt.Errorf("%w: no logo loader configured", ErrUnsupportedLogo)}
		}
		logo, err = i.engine.logos.Load(ctx, i.cfg.LogoURI)
		if err != nil {
			return paintResult{err: fmt.Errorf("load logo: %w", err)}
		}
		b := logo.Image.Bounds()
		logoW, logoH = b.Dx(), b.Dy()
	}

	sc := buildScene(i.cfg, matrix, logoW, logoH)
	var src image.Image
	if logo != nil {
		src = logo.Image
	}
	img, err := rasterize(ctx, i.cfg, sc, src)
	if err != nil {
		return paintResult{err: err}
	}
	return paintResult{scene: sc, img: img, logo: logo}
}

func (i *rasterInstance) Extract(ctx context.Context, format model.ImageFormat) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.released {
		return nil, ErrReleased
	}
	if i.result == nil {
		return nil, ErrNotRendered
	}

	var buf bytes.Buffer
	switch format {
	case model.FormatPNG:
		if err := png.Encode(&buf, i.result.img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	case model.FormatJPEG:
		if err := jpeg.Encode(&buf, flatten(i.result.img), &jpeg.Options{Quality: 92}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	case model.FormatWEBP:
		if err := nativewebp.Encode(&buf, i.result.img, nil); err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
	case model.FormatSVG:
		buf.Write(encodeSVG(i.cfg, i.result.scene, i.result.logo))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return buf.Bytes(), nil
}

func (i *rasterInstance) Release() {
	i.once.Do(func() {
		i.mu.Lock()
		i.released = true
		i.result = nil
		i.mu.Unlock()
		i.engine.live.Add(-1)
	})
}

// encodeMatrix returns the module matrix without quiet zone, indexed [y][x].
func encodeMatrix(data string, level model.ErrorCorrectionLevel) ([][]bool, error) {
	q, err := qrcode.New(data, recoveryLevel(level))
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	q.DisableBorder = true
	return q.Bitmap(), nil
}

func recoveryLevel(level model.ErrorCorrectionLevel) qrcode.RecoveryLevel {
	switch level {
	case model.ErrorCorrectionL:
		return qrcode.Low
	case model.ErrorCorrectionM:
		return qrcode.Medium
	case model.ErrorCorrectionH:
		return qrcode.Highest
	default:
		return qrcode.High
	}
}
