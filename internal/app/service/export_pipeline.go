package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sifan077/PowerQR/internal/app/model"
	"github.com/sifan077/PowerQR/internal/render"
	"go.uber.org/zap"
)

// PipelineMetrics receives render timings and export outcomes.
type PipelineMetrics interface {
	ObserveRender(kind string, d time.Duration)
	CountExport(format, result string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveRender(string, time.Duration) {}
func (nopMetrics) CountExport(string, string)          {}

// ExportRequest describes one export. A zero SizePx extracts from Preview at
// its current size; any other value renders a detached instance at the
// clamped export size. Preview may be nil, in which case Config is used.
type ExportRequest struct {
	LinkID  string
	Preview render.Instance
	Config  model.RenderConfig
	Format  model.ImageFormat
	SizePx  int
}

// Artifact is an encoded export.
type Artifact struct {
	Data     []byte
	Format   model.ImageFormat
	SizePx   int
	Detached bool
}

// ExportPipeline renders previews and exports through a render.Engine. It
// holds no per-request state and is safe for concurrent use.
type ExportPipeline struct {
	engine   render.Engine
	sizing   SizingPolicy
	recorder ExportRecorder
	metrics  PipelineMetrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportPipeline wires a pipeline. recorder and metrics may be nil.
func NewExportPipeline(engine render.Engine, sizing SizingPolicy, recorder ExportRecorder, metrics PipelineMetrics, logger *zap.Logger) *ExportPipeline {
	if recorder == nil {
		recorder = NopExportRecorder()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportPipeline{
		engine:   engine,
		sizing:   sizing.Normalized(),
		recorder: recorder,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Preview renders cfg at its clamped preview size. The caller owns the
// returned instance and must Release it.
func (p *ExportPipeline) Preview(ctx context.Context, cfg model.RenderConfig) (render.Instance, error) {
	cfg = cfg.WithSize(p.sizing.Preview(cfg.Width))
	start := p.now()

	inst, err := p.engine.NewInstance(cfg)
	if err != nil {
		return nil, &model.RenderFailure{Format: "preview", SizePx: cfg.Width, Err: err}
	}
	if err := inst.Render(ctx); err != nil {
		inst.Release()
		return nil, &model.RenderFailure{Format: "preview", SizePx: cfg.Width, Err: err}
	}

	p.metrics.ObserveRender("preview", p.now().Sub(start))
	return inst, nil
}

// Export produces the artifact described by req. Preview is only read from,
// never re-rendered or resized; every instance this call creates is released
// before it returns.
func (p *ExportPipeline) Export(ctx context.Context, req ExportRequest) (*Artifact, error) {
	start := p.now()
	art, err := p.export(ctx, req)
	if err != nil {
		p.metrics.CountExport(string(req.Format), "error")
		var rf *model.RenderFailure
		if !errors.As(err, &rf) {
			err = &model.RenderFailure{Format: string(req.Format), SizePx: req.SizePx, Err: err}
		}
		p.logger.Warn("export failed",
			zap.String("link_id", req.LinkID),
			zap.String("format", string(req.Format)),
			zap.Int("size_px", req.SizePx),
			zap.Error(err),
		)
		return nil, err
	}

	elapsed := p.now().Sub(start)
	p.metrics.CountExport(string(req.Format), "ok")
	p.metrics.ObserveRender("export", elapsed)

	event := model.ExportEvent{
		ID:         uuid.NewString(),
		LinkID:     req.LinkID,
		Format:     string(art.Format),
		SizePx:     art.SizePx,
		Detached:   art.Detached,
		Bytes:      len(art.Data),
		DurationMs: elapsed.Milliseconds(),
		Timestamp:  p.now().UTC(),
	}
	if err := p.recorder.Record(ctx, event); err != nil {
		p.logger.Warn("failed to record export event", zap.String("id", event.ID), zap.Error(err))
	}
	return art, nil
}

func (p *ExportPipeline) export(ctx context.Context, req ExportRequest) (*Artifact, error) {
	if req.SizePx == 0 && req.Preview != nil {
		data, err := req.Preview.Extract(ctx, req.Format)
		if err != nil {
			return nil, &model.RenderFailure{Format: string(req.Format), SizePx: req.Preview.Config().Width, Err: err}
		}
		return &Artifact{Data: data, Format: req.Format, SizePx: req.Preview.Config().Width}, nil
	}

	base := req.Config
	if req.Preview != nil {
		base = req.Preview.Config()
	}

	var cfg model.RenderConfig
	if req.SizePx == 0 {
		cfg = base.WithSize(p.sizing.Preview(base.Width))
	} else {
		cfg = base.WithSize(p.sizing.Export(req.SizePx))
	}

	inst, err := p.engine.NewInstance(cfg)
	if err != nil {
		return nil, &model.RenderFailure{Format: string(req.Format), SizePx: cfg.Width, Err: err}
	}
	defer inst.Release()

	if err := inst.Render(ctx); err != nil {
		return nil, &model.RenderFailure{Format: string(req.Format), SizePx: cfg.Width, Err: err}
	}
	data, err := inst.Extract(ctx, req.Format)
	if err != nil {
		return nil, &model.RenderFailure{Format: string(req.Format), SizePx: cfg.Width, Err: err}
	}
	return &Artifact{Data: data, Format: req.Format, SizePx: cfg.Width, Detached: true}, nil
}
