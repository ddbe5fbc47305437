package service

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/PowerQR/internal/app/model"
)

// ExportRecorder receives one event per successful export.
type ExportRecorder interface {
	Record(ctx context.Context, event model.ExportEvent) error
}

// ExportPublisher publishes export events to NATS JetStream
type ExportPublisher struct {
	js nats.JetStreamContext
}

// NewExportPublisher creates a new export event publisher
func NewExportPublisher(js nats.JetStreamContext) *ExportPublisher {
	return &ExportPublisher{js: js}
}

// Record publishes event to the export stream. The event ID doubles as the
// JetStream message ID so the server drops duplicate publishes.
func (p *ExportPublisher) Record(ctx context.Context, event model.ExportEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(model.ExportStreamSubject, data, nats.Context(ctx), nats.MsgId(event.ID))
	return err
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, model.ExportEvent) error { return nil }

// NopExportRecorder drops every event. It is used when NATS is not configured.
func NopExportRecorder() ExportRecorder {
	return nopRecorder{}
}
