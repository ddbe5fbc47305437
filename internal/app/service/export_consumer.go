package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/nats-io/nats.go"
	"github.com/sifan077/PowerQR/internal/app/model"
	apprepository "github.com/sifan077/PowerQR/internal/app/repository"
	"go.uber.org/zap"
)

const (
	seenFilterCapacity = 100_000
	seenFilterFPRate   = 0.001
)

// ExportConsumer consumes export events from NATS JetStream and stores them.
type ExportConsumer struct {
	js     nats.JetStreamContext
	logger *zap.Logger
	repo   apprepository.ExportEventRepository

	mu   sync.Mutex
	seen *bloom.BloomFilter

	started bool
	stop    chan struct{}
	done    chan struct{}
}

// NewExportConsumer creates a new export event consumer
func NewExportConsumer(js nats.JetStreamContext, logger *zap.Logger, repo apprepository.ExportEventRepository) *ExportConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportConsumer{
		js:     js,
		logger: logger,
		repo:   repo,
		seen:   bloom.NewWithEstimates(seenFilterCapacity, seenFilterFPRate),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start creates the stream and durable consumer if needed and begins consuming.
func (c *ExportConsumer) Start() error {
	_, err := c.js.StreamInfo(model.ExportStreamName)
	if err != nil {
		_, err = c.js.AddStream(&nats.StreamConfig{
			Name:       model.ExportStreamName,
			Subjects:   []string{model.ExportStreamSubject},
			MaxBytes:   model.ExportStreamMaxBytes,
			Duplicates: 2 * time.Minute,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
	}

	_, err = c.js.ConsumerInfo(model.ExportStreamName, model.ExportConsumerName)
	if err != nil {
		_, err = c.js.AddConsumer(model.ExportStreamName, &nats.ConsumerConfig{
			Durable:   model.ExportConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.ExportStreamSubject, model.ExportConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	c.started = true
	go c.consume(sub)
	return nil
}

// Stop ends the fetch loop and waits for the in-flight batch.
func (c *ExportConsumer) Stop() {
	if !c.started {
		return
	}
	close(c.stop)
	<-c.done
}

func (c *ExportConsumer) consume(sub *nats.Subscription) {
	defer close(c.done)
	ctx := context.Background()
	for {
		select {
		case <-c.stop:
			c.logger.Info("export consumer stopped")
			return
		default:
		}

		msgs, err := sub.Fetch(10, nats.MaxWait(5*time.Second))
		if err != nil && !errors.Is(err, nats.ErrTimeout) {
			c.logger.Error("failed to fetch messages", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			if err := c.handle(ctx, msg.Data); err != nil {
				c.logger.Error("failed to store export event", zap.Error(err))
				_ = msg.Nak()
				continue
			}
			_ = msg.Ack()
		}
	}
}

// handle stores one event unless it was stored before. The bloom filter only
// answers "definitely new"; a possible repeat is confirmed against the table.
func (c *ExportConsumer) handle(ctx context.Context, data []byte) error {
	var event model.ExportEvent
	if err := json.Unmarshal(data, &event); err != nil {
		// a message that never decodes would be redelivered forever
		c.logger.Warn("dropping malformed export event", zap.Error(err))
		return nil
	}
	if event.ID == "" {
		c.logger.Warn("dropping export event without id")
		return nil
	}

	if c.maybeSeen(event.ID) {
		exists, err := c.repo.Exists(ctx, event.ID)
		if err != nil {
			return err
		}
		if exists {
			c.logger.Debug("export event already stored", zap.String("id", event.ID))
			return nil
		}
	}

	if err := c.repo.Create(ctx, &event); err != nil {
		return fmt.Errorf("event %s: %w", event.ID, err)
	}
	c.markSeen(event.ID)

	c.logger.Debug("export event stored",
		zap.String("id", event.ID),
		zap.String("link_id", event.LinkID),
		zap.String("format", event.Format),
		zap.Int("size_px", event.SizePx),
	)
	return nil
}

func (c *ExportConsumer) maybeSeen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seen.TestString(id)
}

func (c *ExportConsumer) markSeen(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen.AddString(id)
}
