package service

import (
	"context"
	"time"

	apprepository "github.com/sifan077/PowerQR/internal/app/repository"
	"go.uber.org/zap"
)

// ExportAuditPruner periodically deletes export events older than the retention window.
type ExportAuditPruner struct {
	logger    *zap.Logger
	repo      apprepository.ExportEventRepository
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	stopChan  chan struct{}
}

// NewExportAuditPruner creates a pruner that runs every interval.
func NewExportAuditPruner(logger *zap.Logger, repo apprepository.ExportEventRepository, retention, interval time.Duration) *ExportAuditPruner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &ExportAuditPruner{
		logger:    logger,
		repo:      repo,
		retention: retention,
		interval:  interval,
		now:       time.Now,
		stopChan:  make(chan struct{}),
	}
}

// Start begins pruning in the background.
func (p *ExportAuditPruner) Start() {
	go p.run()
}

// Stop stops the periodic pruning.
func (p *ExportAuditPruner) Stop() {
	close(p.stopChan)
}

func (p *ExportAuditPruner) run() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.prune(context.Background())
		case <-p.stopChan:
			p.logger.Info("export audit pruner stopped")
			return
		}
	}
}

func (p *ExportAuditPruner) prune(ctx context.Context) int64 {
	if p.retention <= 0 {
		return 0
	}
	before := p.now().Add(-p.retention)

	affected, err := p.repo.DeleteOlderThan(ctx, before)
	if err != nil {
		p.logger.Error("failed to prune export events", zap.Error(err))
		return 0
	}

	if affected > 0 {
		p.logger.Info("pruned export events",
			zap.Int64("count", affected),
			zap.Time("before", before),
		)
	}
	return affected
}
