package repository

import (
	"context"
	"time"

	"github.com/sifan077/PowerQR/internal/app/model"
	"gorm.io/gorm"
)

// ExportEventRepository defines the data access contract for the export audit trail.
type ExportEventRepository interface {
	Create(ctx context.Context, event *model.ExportEvent) error
	Exists(ctx context.Context, id string) (bool, error)
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

type exportEventRepository struct {
	db *gorm.DB
}

// NewExportEventRepository returns a GORM-backed ExportEventRepository.
func NewExportEventRepository(db *gorm.DB) ExportEventRepository {
	return &exportEventRepository{db: db}
}

func (r *exportEventRepository) Create(ctx context.Context, event *model.ExportEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *exportEventRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.ExportEvent{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *exportEventRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("timestamp < ?", before).Delete(&model.ExportEvent{})
	return result.RowsAffected, result.Error
}
