package model

import "time"

// ExportEvent records one successful export for the audit trail.
type ExportEvent struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	LinkID     string    `json:"link_id" gorm:"size:128;index"`
	Format     string    `json:"format" gorm:"size:8;not null"`
	SizePx     int       `json:"size_px" gorm:"not null"`
	Detached   bool      `json:"detached" gorm:"not null;default:false"`
	Bytes      int       `json:"bytes" gorm:"not null"`
	DurationMs int64     `json:"duration_ms" gorm:"not null"`
	Timestamp  time.Time `json:"timestamp" gorm:"index"`
}

const (
	ExportStreamName     = "EXPORTS"
	ExportStreamSubject  = "exports.events"
	ExportConsumerName   = "export-auditor"
	ExportStreamMaxBytes = 1024 * 1024 * 50 // 50MB
)
