package models

import "time"

// Checkpoint is the single live snapshot for a run fingerprint. Saves replace
// the previous row; nothing is merged.
type Checkpoint struct {
	RunFingerprint string    `gorm:"type:text;primary_key" json:"run_fingerprint"`
	LastOffset     int       `gorm:"not null" json:"last_offset"`
	MatchedCount   int       `gorm:"not null;default:0" json:"matched_count"`
	UnmatchedCount int       `gorm:"not null;default:0" json:"unmatched_count"`
	ErrorCount     int       `gorm:"not null;default:0" json:"error_count"`
	SkippedCount   int       `gorm:"not null;default:0" json:"skipped_count"`
	SavedAt        time.Time `gorm:"type:timestamp;not null" json:"saved_at"`
}

func (Checkpoint) TableName() string {
	return "checkpoints"
}
