package repositories

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"job-matcher/internal/models"
)

// CheckpointRepository keeps one live checkpoint per run fingerprint. Save
// replaces the previous snapshot in a single upsert; Delete removes it once a
// run completes so the fingerprint is re-enterable.
type CheckpointRepository interface {
	Save(checkpoint *models.Checkpoint) error
	FindByFingerprint(fingerprint string) (*models.Checkpoint, error)
	Delete(fingerprint string) error
}

type checkpointRepository struct {
	db *gorm.DB
}

func NewCheckpointRepository(db *gorm.DB) CheckpointRepository {
	return &checkpointRepository{db: db}
}

func (r *checkpointRepository) Save(checkpoint *models.Checkpoint) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "run_fingerprint"}},
		UpdateAll: true,
	}).Create(checkpoint).Error
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

func (r *checkpointRepository) Delete(fingerprint string) error {
	err := r.db.Where("run_fingerprint = ?", fingerprint).Delete(&models.Checkpoint{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

func (r *checkpointRepository) FindByFingerprint(fingerprint string) (*models.Checkpoint, error) {
	var checkpoint models.Checkpoint
	err := r.db.Where("run_fingerprint = ?", fingerprint).First(&checkpoint).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return &checkpoint, nil
}
