package repositories

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"job-matcher/internal/models"
)

// OutcomeRepository owns the two result sets. Writes are inserts only: history
// is preserved across forced reprocessing runs.
type OutcomeRepository interface {
	CreateMatch(record *models.MatchRecord) error
	CreateUnmatched(record *models.UnmatchedRecord) error
	// HasOutcome reports whether the job already has a MatchRecord or an
	// UnmatchedRecord. The duplicate guard consults this before processing.
	HasOutcome(jobID uuid.UUID) (bool, error)
	FindLatestMatch(jobID uuid.UUID) (*models.MatchRecord, error)
	FindLatestUnmatched(jobID uuid.UUID) (*models.UnmatchedRecord, error)
}

type outcomeRepository struct {
	db *gorm.DB
}

func NewOutcomeRepository(db *gorm.DB) OutcomeRepository {
	return &outcomeRepository{db: db}
}

func (r *outcomeRepository) CreateMatch(record *models.MatchRecord) error {
	if err := r.db.Create(record).Error; err != nil {
		return fmt.Errorf("failed to create match record: %w", err)
	}
	return nil
}

func (r *outcomeRepository) CreateUnmatched(record *models.UnmatchedRecord) error {
	if err := r.db.Create(record).Error; err != nil {
		return fmt.Errorf("failed to create unmatched record: %w", err)
	}
	return nil
}

func (r *outcomeRepository) HasOutcome(jobID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.Model(&models.MatchRecord{}).Where("job_id = ?", jobID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check match records: %w", err)
	}
	if count > 0 {
		return true, nil
	}
	if err := r.db.Model(&models.UnmatchedRecord{}).Where("job_id = ?", jobID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check unmatched records: %w", err)
	}
	return count > 0, nil
}

func (r *outcomeRepository) FindLatestMatch(jobID uuid.UUID) (*models.MatchRecord, error) {
	var record models.MatchRecord
	err := r.db.Where("job_id = ?", jobID).Order("created_at DESC").First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find match record: %w", err)
	}
	return &record, nil
}

func (r *outcomeRepository) FindLatestUnmatched(jobID uuid.UUID) (*models.UnmatchedRecord, error) {
	var record models.UnmatchedRecord
	err := r.db.Where("job_id = ?", jobID).Order("created_at DESC").First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find unmatched record: %w", err)
	}
	return &record, nil
}
