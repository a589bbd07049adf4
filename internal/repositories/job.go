package repositories

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"job-matcher/internal/models"
)

// JobRepository reads job postings in a stable order so batch offsets stay
// meaningful across runs: (created_at, id) ascending.
type JobRepository interface {
	FindBatch(tags []string, offset, limit int) ([]models.JobPosting, error)
	CountEligible(tags []string) (int64, error)
	FindByID(id uuid.UUID) (*models.JobPosting, error)
}

type jobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) eligible(tags []string) *gorm.DB {
	q := r.db.Model(&models.JobPosting{})
	if len(tags) > 0 {
		q = q.Where("search_term IN ?", tags)
	}
	return q
}

func (r *jobRepository) FindBatch(tags []string, offset, limit int) ([]models.JobPosting, error) {
	var jobs []models.JobPosting
	err := r.eligible(tags).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load job batch: %w", err)
	}
	return jobs, nil
}

func (r *jobRepository) CountEligible(tags []string) (int64, error) {
	var count int64
	if err := r.eligible(tags).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return count, nil
}

func (r *jobRepository) FindByID(id uuid.UUID) (*models.JobPosting, error) {
	var job models.JobPosting
	if err := r.db.Where("id = ?", id).First(&job).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("job posting not found")
		}
		return nil, fmt.Errorf("failed to find job posting: %w", err)
	}
	return &job, nil
}
