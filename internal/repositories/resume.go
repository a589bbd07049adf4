package repositories

import (
	"fmt"

	"gorm.io/gorm"

	"job-matcher/internal/models"
)

type ResumeRepository interface {
	// FindByIndustryCodes returns resumes whose industry code is in codes.
	// An empty slice means no restriction: the whole population.
	FindByIndustryCodes(codes []string) ([]models.ResumeRecord, error)
	Create(resume *models.ResumeRecord) error
}

type resumeRepository struct {
	db *gorm.DB
}

func NewResumeRepository(db *gorm.DB) ResumeRepository {
	return &resumeRepository{db: db}
}

func (r *resumeRepository) FindByIndustryCodes(codes []string) ([]models.ResumeRecord, error) {
	var resumes []models.ResumeRecord
	q := r.db.Order("created_at ASC, id ASC")
	if len(codes) > 0 {
		q = q.Where("industry_code IN ?", codes)
	}
	if err := q.Find(&resumes).Error; err != nil {
		return nil, fmt.Errorf("failed to load resumes: %w", err)
	}
	return resumes, nil
}

func (r *resumeRepository) Create(resume *models.ResumeRecord) error {
	if err := r.db.Create(resume).Error; err != nil {
		return fmt.Errorf("failed to create resume record: %w", err)
	}
	return nil
}
