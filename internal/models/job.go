package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// JobPosting is read-only to the matching engine: ingestion and enrichment
// pipelines own it, we only consume it.
type JobPosting struct {
	ID               uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Title            string         `gorm:"type:text;not null" json:"title"`
	Company          string         `gorm:"type:text" json:"company"`
	Description      string         `gorm:"type:text" json:"description"`
	SearchTerm       string         `gorm:"type:text;index" json:"search_term"`
	Embedding        datatypes.JSON `gorm:"type:jsonb" json:"-"`
	DescriptionFlags datatypes.JSON `gorm:"type:jsonb" json:"description_flags,omitempty"`
	CreatedAt        time.Time      `gorm:"type:timestamp;default:now()" json:"created_at"`
}

func (JobPosting) TableName() string {
	return "job_postings"
}

// Vector decodes the stored embedding. An empty column is an error: a job
// without an embedding cannot be matched.
func (j *JobPosting) Vector() ([]float32, error) {
	return DecodeVector(j.Embedding)
}

// EncodeVector serializes an embedding for a jsonb column.
func EncodeVector(vec []float32) (datatypes.JSON, error) {
	raw, err := json.Marshal(vec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode embedding: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func DecodeVector(raw datatypes.JSON) ([]float32, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("document has no embedding")
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, fmt.Errorf("failed to decode embedding: %w", err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("document has an empty embedding")
	}
	return vec, nil
}
