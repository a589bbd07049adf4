package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ResumeRecord is immutable to the engine. Fields holds the structured resume
// payload produced by the extraction pipeline; the engine treats it as opaque
// pass-through data.
type ResumeRecord struct {
	ID            uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	FilePath      string         `gorm:"type:text" json:"file_path"`
	CandidateName string         `gorm:"type:text" json:"candidate_name"`
	IndustryCode  string         `gorm:"type:text;index" json:"industry_code"`
	Fields        datatypes.JSON `gorm:"type:jsonb" json:"fields,omitempty"`
	Embedding     datatypes.JSON `gorm:"type:jsonb" json:"-"`
	CreatedAt     time.Time      `gorm:"type:timestamp;default:now()" json:"created_at"`
}

func (ResumeRecord) TableName() string {
	return "resume_records"
}

func (r *ResumeRecord) Vector() ([]float32, error) {
	return DecodeVector(r.Embedding)
}
