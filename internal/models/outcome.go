package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// OutcomeStatus is the terminal state of a job after one engine pass.
type OutcomeStatus string

const (
	// StatusValidated means a candidate passed LLM validation; a MatchRecord exists.
	StatusValidated OutcomeStatus = "VALIDATED"
	// StatusRejected means candidates were scored but none passed the threshold.
	StatusRejected OutcomeStatus = "REJECTED"
	// StatusNoCandidates means nothing cleared the similarity threshold, so the
	// validator was never invoked.
	StatusNoCandidates OutcomeStatus = "NO_CANDIDATES"
	// StatusError means validation or persistence failed. No outcome record is
	// written; the job stays eligible for a later run.
	StatusError OutcomeStatus = "ERROR"
)

// MatchRecord is append-only: reprocessing a job with force_reprocess creates
// a new record, it never updates an old one.
type MatchRecord struct {
	ID              uuid.UUID     `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	JobID           uuid.UUID     `gorm:"type:uuid;not null;index" json:"job_id"`
	ResumeID        uuid.UUID     `gorm:"type:uuid;not null" json:"resume_id"`
	SimilarityScore float64       `gorm:"type:decimal(5,4)" json:"similarity_score"`
	ValidationScore int           `gorm:"not null" json:"validation_score"`
	Reasoning       string        `gorm:"type:text" json:"reasoning"`
	Status          OutcomeStatus `gorm:"type:text;not null;default:'VALIDATED'" json:"status"`
	CreatedAt       time.Time     `gorm:"type:timestamp;default:now()" json:"created_at"`
}

func (MatchRecord) TableName() string {
	return "match_records"
}

// UnmatchedRecord keeps the top evaluated candidates as an audit snapshot so a
// rejection can be reviewed without re-running similarity search.
type UnmatchedRecord struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	JobID              uuid.UUID      `gorm:"type:uuid;not null;index" json:"job_id"`
	Reason             string         `gorm:"type:text;not null" json:"reason"`
	TopSimilarityScore float64        `gorm:"type:decimal(5,4)" json:"top_similarity_score"`
	Candidates         datatypes.JSON `gorm:"type:jsonb" json:"candidates,omitempty"`
	Status             OutcomeStatus  `gorm:"type:text;not null" json:"status"`
	CreatedAt          time.Time      `gorm:"type:timestamp;default:now()" json:"created_at"`
}

func (UnmatchedRecord) TableName() string {
	return "unmatched_records"
}

// CandidateSnapshot is one entry of an UnmatchedRecord's audit trail.
type CandidateSnapshot struct {
	ResumeID        uuid.UUID `json:"resume_id"`
	Similarity      float64   `json:"similarity"`
	ValidationScore *int      `json:"validation_score,omitempty"`
}
