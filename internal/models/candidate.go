package models

import "github.com/google/uuid"

// Candidate pairs a resume with its similarity to one job. Transient:
// recomputed per job, never persisted as-is.
type Candidate struct {
	Resume     *ResumeRecord
	Similarity float64
}

// CandidateSet is ordered by descending similarity.
type CandidateSet []Candidate

// ValidationVerdict is one candidate's LLM adjudication. Rank is the position
// the candidate held in the batch presented to the scoring service.
type ValidationVerdict struct {
	ResumeID  uuid.UUID
	Score     int
	Pass      bool
	Reasoning string
	Rank      int
}
