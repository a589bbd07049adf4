package services

import (
	"sync/atomic"

	"github.com/google/uuid"

	"job-matcher/internal/repositories"
)

// ProgressTracker aggregates per-run counters and answers the duplicate
// guard's question: does this job already have an outcome? Counters are
// atomic; workers increment them concurrently while the scheduler reads
// snapshots.
type ProgressTracker struct {
	outcomeRepo repositories.OutcomeRepository

	total        atomic.Int64
	matched      atomic.Int64
	rejected     atomic.Int64
	noCandidates atomic.Int64
	skipped      atomic.Int64
	errored      atomic.Int64
}

type ProgressSnapshot struct {
	Total        int64   `json:"total"`
	Processed    int64   `json:"processed"`
	Matched      int64   `json:"matched"`
	Rejected     int64   `json:"rejected"`
	NoCandidates int64   `json:"no_candidates"`
	Skipped      int64   `json:"skipped"`
	Errors       int64   `json:"errors"`
	Remaining    int64   `json:"remaining"`
	Percent      float64 `json:"percent"`
}

func NewProgressTracker(outcomeRepo repositories.OutcomeRepository) *ProgressTracker {
	return &ProgressTracker{outcomeRepo: outcomeRepo}
}

// AlreadyDecided reports whether the job has a persisted outcome from a
// previous run.
func (t *ProgressTracker) AlreadyDecided(jobID uuid.UUID) (bool, error) {
	return t.outcomeRepo.HasOutcome(jobID)
}

func (t *ProgressTracker) SetTotal(total int64)  { t.total.Store(total) }
func (t *ProgressTracker) MarkMatched()          { t.matched.Add(1) }
func (t *ProgressTracker) MarkRejected()         { t.rejected.Add(1) }
func (t *ProgressTracker) MarkNoCandidates()     { t.noCandidates.Add(1) }
func (t *ProgressTracker) MarkSkipped()          { t.skipped.Add(1) }
func (t *ProgressTracker) MarkError()            { t.errored.Add(1) }

func (t *ProgressTracker) Snapshot() ProgressSnapshot {
	snap := ProgressSnapshot{
		Total:        t.total.Load(),
		Matched:      t.matched.Load(),
		Rejected:     t.rejected.Load(),
		NoCandidates: t.noCandidates.Load(),
		Skipped:      t.skipped.Load(),
		Errors:       t.errored.Load(),
	}
	snap.Processed = snap.Matched + snap.Rejected + snap.NoCandidates + snap.Skipped + snap.Errors
	snap.Remaining = snap.Total - snap.Processed
	if snap.Remaining < 0 {
		snap.Remaining = 0
	}
	if snap.Total > 0 {
		snap.Percent = float64(snap.Processed) / float64(snap.Total) * 100
	}
	return snap
}
