package services

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"job-matcher/internal/config"
	"job-matcher/internal/models"
	"job-matcher/internal/repositories"
)

// RunFingerprint derives the checkpoint compatibility key from the knobs that
// change which jobs and candidates a run considers. Worker count, batch size
// and cache TTL are excluded: changing them must not invalidate resume.
func RunFingerprint(cfg *config.MatcherConfig) string {
	categories := append([]string(nil), cfg.CategoryFilter...)
	sort.Strings(categories)
	tags := append([]string(nil), cfg.JobFilterTags...)
	sort.Strings(tags)

	canonical := fmt.Sprintf("categories=%s|tags=%s|top_k=%d|sim=%.4f|val=%d",
		strings.Join(categories, ","),
		strings.Join(tags, ","),
		cfg.TopK,
		cfg.SimilarityThreshold,
		cfg.ValidationThreshold,
	)
	return fmt.Sprintf("%x", sha256.Sum256([]byte(canonical)))
}

// CheckpointManager durably records run progress every interval completed
// jobs. Only the scheduler goroutine calls it.
type CheckpointManager struct {
	repo        repositories.CheckpointRepository
	fingerprint string
	interval    int
	logger      *zap.Logger

	sinceSave int
}

func NewCheckpointManager(
	repo repositories.CheckpointRepository,
	fingerprint string,
	interval int,
	logger *zap.Logger,
) *CheckpointManager {
	if interval < 1 {
		interval = 1
	}
	return &CheckpointManager{
		repo:        repo,
		fingerprint: fingerprint,
		interval:    interval,
		logger:      logger,
	}
}

// Resume returns the checkpoint for this run's fingerprint, or nil when no
// compatible checkpoint exists. Fingerprints are the lookup key, so a changed
// configuration naturally starts a new run instead of resuming a wrong one.
func (m *CheckpointManager) Resume() (*models.Checkpoint, error) {
	checkpoint, err := m.repo.FindByFingerprint(m.fingerprint)
	if err != nil {
		return nil, NewFatal(fmt.Errorf("checkpoint store unreachable: %w", err))
	}
	if checkpoint == nil {
		return nil, nil
	}

	m.logger.Info("resuming from checkpoint",
		zap.Int("last_offset", checkpoint.LastOffset),
		zap.Time("saved_at", checkpoint.SavedAt),
	)
	return checkpoint, nil
}

// Observe counts one durably-recorded job completion and snapshots state when
// the interval is reached.
func (m *CheckpointManager) Observe(offset int, snap ProgressSnapshot) error {
	m.sinceSave++
	if m.sinceSave < m.interval {
		return nil
	}
	return m.Save(offset, snap)
}

// Save persists the snapshot unconditionally. A failure here is fatal to the
// run: without durable progress a resume could skip jobs.
func (m *CheckpointManager) Save(offset int, snap ProgressSnapshot) error {
	checkpoint := &models.Checkpoint{
		RunFingerprint: m.fingerprint,
		LastOffset:     offset,
		MatchedCount:   int(snap.Matched),
		UnmatchedCount: int(snap.Rejected + snap.NoCandidates),
		ErrorCount:     int(snap.Errors),
		SkippedCount:   int(snap.Skipped),
		SavedAt:        time.Now(),
	}
	if err := m.repo.Save(checkpoint); err != nil {
		return NewFatal(err)
	}

	m.sinceSave = 0
	m.logger.Info("checkpoint saved",
		zap.Int("last_offset", offset),
		zap.Int64("processed", snap.Processed),
	)
	return nil
}

// Clear removes the fingerprint's checkpoint after a completed run. Jobs that
// ended in ERROR carry no outcome record, so the next run over the same
// configuration walks the population from the start and the duplicate guard
// skips everything already decided.
func (m *CheckpointManager) Clear() error {
	if err := m.repo.Delete(m.fingerprint); err != nil {
		return NewFatal(fmt.Errorf("failed to clear checkpoint: %w", err))
	}
	m.logger.Info("checkpoint cleared, run complete")
	return nil
}
