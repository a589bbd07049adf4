package services

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"job-matcher/internal/config"
	"job-matcher/internal/models"
	"job-matcher/internal/repositories"
)

// MatchEngine drives jobs through the matching pipeline: duplicate guard →
// candidate filter → similarity search → validation → outcome record. Distinct
// jobs run in parallel on a bounded worker pool; within a job the stages are
// sequential. The scheduler goroutine owns checkpointing and never blocks on
// pipeline work, it only consumes worker completions.
type MatchEngine struct {
	cfg         config.MatcherConfig
	jobRepo     repositories.JobRepository
	outcomeRepo repositories.OutcomeRepository
	filter      *CandidateFilter
	search      *SimilaritySearch
	validator   *Validator
	cache       *ResumeCache
	progress    *ProgressTracker
	checkpoints *CheckpointManager
	logger      *zap.Logger

	mu      sync.Mutex
	running bool
	stopped bool
}

type RunSummary struct {
	Total        int64       `json:"total"`
	Matched      int64       `json:"matched"`
	Rejected     int64       `json:"rejected"`
	NoCandidates int64       `json:"no_candidates"`
	Skipped      int64       `json:"skipped"`
	Errors       int64       `json:"errors"`
	ErroredJobs  []uuid.UUID `json:"errored_jobs,omitempty"`
	Stopped      bool        `json:"stopped"`
	Duration     string      `json:"duration"`
}

type EngineStatus struct {
	Running  bool             `json:"running"`
	Progress ProgressSnapshot `json:"progress"`
	Cache    CacheStats       `json:"cache"`
}

func NewMatchEngine(
	cfg config.MatcherConfig,
	jobRepo repositories.JobRepository,
	outcomeRepo repositories.OutcomeRepository,
	filter *CandidateFilter,
	search *SimilaritySearch,
	validator *Validator,
	cache *ResumeCache,
	progress *ProgressTracker,
	checkpoints *CheckpointManager,
	logger *zap.Logger,
) *MatchEngine {
	if cfg.MaxWorkers < 1 {
		cfg.MaxWorkers = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	return &MatchEngine{
		cfg:         cfg,
		jobRepo:     jobRepo,
		outcomeRepo: outcomeRepo,
		filter:      filter,
		search:      search,
		validator:   validator,
		cache:       cache,
		progress:    progress,
		checkpoints: checkpoints,
		logger:      logger,
	}
}

// Run processes every eligible job and returns the run summary. Per-job
// failures never abort the run; only run-level failures (checkpoint store
// unreachable, job store unreadable) do.
func (e *MatchEngine) Run(ctx context.Context) (*RunSummary, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, fmt.Errorf("a run is already in progress")
	}
	e.running = true
	e.stopped = false
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	started := time.Now()

	// force_reprocess is an explicit re-run: a leftover checkpoint must not
	// skip it past the population.
	startOffset := 0
	if !e.cfg.ForceReprocess {
		checkpoint, err := e.checkpoints.Resume()
		if err != nil {
			return nil, err
		}
		if checkpoint != nil {
			startOffset = checkpoint.LastOffset
		}
	}

	eligible, err := e.jobRepo.CountEligible(e.cfg.JobFilterTags)
	if err != nil {
		return nil, NewFatal(fmt.Errorf("failed to count eligible jobs: %w", err))
	}

	total := eligible - int64(startOffset)
	if total < 0 {
		total = 0
	}
	if e.cfg.MaxJobs > 0 && int64(e.cfg.MaxJobs) < total {
		total = int64(e.cfg.MaxJobs)
	}
	e.progress.SetTotal(total)

	e.logger.Info("run starting",
		zap.Int64("total_jobs", total),
		zap.Int("start_offset", startOffset),
		zap.Int("workers", e.cfg.MaxWorkers),
		zap.Int("batch_size", e.cfg.BatchSize),
	)

	watcherDone := make(chan struct{})
	go e.watchMemory(watcherDone)
	defer close(watcherDone)

	summary := &RunSummary{Total: total}
	tracker := newOffsetTracker(startOffset)

	offset := startOffset
	remaining := int(total)

	for remaining > 0 {
		if e.stopRequested() || ctx.Err() != nil {
			summary.Stopped = true
			break
		}

		batchSize := e.cfg.BatchSize
		if batchSize > remaining {
			batchSize = remaining
		}

		jobs, err := e.jobRepo.FindBatch(e.cfg.JobFilterTags, offset, batchSize)
		if err != nil {
			return nil, NewFatal(fmt.Errorf("failed to load job batch: %w", err))
		}
		if len(jobs) == 0 {
			break
		}

		if err := e.runBatch(ctx, jobs, offset, tracker, summary); err != nil {
			return nil, err
		}

		offset += len(jobs)
		remaining -= len(jobs)
	}

	// A stopped run keeps its checkpoint so the next run resumes; a completed
	// run clears it so the fingerprint is re-enterable and ERROR jobs (which
	// carry no outcome record) come back into scope on the next pass.
	snap := e.progress.Snapshot()
	if summary.Stopped {
		if err := e.checkpoints.Save(tracker.committed(), snap); err != nil {
			return nil, err
		}
	} else if err := e.checkpoints.Clear(); err != nil {
		return nil, err
	}

	summary.Matched = snap.Matched
	summary.Rejected = snap.Rejected
	summary.NoCandidates = snap.NoCandidates
	summary.Skipped = snap.Skipped
	summary.Errors = snap.Errors
	summary.Duration = time.Since(started).String()

	e.logger.Info("run finished",
		zap.Int64("matched", summary.Matched),
		zap.Int64("rejected", summary.Rejected),
		zap.Int64("no_candidates", summary.NoCandidates),
		zap.Int64("skipped", summary.Skipped),
		zap.Int64("errors", summary.Errors),
		zap.Bool("stopped", summary.Stopped),
		zap.String("duration", summary.Duration),
	)
	return summary, nil
}

// Stop requests a cooperative stop: workers finish their current job and the
// final checkpoint reflects exactly the jobs completed before the signal.
func (e *MatchEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		e.stopped = true
	}
}

func (e *MatchEngine) Status() EngineStatus {
	e.mu.Lock()
	running := e.running
	e.mu.Unlock()

	return EngineStatus{
		Running:  running,
		Progress: e.progress.Snapshot(),
		Cache:    e.cache.Stats(),
	}
}

func (e *MatchEngine) stopRequested() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

type indexedJob struct {
	offset int
	job    models.JobPosting
}

type jobResult struct {
	offset  int
	jobID   uuid.UUID
	status  models.OutcomeStatus
	skipped bool
	err     error
}

func (e *MatchEngine) runBatch(
	ctx context.Context,
	jobs []models.JobPosting,
	baseOffset int,
	tracker *offsetTracker,
	summary *RunSummary,
) error {
	jobsCh := make(chan indexedJob, len(jobs))
	resultsCh := make(chan jobResult, len(jobs))

	workers := e.cfg.MaxWorkers
	if workers > len(jobs) {
		workers = len(jobs)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			throttle := newThrottle(e.cfg.APICallMinDelay)
			for item := range jobsCh {
				status, skipped, err := e.processJob(ctx, throttle, &item.job)
				resultsCh <- jobResult{
					offset:  item.offset,
					jobID:   item.job.ID,
					status:  status,
					skipped: skipped,
					err:     err,
				}
			}
		}()
	}

	// Stop is honored at job granularity: anything already dispatched runs
	// to completion.
	dispatched := 0
	for i := range jobs {
		if e.stopRequested() || ctx.Err() != nil {
			break
		}
		jobsCh <- indexedJob{offset: baseOffset + i, job: jobs[i]}
		dispatched++
	}
	close(jobsCh)

	var saveErr error
	for i := 0; i < dispatched; i++ {
		result := <-resultsCh
		e.recordResult(result, summary)
		tracker.complete(result.offset)

		if saveErr == nil {
			saveErr = e.checkpoints.Observe(tracker.committed(), e.progress.Snapshot())
		}
	}
	wg.Wait()

	if dispatched < len(jobs) {
		summary.Stopped = true
	}
	return saveErr
}

func (e *MatchEngine) recordResult(result jobResult, summary *RunSummary) {
	switch {
	case result.skipped:
		e.progress.MarkSkipped()
	case result.status == models.StatusValidated:
		e.progress.MarkMatched()
	case result.status == models.StatusRejected:
		e.progress.MarkRejected()
	case result.status == models.StatusNoCandidates:
		e.progress.MarkNoCandidates()
	default:
		e.progress.MarkError()
		summary.ErroredJobs = append(summary.ErroredJobs, result.jobID)
		e.logger.Error("job left in error state",
			zap.String("job_id", result.jobID.String()),
			zap.Error(result.err),
		)
	}
}

// processJob runs the sequential per-job pipeline. An ERROR status writes no
// outcome record so the job stays eligible for a later run.
func (e *MatchEngine) processJob(ctx context.Context, throttle *throttle, job *models.JobPosting) (models.OutcomeStatus, bool, error) {
	log := e.logger.With(zap.String("job_id", job.ID.String()))

	if e.cfg.SkipProcessedJobs && !e.cfg.ForceReprocess {
		decided, err := e.progress.AlreadyDecided(job.ID)
		if err != nil {
			return models.StatusError, false, NewRetryable(fmt.Errorf("duplicate guard lookup failed: %w", err))
		}
		if decided {
			log.Debug("job already decided, skipping")
			return "", true, nil
		}
	}

	var population []models.ResumeRecord
	err := e.withRetries(ctx, func() error {
		var ferr error
		population, ferr = e.filter.FilteredResumes()
		return ferr
	})
	if err != nil {
		return models.StatusError, false, err
	}

	if err := throttle.Wait(ctx); err != nil {
		return models.StatusError, false, NewRetryable(err)
	}
	searchOutcome, err := e.search.TopCandidates(ctx, job, population, e.filter.AllowedCodes())
	if err != nil {
		return models.StatusError, false, err
	}

	if len(searchOutcome.Candidates) == 0 {
		// nothing cleared the similarity threshold: no validator call at all
		record := &models.UnmatchedRecord{
			JobID:              job.ID,
			Reason:             string(models.StatusNoCandidates),
			TopSimilarityScore: searchOutcome.BestScore,
			Status:             models.StatusNoCandidates,
		}
		if err := e.outcomeRepo.CreateUnmatched(record); err != nil {
			return models.StatusError, false, NewRetryable(err)
		}
		log.Info("no qualifying candidates",
			zap.Float64("best_similarity", searchOutcome.BestScore),
			zap.Bool("used_fallback", searchOutcome.UsedFallback),
		)
		return models.StatusNoCandidates, false, nil
	}

	if err := throttle.Wait(ctx); err != nil {
		return models.StatusError, false, NewRetryable(err)
	}
	result, err := e.validator.Validate(ctx, job, searchOutcome.Candidates)
	if err != nil {
		return models.StatusError, false, err
	}

	if result.Best != nil {
		record := &models.MatchRecord{
			JobID:           job.ID,
			ResumeID:        result.Best.ResumeID,
			SimilarityScore: result.BestSim,
			ValidationScore: result.Best.Score,
			Reasoning:       result.Best.Reasoning,
			Status:          models.StatusValidated,
		}
		if err := e.outcomeRepo.CreateMatch(record); err != nil {
			return models.StatusError, false, NewRetryable(err)
		}
		log.Info("job matched",
			zap.String("resume_id", result.Best.ResumeID.String()),
			zap.Int("validation_score", result.Best.Score),
			zap.Float64("similarity", result.BestSim),
		)
		return models.StatusValidated, false, nil
	}

	snapshot, err := candidateSnapshots(searchOutcome.Candidates, result.Verdicts)
	if err != nil {
		return models.StatusError, false, err
	}
	record := &models.UnmatchedRecord{
		JobID:              job.ID,
		Reason:             "BELOW_VALIDATION_THRESHOLD",
		TopSimilarityScore: searchOutcome.BestScore,
		Candidates:         snapshot,
		Status:             models.StatusRejected,
	}
	if err := e.outcomeRepo.CreateUnmatched(record); err != nil {
		return models.StatusError, false, NewRetryable(err)
	}
	log.Info("job rejected by validator",
		zap.Int("candidates_scored", len(result.Verdicts)),
		zap.Float64("best_similarity", searchOutcome.BestScore),
	)
	return models.StatusRejected, false, nil
}

func candidateSnapshots(candidates models.CandidateSet, verdicts []models.ValidationVerdict) (datatypes.JSON, error) {
	scoreByRank := make(map[int]int, len(verdicts))
	for _, verdict := range verdicts {
		scoreByRank[verdict.Rank] = verdict.Score
	}

	snapshots := make([]models.CandidateSnapshot, 0, len(candidates))
	for i, candidate := range candidates {
		snapshot := models.CandidateSnapshot{
			ResumeID:   candidate.Resume.ID,
			Similarity: candidate.Similarity,
		}
		if score, ok := scoreByRank[i]; ok {
			snapshot.ValidationScore = &score
		}
		snapshots = append(snapshots, snapshot)
	}

	raw, err := json.Marshal(snapshots)
	if err != nil {
		return nil, fmt.Errorf("failed to encode candidate snapshot: %w", err)
	}
	return datatypes.JSON(raw), nil
}

// withRetries applies bounded exponential backoff to retryable errors.
func (e *MatchEngine) withRetries(ctx context.Context, fn func() error) error {
	attempts := e.cfg.RetryMaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil || !IsRetryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		backoff := e.cfg.RetryInitialDelay * time.Duration(1<<uint(attempt-1))
		select {
		case <-ctx.Done():
			return NewRetryable(ctx.Err())
		case <-time.After(backoff):
		}
	}
	return err
}

// watchMemory evicts the resume cache when heap usage approaches the
// configured limit.
func (e *MatchEngine) watchMemory(done <-chan struct{}) {
	if e.cfg.MemoryLimitBytes == 0 {
		return
	}

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			if stats.HeapAlloc > e.cfg.MemoryLimitBytes {
				e.logger.Warn("memory limit approached, evicting resume cache",
					zap.Uint64("heap_alloc", stats.HeapAlloc),
					zap.Uint64("limit", e.cfg.MemoryLimitBytes),
				)
				e.cache.Purge()
			}
		}
	}
}

// throttle enforces a minimum delay between successive external-API calls on
// one worker.
type throttle struct {
	minDelay time.Duration
	last     time.Time
}

func newThrottle(minDelay time.Duration) *throttle {
	return &throttle{minDelay: minDelay}
}

func (t *throttle) Wait(ctx context.Context) error {
	if t.minDelay > 0 && !t.last.IsZero() {
		if wait := t.minDelay - time.Since(t.last); wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	t.last = time.Now()
	return nil
}

// offsetTracker computes the highest offset such that every job before it has
// completed. Checkpoints only ever advance over that contiguous prefix, so a
// resumed run cannot skip a job that finished out of order after a crash.
type offsetTracker struct {
	next int
	done map[int]bool
}

func newOffsetTracker(start int) *offsetTracker {
	return &offsetTracker{next: start, done: make(map[int]bool)}
}

func (t *offsetTracker) complete(offset int) {
	t.done[offset] = true
	for t.done[t.next] {
		delete(t.done, t.next)
		t.next++
	}
}

func (t *offsetTracker) committed() int {
	return t.next
}
