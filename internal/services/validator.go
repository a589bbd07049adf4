package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"job-matcher/internal/models"
)

// maxValidationCandidates caps how many candidates one batched scoring
// request carries.
const maxValidationCandidates = 5

// Validator submits the top candidates for a job to the LLM scoring service
// in a single batched request and parses one verdict per candidate. Transient
// service failures are retried with exponential backoff; malformed responses
// are not retried.
type Validator struct {
	generator    ContentGenerator
	prompts      *PromptBuilder
	threshold    int
	maxAttempts  int
	initialDelay time.Duration
	callTimeout  time.Duration
	logger       *zap.Logger
}

// ValidationResult holds every verdict plus the chosen best candidate.
// Best is nil when no candidate passed the threshold.
type ValidationResult struct {
	Verdicts []models.ValidationVerdict
	Best     *models.ValidationVerdict
	BestSim  float64
}

func NewValidator(
	generator ContentGenerator,
	threshold int,
	maxAttempts int,
	initialDelay time.Duration,
	callTimeout time.Duration,
	logger *zap.Logger,
) *Validator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Validator{
		generator:    generator,
		prompts:      NewPromptBuilder(),
		threshold:    threshold,
		maxAttempts:  maxAttempts,
		initialDelay: initialDelay,
		callTimeout:  callTimeout,
		logger:       logger,
	}
}

// Validate scores up to maxValidationCandidates candidates for one job.
func (v *Validator) Validate(ctx context.Context, job *models.JobPosting, candidates models.CandidateSet) (*ValidationResult, error) {
	if len(candidates) == 0 {
		return nil, NewMalformed(fmt.Errorf("no candidates to validate"))
	}
	if len(candidates) > maxValidationCandidates {
		candidates = candidates[:maxValidationCandidates]
	}

	prompt := v.prompts.BuildValidationPrompt(job, candidates)

	raw, err := v.generateWithRetry(ctx, job, prompt)
	if err != nil {
		return nil, err
	}

	return v.parseVerdicts(job, raw, candidates)
}

func (v *Validator) generateWithRetry(ctx context.Context, job *models.JobPosting, prompt string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= v.maxAttempts; attempt++ {
		callCtx := ctx
		var cancel context.CancelFunc
		if v.callTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, v.callTimeout)
		}
		raw, err := v.generator.GenerateContent(callCtx, prompt)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return raw, nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == v.maxAttempts {
			break
		}

		backoff := v.initialDelay * time.Duration(1<<uint(attempt-1))
		v.logger.Warn("validator call failed, backing off",
			zap.String("job_id", job.ID.String()),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return "", NewRetryable(ctx.Err())
		case <-time.After(backoff):
		}
	}

	return "", lastErr
}

// candidateVerdictPayload is one entry of the service response, before
// per-field coercion.
type candidateVerdictPayload struct {
	Score     any    `json:"score"`
	Reasoning string `json:"reasoning"`
}

func (v *Validator) parseVerdicts(job *models.JobPosting, raw string, candidates models.CandidateSet) (*ValidationResult, error) {
	cleaned := extractJSON(raw)

	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, NewMalformed(fmt.Errorf("unparsable validator response: %w", err))
	}

	var bestKey string
	if rawKey, ok := payload["best_candidate_key"]; ok {
		_ = json.Unmarshal(rawKey, &bestKey)
	}

	result := &ValidationResult{}
	for i, candidate := range candidates {
		key := CandidateKey(i)
		entry, ok := payload[key]
		if !ok {
			v.logger.Warn("validator response missing candidate entry",
				zap.String("job_id", job.ID.String()),
				zap.String("candidate_key", key),
			)
			continue
		}

		var parsed candidateVerdictPayload
		if err := json.Unmarshal(entry, &parsed); err != nil {
			v.logger.Warn("validator candidate entry unparsable",
				zap.String("job_id", job.ID.String()),
				zap.String("candidate_key", key),
				zap.Error(err),
			)
			continue
		}

		score, ok := coerceScore(parsed.Score)
		if !ok {
			// a verdict without a usable score is unusable, the rest of
			// the batch is still valid
			v.logger.Warn("validator candidate entry missing score",
				zap.String("job_id", job.ID.String()),
				zap.String("candidate_key", key),
			)
			continue
		}
		if score < 0 || score > 100 {
			// scores are on a 0-100 scale; anything outside it is noise,
			// not a verdict
			v.logger.Warn("validator candidate score out of range",
				zap.String("job_id", job.ID.String()),
				zap.String("candidate_key", key),
				zap.Int("score", score),
			)
			continue
		}

		result.Verdicts = append(result.Verdicts, models.ValidationVerdict{
			ResumeID:  candidate.Resume.ID,
			Score:     score,
			Pass:      score >= v.threshold,
			Reasoning: strings.TrimSpace(parsed.Reasoning),
			Rank:      i,
		})
	}

	if len(result.Verdicts) == 0 {
		return nil, NewMalformed(fmt.Errorf("no usable verdicts in validator response"))
	}

	v.selectBest(result, candidates, bestKey)
	return result, nil
}

// selectBest picks the match deterministically: highest score, ties broken by
// higher similarity, then by insertion order. The service's own
// best_candidate_key is advisory and only logged when it disagrees.
func (v *Validator) selectBest(result *ValidationResult, candidates models.CandidateSet, bestKey string) {
	for i := range result.Verdicts {
		verdict := &result.Verdicts[i]
		if !verdict.Pass {
			continue
		}
		sim := candidates[verdict.Rank].Similarity
		if result.Best == nil ||
			verdict.Score > result.Best.Score ||
			(verdict.Score == result.Best.Score && sim > result.BestSim) {
			result.Best = verdict
			result.BestSim = sim
		}
	}

	if result.Best != nil && bestKey != "" && bestKey != CandidateKey(result.Best.Rank) {
		v.logger.Debug("overriding service best_candidate_key",
			zap.String("service_key", bestKey),
			zap.String("selected_key", CandidateKey(result.Best.Rank)),
		)
	}
}

func coerceScore(value any) (int, bool) {
	switch val := value.(type) {
	case float64:
		if math.IsNaN(val) {
			return 0, false
		}
		return int(math.Round(val)), true
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		return int(math.Round(f)), true
	default:
		return 0, false
	}
}

// extractJSON strips the markdown fencing LLMs like to wrap JSON in.
func extractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end != -1 && end > start {
		return text[start : end+1]
	}
	return text
}
