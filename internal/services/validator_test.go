package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"job-matcher/internal/models"
)

// stubGenerator implements ContentGenerator with a scripted call sequence.
type stubGenerator struct {
	mu         sync.Mutex
	responses  []string
	errs       []error
	calls      int
	lastPrompt string
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.calls
	s.calls++
	s.lastPrompt = prompt

	if idx < len(s.errs) && s.errs[idx] != nil {
		return "", s.errs[idx]
	}
	if len(s.responses) == 0 {
		return "", nil
	}
	if idx >= len(s.responses) {
		return s.responses[len(s.responses)-1], nil
	}
	return s.responses[idx], nil
}

func (s *stubGenerator) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func validationCandidates(similarities ...float64) models.CandidateSet {
	candidates := make(models.CandidateSet, len(similarities))
	for i, sim := range similarities {
		candidates[i] = models.Candidate{
			Resume: &models.ResumeRecord{
				ID:            uuid.New(),
				CandidateName: "Candidate",
				IndustryCode:  "eng",
			},
			Similarity: sim,
		}
	}
	return candidates
}

func newTestValidator(generator ContentGenerator, threshold int) *Validator {
	return NewValidator(generator, threshold, 3, time.Millisecond, 0, zap.NewNop())
}

func TestValidatePicksHighestPassingScore(t *testing.T) {
	stub := &stubGenerator{responses: []string{`{
		"candidate_1": {"score": 72, "reasoning": "Good overlap"},
		"candidate_2": {"score": 88, "reasoning": "Strong fit"},
		"best_candidate_key": "candidate_2"
	}`}}
	validator := newTestValidator(stub, 70)
	candidates := validationCandidates(0.82, 0.55)

	result, err := validator.Validate(context.Background(), testJob(t, []float32{1, 0}), candidates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Best == nil {
		t.Fatalf("expected a best candidate")
	}
	if result.Best.Score != 88 {
		t.Fatalf("expected score 88, got %d", result.Best.Score)
	}
	if result.Best.ResumeID != candidates[1].Resume.ID {
		t.Fatalf("best pick does not match candidate_2")
	}
	if result.BestSim != 0.55 {
		t.Fatalf("expected similarity of chosen candidate, got %v", result.BestSim)
	}
}

func TestValidateTieBreaksOnSimilarity(t *testing.T) {
	// Service nominates candidate_2, but a deterministic tie-break on
	// similarity must win.
	stub := &stubGenerator{responses: []string{`{
		"candidate_1": {"score": 80, "reasoning": "a"},
		"candidate_2": {"score": 80, "reasoning": "b"},
		"best_candidate_key": "candidate_2"
	}`}}
	validator := newTestValidator(stub, 70)
	candidates := validationCandidates(0.90, 0.60)

	result, err := validator.Validate(context.Background(), testJob(t, []float32{1, 0}), candidates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Best == nil || result.Best.Rank != 0 {
		t.Fatalf("expected higher-similarity candidate to win the tie")
	}
}

func TestValidateNoneAboveThreshold(t *testing.T) {
	stub := &stubGenerator{responses: []string{`{
		"candidate_1": {"score": 45, "reasoning": "Weak"},
		"candidate_2": {"score": 60, "reasoning": "Partial"}
	}`}}
	validator := newTestValidator(stub, 70)

	result, err := validator.Validate(context.Background(), testJob(t, []float32{1, 0}), validationCandidates(0.8, 0.7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Best != nil {
		t.Fatalf("expected no best candidate below threshold")
	}
	if len(result.Verdicts) != 2 {
		t.Fatalf("expected both verdicts preserved, got %d", len(result.Verdicts))
	}
}

func TestValidateHandlesCodeFences(t *testing.T) {
	stub := &stubGenerator{responses: []string{
		"```json\n{\"candidate_1\": {\"score\": 91, \"reasoning\": \"Great\"}}\n```",
	}}
	validator := newTestValidator(stub, 70)

	result, err := validator.Validate(context.Background(), testJob(t, []float32{1, 0}), validationCandidates(0.9))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Best == nil || result.Best.Score != 91 {
		t.Fatalf("expected fenced JSON to parse, got %+v", result.Best)
	}
}

func TestValidateCoercesStringScores(t *testing.T) {
	stub := &stubGenerator{responses: []string{`{"candidate_1": {"score": "85", "reasoning": "ok"}}`}}
	validator := newTestValidator(stub, 70)

	result, err := validator.Validate(context.Background(), testJob(t, []float32{1, 0}), validationCandidates(0.9))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Best == nil || result.Best.Score != 85 {
		t.Fatalf("expected string score to coerce to 85, got %+v", result.Best)
	}
}

func TestValidateSkipsCandidateWithoutScore(t *testing.T) {
	// One entry is missing its score: that candidate is unusable, the rest
	// of the batch still counts.
	stub := &stubGenerator{responses: []string{`{
		"candidate_1": {"reasoning": "forgot the score"},
		"candidate_2": {"score": 75, "reasoning": "Fine"}
	}`}}
	validator := newTestValidator(stub, 70)
	candidates := validationCandidates(0.9, 0.5)

	result, err := validator.Validate(context.Background(), testJob(t, []float32{1, 0}), candidates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Verdicts) != 1 {
		t.Fatalf("expected 1 usable verdict, got %d", len(result.Verdicts))
	}
	if result.Best == nil || result.Best.ResumeID != candidates[1].Resume.ID {
		t.Fatalf("expected candidate_2 to be selected")
	}
}

func TestValidateRejectsOutOfRangeScores(t *testing.T) {
	// Scores live on a 0-100 scale. Entries outside it are dropped like any
	// other unusable verdict instead of skewing the selection.
	stub := &stubGenerator{responses: []string{`{
		"candidate_1": {"score": 150, "reasoning": "overshoots the scale"},
		"candidate_2": {"score": -5, "reasoning": "undershoots the scale"},
		"candidate_3": {"score": 80, "reasoning": "Fine"}
	}`}}
	validator := newTestValidator(stub, 70)
	candidates := validationCandidates(0.9, 0.8, 0.7)

	result, err := validator.Validate(context.Background(), testJob(t, []float32{1, 0}), candidates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Verdicts) != 1 {
		t.Fatalf("expected 1 usable verdict, got %d", len(result.Verdicts))
	}
	if result.Best == nil || result.Best.ResumeID != candidates[2].Resume.ID {
		t.Fatalf("expected the in-range candidate to win")
	}
	if result.Best.Score != 80 {
		t.Fatalf("expected score 80, got %d", result.Best.Score)
	}
}

func TestValidateAllVerdictsUnusableIsMalformed(t *testing.T) {
	stub := &stubGenerator{responses: []string{`{"candidate_1": {"reasoning": "no score"}}`}}
	validator := newTestValidator(stub, 70)

	_, err := validator.Validate(context.Background(), testJob(t, []float32{1, 0}), validationCandidates(0.9))
	if !IsMalformed(err) {
		t.Fatalf("expected malformed error, got %v", err)
	}
	if stub.callCount() != 1 {
		t.Fatalf("malformed responses must not be retried, got %d calls", stub.callCount())
	}
}

func TestValidateUnparsableResponseIsMalformed(t *testing.T) {
	stub := &stubGenerator{responses: []string{"I cannot answer that."}}
	validator := newTestValidator(stub, 70)

	_, err := validator.Validate(context.Background(), testJob(t, []float32{1, 0}), validationCandidates(0.9))
	if !IsMalformed(err) {
		t.Fatalf("expected malformed error, got %v", err)
	}
}

func TestValidateRetriesTransientFailures(t *testing.T) {
	stub := &stubGenerator{
		errs: []error{
			NewRetryable(errors.New("429 rate limited")),
			NewRetryable(errors.New("503 unavailable")),
		},
		responses: []string{"", "", `{"candidate_1": {"score": 80, "reasoning": "ok"}}`},
	}
	validator := newTestValidator(stub, 70)

	result, err := validator.Validate(context.Background(), testJob(t, []float32{1, 0}), validationCandidates(0.9))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Best == nil {
		t.Fatalf("expected success after retries")
	}
	if stub.callCount() != 3 {
		t.Fatalf("expected 3 attempts, got %d", stub.callCount())
	}
}

func TestValidateExhaustedRetriesReturnLastError(t *testing.T) {
	stub := &stubGenerator{errs: []error{
		NewRetryable(errors.New("timeout")),
		NewRetryable(errors.New("timeout")),
		NewRetryable(errors.New("timeout")),
	}}
	validator := newTestValidator(stub, 70)

	_, err := validator.Validate(context.Background(), testJob(t, []float32{1, 0}), validationCandidates(0.9))
	if !IsRetryable(err) {
		t.Fatalf("expected retryable error after exhaustion, got %v", err)
	}
	if stub.callCount() != 3 {
		t.Fatalf("expected exactly max attempts, got %d", stub.callCount())
	}
}

func TestValidateTruncatesCandidateBatch(t *testing.T) {
	stub := &stubGenerator{responses: []string{`{"candidate_1": {"score": 90, "reasoning": "ok"}}`}}
	validator := newTestValidator(stub, 70)

	sims := make([]float64, maxValidationCandidates+3)
	for i := range sims {
		sims[i] = 0.9
	}
	if _, err := validator.Validate(context.Background(), testJob(t, []float32{1, 0}), validationCandidates(sims...)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	overflowKey := CandidateKey(maxValidationCandidates)
	if strings.Contains(stub.lastPrompt, overflowKey) {
		t.Fatalf("expected batch truncated to %d candidates", maxValidationCandidates)
	}
	if !strings.Contains(stub.lastPrompt, CandidateKey(maxValidationCandidates-1)) {
		t.Fatalf("expected last kept candidate in prompt")
	}
}

func TestValidateEmptyCandidateSet(t *testing.T) {
	validator := newTestValidator(&stubGenerator{}, 70)

	_, err := validator.Validate(context.Background(), testJob(t, []float32{1, 0}), nil)
	if !IsMalformed(err) {
		t.Fatalf("expected malformed error for empty set, got %v", err)
	}
}
