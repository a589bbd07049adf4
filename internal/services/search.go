package services

import (
	"context"
	"math"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"job-matcher/internal/models"
)

// poolMultiplier oversizes the indexed query so category post-filtering does
// not under-fill the top-K result.
const poolMultiplier = 4

// SimilaritySearch ranks a category-filtered population against a job
// embedding. The indexed path delegates to the store's vector index; if the
// index is unavailable the brute-force path computes cosine similarity over
// the whole population. Candidates below the similarity threshold are cut
// before validation.
type SimilaritySearch struct {
	searcher  VectorSearcher
	topK      int
	threshold float64
	logger    *zap.Logger
}

// SearchOutcome carries the thresholded top-K plus audit data: the best score
// observed before thresholding, and whether the fallback path ran.
type SearchOutcome struct {
	Candidates   models.CandidateSet
	BestScore    float64
	UsedFallback bool
}

func NewSimilaritySearch(searcher VectorSearcher, topK int, threshold float64, logger *zap.Logger) *SimilaritySearch {
	return &SimilaritySearch{
		searcher:  searcher,
		topK:      topK,
		threshold: threshold,
		logger:    logger,
	}
}

// TopCandidates ranks population against the job's embedding. industryCodes is
// the same allowed set the population was filtered with, forwarded to the
// index as a payload pre-filter.
func (s *SimilaritySearch) TopCandidates(
	ctx context.Context,
	job *models.JobPosting,
	population []models.ResumeRecord,
	industryCodes []string,
) (*SearchOutcome, error) {
	if len(population) == 0 {
		return &SearchOutcome{}, nil
	}

	jobVector, err := job.Vector()
	if err != nil {
		return nil, NewMalformed(err)
	}

	byID := make(map[uuid.UUID]*models.ResumeRecord, len(population))
	for i := range population {
		byID[population[i].ID] = &population[i]
	}

	pool := s.topK * poolMultiplier
	if pool > len(population) {
		pool = len(population)
	}

	ranked, usedFallback := s.rank(ctx, job, jobVector, population, industryCodes, byID, pool)

	outcome := &SearchOutcome{UsedFallback: usedFallback}
	for _, candidate := range ranked {
		if candidate.Similarity > outcome.BestScore {
			outcome.BestScore = candidate.Similarity
		}
	}
	for _, candidate := range ranked {
		if candidate.Similarity < s.threshold {
			continue
		}
		outcome.Candidates = append(outcome.Candidates, candidate)
		if len(outcome.Candidates) == s.topK {
			break
		}
	}

	return outcome, nil
}

func (s *SimilaritySearch) rank(
	ctx context.Context,
	job *models.JobPosting,
	jobVector []float32,
	population []models.ResumeRecord,
	industryCodes []string,
	byID map[uuid.UUID]*models.ResumeRecord,
	pool int,
) (models.CandidateSet, bool) {
	hits, err := s.searcher.SearchSimilar(ctx, jobVector, industryCodes, pool)
	if err == nil {
		ranked := make(models.CandidateSet, 0, len(hits))
		for _, hit := range hits {
			resume, ok := byID[hit.ResumeID]
			if !ok {
				// index knows resumes outside the filtered population
				continue
			}
			ranked = append(ranked, models.Candidate{
				Resume:     resume,
				Similarity: normalizeScore(float64(hit.Score)),
			})
		}
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].Similarity > ranked[j].Similarity
		})
		return ranked, false
	}

	// Fallback selection is always recorded, never silent.
	s.logger.Warn("vector index unavailable, using brute-force similarity",
		zap.String("job_id", job.ID.String()),
		zap.Bool("index_not_found", IsIndexNotFound(err)),
		zap.Error(err),
	)
	return s.bruteForce(jobVector, population), true
}

func (s *SimilaritySearch) bruteForce(jobVector []float32, population []models.ResumeRecord) models.CandidateSet {
	ranked := make(models.CandidateSet, 0, len(population))
	for i := range population {
		resume := &population[i]
		vec, err := resume.Vector()
		if err != nil {
			s.logger.Debug("skipping resume without embedding",
				zap.String("resume_id", resume.ID.String()),
			)
			continue
		}
		ranked = append(ranked, models.Candidate{
			Resume:     resume,
			Similarity: normalizeScore(cosineSimilarity(jobVector, vec)),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Similarity > ranked[j].Similarity
	})
	return ranked
}

// normalizeScore clamps a raw cosine score into [0, 1].
func normalizeScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
