package services

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"job-matcher/internal/models"
	"job-matcher/internal/repositories"
)

// CandidateFilter narrows the resume population to the configured industry
// codes before any similarity work. An empty allowed set admits everyone.
// Lookups go through the ResumeCache; only misses hit the store.
type CandidateFilter struct {
	resumeRepo repositories.ResumeRepository
	cache      *ResumeCache
	allowed    []string
	cacheKey   string
	logger     *zap.Logger
}

func NewCandidateFilter(
	resumeRepo repositories.ResumeRepository,
	cache *ResumeCache,
	allowedCodes []string,
	logger *zap.Logger,
) *CandidateFilter {
	allowed := append([]string(nil), allowedCodes...)
	sort.Strings(allowed)

	return &CandidateFilter{
		resumeRepo: resumeRepo,
		cache:      cache,
		allowed:    allowed,
		cacheKey:   cacheKeyFor(allowed),
		logger:     logger,
	}
}

// cacheKeyFor canonicalizes an allowed-code set. The filter set, not the job,
// determines the population, so all jobs under one configuration share a key.
func cacheKeyFor(sortedCodes []string) string {
	if len(sortedCodes) == 0 {
		return "*"
	}
	return strings.Join(sortedCodes, ",")
}

// FilteredResumes returns the category-restricted population. A store failure
// surfaces as a retryable error rather than an empty set: callers must be able
// to tell "store down" from "no resumes in category".
func (f *CandidateFilter) FilteredResumes() ([]models.ResumeRecord, error) {
	resumes, err := f.cache.GetOrCompute(f.cacheKey, func() ([]models.ResumeRecord, error) {
		found, err := f.resumeRepo.FindByIndustryCodes(f.allowed)
		if err != nil {
			return nil, NewRetryable(fmt.Errorf("resume store query failed: %w", err))
		}
		return found, nil
	})
	if err != nil {
		return nil, err
	}

	f.logger.Debug("candidate filter applied",
		zap.String("category_key", f.cacheKey),
		zap.Int("population", len(resumes)),
	)
	return resumes, nil
}

// CacheKey exposes the canonical key, used by the run fingerprint.
func (f *CandidateFilter) CacheKey() string {
	return f.cacheKey
}

// AllowedCodes returns the sorted industry codes the filter admits. Empty
// means unrestricted.
func (f *CandidateFilter) AllowedCodes() []string {
	return f.allowed
}
