package services

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"job-matcher/internal/models"
)

// ResumeCache memoizes category-filtered resume sets. Entries are locked per
// key: on a miss exactly one caller computes while the rest wait on the same
// entry, so concurrent lookups never issue duplicate store queries and never
// observe a half-written entry.
type ResumeCache struct {
	ttl    time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]*cacheEntry

	hits   atomic.Int64
	misses atomic.Int64
}

type cacheEntry struct {
	mu        sync.Mutex
	resumes   []models.ResumeRecord
	fetchedAt time.Time
}

type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

func NewResumeCache(ttl time.Duration, logger *zap.Logger) *ResumeCache {
	return &ResumeCache{
		ttl:     ttl,
		logger:  logger,
		entries: make(map[string]*cacheEntry),
	}
}

// GetOrCompute returns the cached resume list for key if it is younger than
// the TTL, otherwise runs compute and stores the result. A failed compute
// leaves the entry unpopulated so the next caller retries.
func (c *ResumeCache) GetOrCompute(key string, compute func() ([]models.ResumeRecord, error)) ([]models.ResumeRecord, error) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok {
		entry = &cacheEntry{}
		c.entries[key] = entry
	}
	c.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !entry.fetchedAt.IsZero() && time.Since(entry.fetchedAt) < c.ttl {
		c.hits.Add(1)
		return entry.resumes, nil
	}

	c.misses.Add(1)
	resumes, err := compute()
	if err != nil {
		return nil, err
	}

	entry.resumes = resumes
	entry.fetchedAt = time.Now()
	c.logger.Debug("resume cache refreshed",
		zap.String("category_key", key),
		zap.Int("resumes", len(resumes)),
	)
	return resumes, nil
}

// Invalidate drops a single key.
func (c *ResumeCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Purge drops every entry. The scheduler calls this under memory pressure.
func (c *ResumeCache) Purge() int {
	c.mu.Lock()
	evicted := len(c.entries)
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()

	if evicted > 0 {
		c.logger.Info("resume cache purged", zap.Int("evicted_entries", evicted))
	}
	return evicted
}

func (c *ResumeCache) Stats() CacheStats {
	c.mu.Lock()
	entries := len(c.entries)
	c.mu.Unlock()

	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: entries,
	}
}
