package services

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"job-matcher/internal/models"
)

func TestCacheComputesOnceAndServesHits(t *testing.T) {
	cache := NewResumeCache(time.Minute, zap.NewNop())

	computes := 0
	compute := func() ([]models.ResumeRecord, error) {
		computes++
		return []models.ResumeRecord{{CandidateName: "Alice"}}, nil
	}

	for i := 0; i < 3; i++ {
		resumes, err := cache.GetOrCompute("eng", compute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(resumes) != 1 || resumes[0].CandidateName != "Alice" {
			t.Fatalf("unexpected resumes: %+v", resumes)
		}
	}

	if computes != 1 {
		t.Fatalf("expected 1 compute, got %d", computes)
	}

	stats := cache.Stats()
	if stats.Misses != 1 || stats.Hits != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	cache := NewResumeCache(10*time.Millisecond, zap.NewNop())

	computes := 0
	compute := func() ([]models.ResumeRecord, error) {
		computes++
		return nil, nil
	}

	if _, err := cache.GetOrCompute("eng", compute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := cache.GetOrCompute("eng", compute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if computes != 2 {
		t.Fatalf("expected recompute after TTL, got %d computes", computes)
	}
}

func TestCacheFailedComputeIsRetried(t *testing.T) {
	cache := NewResumeCache(time.Minute, zap.NewNop())

	calls := 0
	compute := func() ([]models.ResumeRecord, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("store down")
		}
		return []models.ResumeRecord{{CandidateName: "Bob"}}, nil
	}

	if _, err := cache.GetOrCompute("fin", compute); err == nil {
		t.Fatalf("expected first compute to fail")
	}

	resumes, err := cache.GetOrCompute("fin", compute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resumes) != 1 {
		t.Fatalf("expected resumes after retry, got %d", len(resumes))
	}
}

func TestCacheConcurrentMissComputesOnce(t *testing.T) {
	cache := NewResumeCache(time.Minute, zap.NewNop())

	var computes atomic.Int64
	compute := func() ([]models.ResumeRecord, error) {
		computes.Add(1)
		time.Sleep(5 * time.Millisecond)
		return []models.ResumeRecord{{CandidateName: "Carol"}}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.GetOrCompute("eng", compute); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := computes.Load(); got != 1 {
		t.Fatalf("expected exactly one compute under concurrency, got %d", got)
	}
}

func TestCachePurge(t *testing.T) {
	cache := NewResumeCache(time.Minute, zap.NewNop())

	compute := func() ([]models.ResumeRecord, error) { return nil, nil }
	if _, err := cache.GetOrCompute("a", compute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := cache.GetOrCompute("b", compute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if evicted := cache.Purge(); evicted != 2 {
		t.Fatalf("expected 2 evictions, got %d", evicted)
	}
	if stats := cache.Stats(); stats.Entries != 0 {
		t.Fatalf("expected empty cache, got %d entries", stats.Entries)
	}
}
