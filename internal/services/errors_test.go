package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestTaggedErrorClassification(t *testing.T) {
	retryable := NewRetryable(errors.New("rate limited"))
	if !IsRetryable(retryable) || IsFatal(retryable) || IsMalformed(retryable) {
		t.Fatalf("bad classification for retryable: %v", retryable)
	}

	fatal := NewFatal(errors.New("checkpoint store gone"))
	if !IsFatal(fatal) || IsRetryable(fatal) {
		t.Fatalf("bad classification for fatal: %v", fatal)
	}

	if IsRetryable(errors.New("untagged")) {
		t.Fatalf("untagged errors must not classify as retryable")
	}
}

func TestTaggedErrorSurvivesWrapping(t *testing.T) {
	inner := NewIndexNotFound(errors.New("collection doesn't exist"))
	wrapped := fmt.Errorf("search failed: %w", inner)

	if !IsIndexNotFound(wrapped) {
		t.Fatalf("expected tag to survive wrapping")
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{errors.New("429 Too Many Requests"), true},
		{errors.New("rpc error: code = Unavailable"), true},
		{errors.New("RESOURCE_EXHAUSTED: quota exceeded"), true},
		{errors.New("connection refused"), true},
		{context.DeadlineExceeded, true},
		{errors.New("invalid api key"), false},
		{nil, false},
	}

	for _, tc := range cases {
		if got := isTransient(tc.err); got != tc.want {
			t.Fatalf("isTransient(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestIsIndexMissing(t *testing.T) {
	if !isIndexMissing(errors.New("Collection resumes doesn't exist")) {
		t.Fatalf("expected index-missing classification")
	}
	if isIndexMissing(errors.New("connection reset by peer")) {
		t.Fatalf("connection errors are not index-missing")
	}
}
