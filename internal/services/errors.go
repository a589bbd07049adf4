package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind tags a failed external call so callers branch on the tag instead
// of matching error types: retry, fall back, or abort.
type ErrorKind int

const (
	// KindRetryable covers store outages and transient LLM failures
	// (rate limits, timeouts). Bounded retries apply.
	KindRetryable ErrorKind = iota
	// KindIndexNotFound means the vector index is missing. Not an error for
	// the pipeline: it selects the brute-force fallback path.
	KindIndexNotFound
	// KindMalformed marks validator responses that cannot be used. Assumed
	// deterministic for the input, so never retried.
	KindMalformed
	// KindFatal stops the whole run, e.g. the checkpoint store is gone and
	// progress durability cannot be guaranteed.
	KindFatal
)

type TaggedError struct {
	Kind ErrorKind
	Err  error
}

func (e *TaggedError) Error() string {
	switch e.Kind {
	case KindRetryable:
		return fmt.Sprintf("retryable: %v", e.Err)
	case KindIndexNotFound:
		return fmt.Sprintf("index not found: %v", e.Err)
	case KindMalformed:
		return fmt.Sprintf("malformed response: %v", e.Err)
	default:
		return fmt.Sprintf("fatal: %v", e.Err)
	}
}

func (e *TaggedError) Unwrap() error {
	return e.Err
}

func NewRetryable(err error) error {
	return &TaggedError{Kind: KindRetryable, Err: err}
}

func NewIndexNotFound(err error) error {
	return &TaggedError{Kind: KindIndexNotFound, Err: err}
}

func NewMalformed(err error) error {
	return &TaggedError{Kind: KindMalformed, Err: err}
}

func NewFatal(err error) error {
	return &TaggedError{Kind: KindFatal, Err: err}
}

func kindOf(err error) (ErrorKind, bool) {
	var tagged *TaggedError
	if errors.As(err, &tagged) {
		return tagged.Kind, true
	}
	return 0, false
}

func IsRetryable(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindRetryable
}

func IsIndexNotFound(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindIndexNotFound
}

func IsMalformed(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindMalformed
}

func IsFatal(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindFatal
}

var transientMarkers = []string{
	"timeout",
	"deadline exceeded",
	"connection reset",
	"connection refused",
	"EOF",
	"no such host",
	"429",
	"rate limit",
	"quota",
	"resource exhausted",
	"unavailable",
	"internal error",
	"503",
}

var indexMissingMarkers = []string{
	"doesn't exist",
	"does not exist",
	"not found",
	"unknown collection",
}

// isTransient classifies raw client errors the way the external SDKs expose
// them: by message. Context expiry counts as transient (per-call timeout).
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

func isIndexMissing(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range indexMissingMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
