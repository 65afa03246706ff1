package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// RetryPolicy decides whether a failed download is attempted again.
type RetryPolicy interface {
	// ShouldRetry determines if a given error is retryable.
	ShouldRetry(err error) bool
	// BackoffInterval returns the wait before the attempt following attempt (starting from 1).
	BackoffInterval(attempt int) time.Duration
	// MaxAttempts returns the maximum number of attempts, including the first.
	MaxAttempts() int
}

// statusError is a non-200 answer of a download.
type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected response status %s", e.status)
}

// downloadRetryPolicy retries transport failures, 429 and 5xx answers with an
// exponential backoff.
type downloadRetryPolicy struct {
	maxAttempts     int
	initialInterval time.Duration
}

// NewDownloadRetryPolicy creates the policy used for Google Sheets downloads.
// maxAttempts below 1 disables retries.
func NewDownloadRetryPolicy(maxAttempts int, initialInterval time.Duration) RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &downloadRetryPolicy{maxAttempts: maxAttempts, initialInterval: initialInterval}
}

func (p *downloadRetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

func (p *downloadRetryPolicy) ShouldRetry(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= http.StatusInternalServerError
	}
	var ue *url.Error
	return errors.As(err, &ue)
}

func (p *downloadRetryPolicy) BackoffInterval(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.initialInterval << (attempt - 1)
}

var _ RetryPolicy = (*downloadRetryPolicy)(nil)
