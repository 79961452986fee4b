package gateway

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/user/graphchef/internal/conversation"
	"github.com/user/graphchef/internal/types"
)

// RetryPolicy controls how failed runs are retried with exponential
// backoff. Retries live here, at the integration boundary, and nowhere
// inside the agent loop: re-running an ask repeats the model calls, so
// the policy must be explicit about what it re-attempts.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultRetryPolicy returns a RetryPolicy with sensible defaults:
// 3 attempts, 1s initial delay, 2x multiplier, 30s max delay.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		Multiplier:   2.0,
		MaxDelay:     30 * time.Second,
	}
}

// ShouldRetry returns true if the error is retryable and the attempt count
// has not exceeded MaxAttempts.
func (p *RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if attempt > p.MaxAttempts {
		return false
	}
	return p.isRetryable(err)
}

// isRetryable classifies errors. A half-persisted exchange must never be
// re-run (the user message would be duplicated), and unknown threads or
// bad input won't get better on retry. Transport-level failures of the
// model endpoint are worth another attempt.
func (p *RetryPolicy) isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var perr *conversation.PartialPersistError
	if errors.As(err, &perr) {
		return false
	}
	if errors.Is(err, types.ErrThreadNotFound) {
		return false
	}

	msg := strings.ToLower(err.Error())

	// Transient / retryable errors
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "temporary failure") {
		return true
	}

	// Permanent / non-retryable errors
	if strings.Contains(msg, "invalid") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "forbidden") {
		return false
	}

	// Default: retryable
	return true
}

// NextDelay returns the backoff delay for the given attempt number (1-indexed).
// The delay is InitialDelay * Multiplier^(attempt-1), capped at MaxDelay.
func (p *RetryPolicy) NextDelay(attempt int) time.Duration {
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}
