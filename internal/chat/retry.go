package chat

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RetryConfig configures retry behavior for completion calls.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns defaults tuned for LLM gateway latency.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryablePatterns groups transient error substrings by category, matched
// case-insensitively. Provider SDKs do not expose sentinel errors for these,
// so string matching is the only discriminator available.
var retryablePatterns = [][]string{
	{"rate limit", "quota exceeded", "429"},
	{"500", "502", "503", "504", "unavailable", "overloaded"},
	{"connection reset", "connection refused", "timeout", "temporary"},
}

func retryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, group := range retryablePatterns {
		for _, sub := range group {
			if strings.Contains(msg, sub) {
				return true
			}
		}
	}
	return false
}

// completeWithRetry runs the completion with exponential backoff. Each
// attempt passes the rate limiter first so retries cannot amplify load on a
// struggling gateway.
func (r *Responder) completeWithRetry(ctx context.Context, system, user string) (string, error) {
	var lastErr error
	delay := r.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= r.retry.MaxRetries; attempt++ {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("rate limit wait: %w", err)
			}
		}

		answer, err := r.completer.Complete(ctx, system, user)
		if err == nil {
			r.logger.Debug("completion succeeded",
				"attempts", attempt+1, "elapsed", time.Since(start))
			return answer, nil
		}

		lastErr = err
		if !retryableError(err) {
			return "", fmt.Errorf("complete: %w", err)
		}
		if attempt == r.retry.MaxRetries {
			break
		}

		r.logger.Debug("retrying completion",
			"attempt", attempt+1, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, r.retry.MaxInterval)
		}
	}

	return "", fmt.Errorf("complete after %d retries (elapsed %v): %w",
		r.retry.MaxRetries, time.Since(start), lastErr)
}
