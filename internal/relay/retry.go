package relay

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// withRetry runs fn up to attempts times with exponential backoff while fn
// reports the failure as retryable. final is set on the last allowed attempt.
// It returns the number of attempts made.
func withRetry(ctx context.Context, attempts int, baseDelay time.Duration, fn func(final bool) (retryable bool, err error)) (int, error) {
	if attempts <= 0 {
		attempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		retryable, err := fn(i == attempts-1)
		if err == nil {
			return i + 1, nil
		}
		lastErr = err
		if !retryable || i == attempts-1 {
			return i + 1, lastErr
		}
		select {
		case <-ctx.Done():
			return i + 1, lastErr
		case <-time.After(baseDelay * time.Duration(1<<i)):
		}
	}
	return attempts, lastErr
}

func retryableStatus(code int) bool {
	return code == 429 || code >= 500
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return 0
}
