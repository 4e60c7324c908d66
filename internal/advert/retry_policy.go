package advert

import (
	"context"
	"errors"
	"net"
	"time"
)

// RetryPolicy is a bounded fixed-delay retry applied at the fetcher boundary.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// NewRetryPolicy builds a policy with sane defaults.
func NewRetryPolicy(maxAttempts int, delay time.Duration) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if delay <= 0 {
		delay = time.Second
	}
	return RetryPolicy{MaxAttempts: maxAttempts, Delay: delay}
}

// ShouldRetry decides whether the error is retryable at the given attempt.
func (p RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.MaxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var terminal *TerminalFetchError
	if errors.As(err, &terminal) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return true
}

// Wait sleeps the fixed delay or returns early on context cancellation.
func (p RetryPolicy) Wait(ctx context.Context) error {
	t := time.NewTimer(p.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// TerminalFetchError marks a fetch failure that must not be retried,
// such as a 4xx status or a non-HTML content type.
type TerminalFetchError struct {
	Reason string
}

func (e *TerminalFetchError) Error() string {
	return "fetch: " + e.Reason
}
