package transcribe

import (
	"context"
	"fmt"
	"time"
)

// Backoff bounds applied when chunk retries are enabled.
const (
	defaultBaseDelay = 1 * time.Second
	defaultMaxDelay  = 30 * time.Second
)

// retryPolicy bounds how often a failed upload is resent and how long to
// wait between attempts.
type retryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// clamp repairs nonsensical values instead of erroring: a negative retry
// count means a single attempt, missing delays fall back to a small wait.
func (p *retryPolicy) clamp() {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = p.BaseDelay
	}
}

// sendWithRetry calls send until it succeeds or fails for good. Only errors
// isRetryableError accepts trigger another attempt; the wait doubles each
// time, capped at MaxDelay, and a cancelled ctx cuts the wait short.
func sendWithRetry(ctx context.Context, policy retryPolicy, send func() (Result, error)) (Result, error) {
	policy.clamp()

	var lastErr error
	delay := policy.BaseDelay

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					<-timer.C
				}
				return Result{}, ctx.Err()
			case <-timer.C:
			}
			delay = min(delay*2, policy.MaxDelay)
		}

		res, err := send()
		if err == nil {
			return res, nil
		}

		lastErr = err
		if !isRetryableError(lastErr) {
			return Result{}, lastErr
		}
	}

	return Result{}, fmt.Errorf("gave up after %d retries: %w", policy.MaxRetries, lastErr)
}
