// Package providers implements the three wire-format adapters
// (Anthropic, OpenAI-compatible, Bedrock Converse) behind the llm.Adapter
// contract.
package providers

import (
	"context"
	"time"

	"github.com/kestrelai/assistant/internal/backoff"
)

// Base holds retry configuration shared by every adapter. Retries apply
// only to transport errors (network, rate-limit, 5xx) — never to
// tool-execution outcomes, which are data, not transport failures.
type Base struct {
	policy      backoff.BackoffPolicy
	maxAttempts int
}

// NewBase builds a Base with sane defaults when given zero values.
// retryDelay seeds the policy's initial backoff; each subsequent attempt
// doubles it up to a 30s ceiling, with 20% jitter.
func NewBase(maxRetries int, retryDelay time.Duration) Base {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	return Base{
		maxAttempts: maxRetries,
		policy: backoff.BackoffPolicy{
			InitialMs: float64(retryDelay.Milliseconds()),
			MaxMs:     30_000,
			Factor:    2,
			Jitter:    0.2,
		},
	}
}

// Retry runs op with exponential backoff while isRetryable(err) holds. A
// non-retryable error returns immediately rather than burning the
// remaining attempts, which is why this doesn't delegate straight to
// backoff.RetryWithBackoff (which always retries until maxAttempts) — it
// reuses the same policy and sleep primitive instead.
func (b *Base) Retry(ctx context.Context, isRetryable func(error) bool, op func() error) error {
	if op == nil {
		return nil
	}
	var lastErr error
	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err
		if isRetryable == nil || !isRetryable(err) {
			return err
		}
		if attempt >= b.maxAttempts {
			break
		}
		if err := backoff.SleepWithBackoff(ctx, b.policy, attempt); err != nil {
			return err
		}
	}
	return lastErr
}
