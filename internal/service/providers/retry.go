package providers

import (
	"context"
	"time"

	apperrors "github.com/davidleathers/kyt-auditor/internal/domain/errors"
)

// CallPolicy bounds a single collaborator lookup.
type CallPolicy struct {
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`
	Backoff    time.Duration `json:"backoff"`
}

// DefaultCallPolicy is one retry for idempotent read-only lookups.
func DefaultCallPolicy() CallPolicy {
	return CallPolicy{
		Timeout:    5 * time.Second,
		MaxRetries: 1,
		Backoff:    100 * time.Millisecond,
	}
}

// Call runs fn under the policy. Each attempt gets its own timeout and is
// detached from ctx cancellation so an in-flight request is never cut off;
// if ctx is cancelled by the time an attempt returns, its result is
// discarded and ctx.Err() is returned. Only retryable errors are retried.
func Call[T any](ctx context.Context, policy CallPolicy, fn func(context.Context) (T, error)) (T, int, error) {
	var zero T
	attempts := 0

	for {
		if err := ctx.Err(); err != nil {
			return zero, attempts, err
		}

		attempts++
		result, err := attempt(ctx, policy.Timeout, fn)

		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, attempts, ctxErr
		}
		if err == nil {
			return result, attempts, nil
		}
		if attempts > policy.MaxRetries || !apperrors.IsRetryable(err) {
			return zero, attempts, err
		}

		if policy.Backoff > 0 {
			select {
			case <-ctx.Done():
				return zero, attempts, ctx.Err()
			case <-time.After(policy.Backoff):
			}
		}
	}
}

func attempt[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	callCtx := context.WithoutCancel(ctx)
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, timeout)
		defer cancel()
	}
	return fn(callCtx)
}
