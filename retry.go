package assistant

import (
	"context"
	"time"
)

// retryPolicy bounds how an external call is repeated.
type retryPolicy struct {
	// Attempts includes the first call
	Attempts int
	Backoff  time.Duration
	// Timeout applies to each attempt
	Timeout time.Duration
}

var defaultRetry = retryPolicy{Attempts: 2, Backoff: 2 * time.Second, Timeout: 30 * time.Second}

// do runs fn with a per-attempt timeout, retrying after a doubling backoff.
// It stops early when ctx is done.
func (p retryPolicy) do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := max(p.Attempts, 1)
	backoff := p.Backoff
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		err = p.attempt(ctx, fn)
		if err == nil || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func (p retryPolicy) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.Timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	return fn(ctx)
}
