package util

import (
	"context"
	"time"
)

type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:  5,
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  5 * time.Second,
	}
}

// Retry calls fn until it succeeds, returns an error retryable rejects, or attempts run out.
// The delay doubles after every failed attempt.
func Retry(ctx context.Context, p RetryPolicy, retryable func(error) bool, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.BaseDelay

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if !retryable(err) || i == attempts-1 {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return err
}
