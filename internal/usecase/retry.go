package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/totegamma/reputation-engine/internal/domain"
)

type RetryOptions struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxRetries      uint64
}

func retryOptions(config domain.Config) RetryOptions {
	return RetryOptions{
		InitialInterval: config.RetryInitialInterval,
		MaxInterval:     config.RetryMaxInterval,
		MaxRetries:      config.MaxRetries,
	}
}

func (o RetryOptions) backOff(ctx context.Context) backoff.BackOff {
	expo := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(o.InitialInterval),
		backoff.WithMaxInterval(o.MaxInterval),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.WithContext(backoff.WithMaxRetries(expo, o.MaxRetries), ctx)
}

// isPermanent reports errors that retrying cannot fix.
func isPermanent(err error) bool {
	return errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrDataCorruption) ||
		errors.Is(err, context.Canceled)
}

// withRetry runs operation until it succeeds, fails permanently or the
// options are exhausted. The last error from operation is returned.
func withRetry(ctx context.Context, opts RetryOptions, operation func() error) error {
	return backoff.Retry(func() error {
		err := operation()
		if err != nil && isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, opts.backOff(ctx))
}
