package retry

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/lnswap-io/swapclient-go/swaperrs"
)

// TryWithRetries runs fn up to attempts times, sleeping delay between
// failures. The retryable predicate short-circuits deterministic failures;
// pass nil to use swaperrs.Retryable.
func TryWithRetries[T any](
	ctx context.Context,
	attempts int,
	delay time.Duration,
	retryable func(error) bool,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	if retryable == nil {
		retryable = swaperrs.Retryable
	}

	var zero T
	var lastErr error

	for i := 0; i < attempts; i++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retryable(err) {
			return zero, err
		}

		logger.WithFields(logger.Fields{
			"attempt": i + 1,
			"err":     err,
		}).Debug("retrying")

		select {
		case <-ctx.Done():
			return zero, swaperrs.ErrCancelled
		case <-time.After(delay):
		}
	}

	return zero, lastErr
}
