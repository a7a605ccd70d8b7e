package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/mediakeeper/internal/logging"
	"github.com/dmitrijs2005/mediakeeper/internal/server/storage"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoffUnit = time.Second
)

// RetryableDeleter retries storage deletes with exponential backoff: after
// failed attempt n it waits 2^n units before trying again.
type RetryableDeleter struct {
	client      storage.Client
	logger      logging.Logger
	maxAttempts int
	unit        time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

type DeleterOption func(*RetryableDeleter)

func WithMaxAttempts(n int) DeleterOption {
	return func(d *RetryableDeleter) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

func WithBackoffUnit(unit time.Duration) DeleterOption {
	return func(d *RetryableDeleter) {
		if unit >= 0 {
			d.unit = unit
		}
	}
}

func NewRetryableDeleter(client storage.Client, logger logging.Logger, opts ...DeleterOption) *RetryableDeleter {
	d := &RetryableDeleter{
		client:      client,
		logger:      logger.With("module", "deleter"),
		maxAttempts: DefaultMaxAttempts,
		unit:        DefaultBackoffUnit,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DeleteWithRetry destroys remoteID. Deleted and AlreadyAbsent both return
// immediately with a nil error, so repeated calls for one id are safe. When
// every attempt fails the last error is returned. A cancelled ctx stops the
// backoff early.
func (d *RetryableDeleter) DeleteWithRetry(ctx context.Context, remoteID string) (storage.Outcome, error) {
	var lastErr error

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		out, err := d.client.Destroy(ctx, remoteID)
		if err == nil {
			deleteAttemptsTotal.WithLabelValues(out.String()).Inc()
			return out, nil
		}

		deleteAttemptsTotal.WithLabelValues("error").Inc()
		lastErr = err
		d.logger.Warn(ctx, "remote delete failed", "remote_id", remoteID, "attempt", attempt, "error", err)

		if attempt == d.maxAttempts {
			break
		}
		if err := d.sleep(ctx, d.backoff(attempt)); err != nil {
			return 0, fmt.Errorf("delete %s: retry aborted: %w", remoteID, errors.Join(lastErr, err))
		}
	}

	return 0, lastErr
}

func (d *RetryableDeleter) backoff(attempt int) time.Duration {
	return d.unit * time.Duration(1<<attempt)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
