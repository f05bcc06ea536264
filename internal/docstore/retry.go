package docstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mohammad-safakhou/findly/internal/apperr"
	"github.com/mohammad-safakhou/findly/models"
)

// RetryPolicy bounds how long a batch add is retried.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	MaxRetries      uint64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		MaxElapsedTime:  15 * time.Second,
		MaxRetries:      4,
	}
}

type retrying struct {
	Store
	policy RetryPolicy
	logger *slog.Logger
}

// WithRetry retries Add on StorageUnavailable. The whole batch is retried as
// one unit; other failures and Search calls pass through untouched.
func WithRetry(s Store, policy RetryPolicy, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &retrying{Store: s, policy: policy, logger: logger}
}

func (r *retrying) Add(ctx context.Context, chunks []models.DocumentChunk) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.policy.InitialInterval
	eb.MaxInterval = r.policy.MaxInterval
	eb.MaxElapsedTime = r.policy.MaxElapsedTime
	var b backoff.BackOff = eb
	if r.policy.MaxRetries > 0 {
		b = backoff.WithMaxRetries(b, r.policy.MaxRetries)
	}
	b = backoff.WithContext(b, ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := r.Store.Add(ctx, chunks)
		if err == nil {
			return nil
		}
		if !apperr.Is(err, apperr.KindStorageUnavailable) {
			return backoff.Permanent(err)
		}
		r.logger.Warn("docstore add failed", "attempt", attempt, "chunks", len(chunks), "error", err)
		return err
	}, b)
}
