package objectstore

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"

	"lakehouse/internal/logger"
)

// RetryConfig controls WithRetry. Zero fields take the defaults.
type RetryConfig struct {
	Attempts uint
	Delay    time.Duration
}

const (
	defaultRetryAttempts = 3
	defaultRetryDelay    = 200 * time.Millisecond
)

type retryStore struct {
	Store
	opts []retry.Option
}

// WithRetry wraps s so Get, Put, Stat and List retry transient failures with
// exponential backoff. ErrNotFound and context errors are not retried.
// Remove stays best-effort and single-shot.
func WithRetry(s Store, cfg RetryConfig, log *logger.Logger) Store {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = defaultRetryAttempts
	}
	if cfg.Delay <= 0 {
		cfg.Delay = defaultRetryDelay
	}
	return &retryStore{
		Store: s,
		opts: []retry.Option{
			retry.Attempts(cfg.Attempts),
			retry.Delay(cfg.Delay),
			retry.DelayType(retry.BackOffDelay),
			retry.LastErrorOnly(true),
			retry.RetryIf(retryable),
			retry.OnRetry(func(n uint, err error) {
				log.Warn("objectstore call failed, retrying", "attempt", n+1, "error", err)
			}),
		},
	}
}

func retryable(err error) bool {
	return !errors.Is(err, ErrNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

func (r *retryStore) with(ctx context.Context) []retry.Option {
	return append([]retry.Option{retry.Context(ctx)}, r.opts...)
}

func (r *retryStore) Get(ctx context.Context, objectPath string) ([]byte, error) {
	return retry.DoWithData(func() ([]byte, error) {
		return r.Store.Get(ctx, objectPath)
	}, r.with(ctx)...)
}

func (r *retryStore) Put(ctx context.Context, objectPath string, data []byte, contentType string, metadata map[string]string) error {
	return retry.Do(func() error {
		return r.Store.Put(ctx, objectPath, data, contentType, metadata)
	}, r.with(ctx)...)
}

func (r *retryStore) Stat(ctx context.Context, objectPath string) (*Info, error) {
	return retry.DoWithData(func() (*Info, error) {
		return r.Store.Stat(ctx, objectPath)
	}, r.with(ctx)...)
}

func (r *retryStore) List(ctx context.Context, prefix string) ([]Info, error) {
	return retry.DoWithData(func() ([]Info, error) {
		return r.Store.List(ctx, prefix)
	}, r.with(ctx)...)
}
