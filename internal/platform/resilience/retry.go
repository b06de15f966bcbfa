package resilience

import (
	"context"
	"time"

	crerr "github.com/cockroachdb/errors"
)

var transientMarker = crerr.New("transient failure")

// MarkTransient tags an error as retryable (database busy, send
// backpressure). Retry only re-runs work that failed with a tagged error.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return crerr.Mark(err, transientMarker)
}

func IsTransient(err error) bool {
	return crerr.Is(err, transientMarker)
}

type RetryConfig struct {
	Attempts int
	Backoff  time.Duration
}

func NormalizeRetryConfig(cfg RetryConfig) RetryConfig {
	if cfg.Attempts < 1 {
		cfg.Attempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 25 * time.Millisecond
	}
	return cfg
}

// Retry runs fn up to cfg.Attempts times, backing off between tries.
// Non-transient errors abort immediately; the last error is returned
// still carrying its transient mark so callers can surface the kind.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	cfg = NormalizeRetryConfig(cfg)

	var err error
	for i := 0; i < cfg.Attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		if i == cfg.Attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.Backoff << i):
		}
	}

	return err
}
