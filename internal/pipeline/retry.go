package pipeline

import (
	"context"
	"math"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/logger"
	"go-migrate-pipeline/internal/model"
)

// IsTransient reports whether err is worth retrying: SQLite busy or locked.
func IsTransient(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}

// backoff returns the delay before attempt (1-based) is retried.
func backoff(cfg model.RetryConfig, attempt int) time.Duration {
	factor := cfg.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	delay := time.Duration(float64(cfg.InitialDelay) * math.Pow(factor, float64(attempt-1)))
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return delay
}

// withRetry runs op until it succeeds, fails with a non-transient error, or
// MaxAttempts is reached. It returns the number of attempts made.
func withRetry(ctx context.Context, cfg model.RetryConfig, log *zap.SugaredLogger, op func() error) (int, error) {
	log = logger.OrNop(log)
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(); err == nil {
			return attempt, nil
		}
		if !IsTransient(err) || attempt == attempts {
			return attempt, err
		}
		delay := backoff(cfg, attempt)
		log.Debugw("Retrying transient failure", "attempt", attempt, "delay", delay, "error", err)
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return attempt, ctx.Err()
		case <-t.C:
		}
	}
	return attempts, err
}
