package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/model"
)

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(sqlite3.Error{Code: sqlite3.ErrBusy}))
	assert.True(t, IsTransient(errors.Wrap(sqlite3.Error{Code: sqlite3.ErrLocked}, "insert")))
	assert.False(t, IsTransient(sqlite3.Error{Code: sqlite3.ErrConstraint}))
	assert.False(t, IsTransient(errors.New("boom")))
	assert.False(t, IsTransient(nil))
}

func TestBackoff(t *testing.T) {
	cfg := model.RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, BackoffFactor: 2}
	assert.Equal(t, 100*time.Millisecond, backoff(cfg, 1))
	assert.Equal(t, 200*time.Millisecond, backoff(cfg, 2))
	assert.Equal(t, 800*time.Millisecond, backoff(cfg, 4))
	assert.Equal(t, time.Second, backoff(cfg, 10))

	cfg.BackoffFactor = 0
	assert.Equal(t, 100*time.Millisecond, backoff(cfg, 5))
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()
	cfg := model.RetryConfig{MaxAttempts: 4, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}

	calls := 0
	n, err := withRetry(ctx, cfg, nil, func() error {
		calls++
		if calls < 3 {
			return sqlite3.Error{Code: sqlite3.ErrBusy}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, n)

	calls = 0
	n, err = withRetry(ctx, cfg, nil, func() error {
		calls++
		return errors.New("permanent")
	})
	assert.EqualError(t, err, "permanent")
	assert.Equal(t, 1, n)

	n, err = withRetry(ctx, cfg, nil, func() error { return sqlite3.Error{Code: sqlite3.ErrLocked} })
	assert.True(t, IsTransient(err))
	assert.Equal(t, 4, n)

	n, err = withRetry(ctx, model.RetryConfig{}, nil, func() error { return sqlite3.Error{Code: sqlite3.ErrBusy} })
	assert.Error(t, err)
	assert.Equal(t, 1, n, "zero attempts still runs once")
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := model.RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour, BackoffFactor: 1}
	n, err := withRetry(ctx, cfg, nil, func() error {
		cancel()
		return sqlite3.Error{Code: sqlite3.ErrBusy}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, n)
}
