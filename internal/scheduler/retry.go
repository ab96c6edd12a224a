package scheduler

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/nodeflow/engine/internal/engineerr"
)

// RetryConfig controls node-local retry (§4.5 "auto-retried inside the
// node worker up to the handler's policy"). Algorithm unchanged from
// internal/executor/retry.go: exponential backoff with optional jitter,
// gated by engineerr.ShouldRetry (the generalization of the teacher's
// ShouldRetry/ClassifyError).
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	Jitter            bool
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        0, // handler policy default: none (§4.5)
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

type RetryableOperation func(ctx context.Context, attempt int) error

type RetryStrategy struct {
	config RetryConfig
	logger *slog.Logger
}

func NewRetryStrategy(config RetryConfig, logger *slog.Logger) *RetryStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryStrategy{config: config, logger: logger}
}

func (r *RetryStrategy) Execute(ctx context.Context, op RetryableOperation) error {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		err := op(ctx, attempt)
		if err == nil {
			if attempt > 0 {
				r.logger.Info("node operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		lastErr = err

		if attempt >= r.config.MaxRetries {
			r.logger.Error("node operation failed after all retries", "attempts", attempt+1, "error", err)
			break
		}
		if !engineerr.ShouldRetry(err, attempt, r.config.MaxRetries) {
			r.logger.Info("node operation failed with non-retryable error", "attempt", attempt+1, "error", err)
			return err
		}

		backoff := r.calculateBackoff(attempt)
		r.logger.Info("node operation failed, retrying", "attempt", attempt+1, "backoff", backoff, "error", err)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func (r *RetryStrategy) calculateBackoff(attempt int) time.Duration {
	backoff := float64(r.config.InitialBackoff) * math.Pow(r.config.BackoffMultiplier, float64(attempt))
	if backoff > float64(r.config.MaxBackoff) {
		backoff = float64(r.config.MaxBackoff)
	}
	if r.config.Jitter {
		backoff = backoff * (0.5 + rand.Float64()*0.5)
	}
	return time.Duration(backoff)
}
