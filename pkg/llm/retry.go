package llm

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// RetryConfig bounds attempts against the backend.
type RetryConfig struct {
	// MaxAttempts includes the first call. The engine uses 2: one retry.
	MaxAttempts int
	// AttemptTimeout bounds each attempt; zero means only the caller's
	// deadline applies.
	AttemptTimeout time.Duration
	Wait           time.Duration
	MaxWait        time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    2,
		AttemptTimeout: 30 * time.Second,
		Wait:           time.Second,
		MaxWait:        10 * time.Second,
	}
}

// RetryProvider retries transient failures. Invalid content, truncation
// and caller cancellation are returned immediately.
type RetryProvider struct {
	inner  Provider
	config RetryConfig
}

func WithRetry(p Provider, cfg RetryConfig) Provider {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &RetryProvider{inner: p, config: cfg}
}

func (r *RetryProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt < r.config.MaxAttempts; attempt++ {
		resp, err := r.attempt(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !IsTransient(err) || attempt == r.config.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.backoff(err)):
		}
	}
	return nil, lastErr
}

func (r *RetryProvider) attempt(ctx context.Context, req Request) (*Response, error) {
	if r.config.AttemptTimeout <= 0 {
		return r.inner.Generate(ctx, req)
	}
	actx, cancel := context.WithTimeout(ctx, r.config.AttemptTimeout)
	defer cancel()

	resp, err := r.inner.Generate(actx, req)
	if err != nil && ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
		return nil, &ErrAttemptTimeout{After: r.config.AttemptTimeout}
	}
	return resp, err
}

func (r *RetryProvider) ModelID() string {
	return r.inner.ModelID()
}

func (r *RetryProvider) backoff(err error) time.Duration {
	var rl *ErrRateLimit
	wait := r.config.Wait
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		wait = rl.RetryAfter
	}
	if r.config.MaxWait > 0 && wait > r.config.MaxWait {
		wait = r.config.MaxWait
	}
	// ±20% jitter
	jitter := float64(wait) * 0.2 * (2*rand.Float64() - 1)
	if d := time.Duration(float64(wait) + jitter); d > 0 {
		return d
	}
	return 0
}
