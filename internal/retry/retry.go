// Package retry provides context-aware retry with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Config holds the configuration for retry behavior.
type Config struct {
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
}

// Option is a functional option for configuring retry behavior.
type Option func(*Config)

// WithMaxRetries sets the maximum number of retry attempts. Default is 3.
func WithMaxRetries(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithInitialDelay sets the delay before the first retry. Default is 1s.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.initialDelay = d
		}
	}
}

// WithMaxDelay caps the delay between retries. Default is 30s.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.maxDelay = d
		}
	}
}

func defaultConfig() *Config {
	return &Config{
		maxRetries:   3,
		initialDelay: time.Second,
		maxDelay:     30 * time.Second,
		multiplier:   2.0,
	}
}

// Do executes fn, retrying on failure with exponential backoff. It stops
// early when ctx is cancelled and returns the last error once all attempts
// are exhausted.
func Do(ctx context.Context, fn func() error, opts ...Option) error {
	if fn == nil {
		return errors.New("retry: function cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	var lastErr error
	if lastErr = fn(); lastErr == nil {
		return nil
	}

	for attempt := 1; attempt <= cfg.maxRetries; attempt++ {
		delay := backoffDelay(attempt, cfg)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry aborted during backoff (attempt %d/%d): %w", attempt, cfg.maxRetries, ctx.Err())
		case <-timer.C:
		}

		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	return fmt.Errorf("retry failed after %d attempts: %w", cfg.maxRetries+1, lastErr)
}

// backoffDelay computes initialDelay * multiplier^(attempt-1), capped.
func backoffDelay(attempt int, cfg *Config) time.Duration {
	delay := float64(cfg.initialDelay) * math.Pow(cfg.multiplier, float64(attempt-1))
	if time.Duration(delay) > cfg.maxDelay {
		return cfg.maxDelay
	}
	return time.Duration(delay)
}
