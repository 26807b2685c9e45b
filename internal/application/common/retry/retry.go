// Package retry runs operations with capped exponential backoff.
package retry

import (
	"arxivshorts/internal/application/common/slogger"
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"
)

// jitterFraction bounds the random spread applied to a delay.
const jitterFraction = 0.25

// RetryConfig is loaded from the counter_retry config section.
type RetryConfig struct {
	MaxRetries    int           `json:"max_retries"    mapstructure:"max_retries"`
	InitialDelay  time.Duration `json:"initial_delay"  mapstructure:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay"      mapstructure:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor" mapstructure:"backoff_factor"`
	Jitter        bool          `json:"jitter"         mapstructure:"jitter"`
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
}

func (c *RetryConfig) Validate() error {
	switch {
	case c.MaxRetries < 0:
		return errors.New("max_retries cannot be negative")
	case c.InitialDelay < 0 || c.MaxDelay < 0:
		return errors.New("retry delays cannot be negative")
	case c.BackoffFactor < 1:
		return errors.New("backoff_factor must be at least 1")
	}
	return nil
}

// delay is the wait before retry number attempt (1-based): InitialDelay grown
// by BackoffFactor per attempt, capped at MaxDelay, then jittered.
func (c *RetryConfig) delay(attempt int) time.Duration {
	d := math.Min(
		float64(c.InitialDelay)*math.Pow(c.BackoffFactor, float64(attempt-1)),
		float64(c.MaxDelay),
	)
	if c.Jitter {
		d += (rand.Float64()*2 - 1) * jitterFraction * d
	}
	return time.Duration(d)
}

type RetryableOperation func(ctx context.Context) error

// RetryableChecker decides whether a failed attempt is worth repeating.
type RetryableChecker interface {
	IsRetryable(err error) bool
}

// CheckerFunc adapts a function to RetryableChecker.
type CheckerFunc func(err error) bool

func (f CheckerFunc) IsRetryable(err error) bool { return f(err) }

// RetryExecutor repeats an operation until it succeeds, fails with a
// non-retryable error, exhausts MaxRetries or the context ends.
type RetryExecutor struct {
	config           *RetryConfig
	retryableChecker RetryableChecker
}

// NewRetryExecutor uses DefaultRetryableChecker.
func NewRetryExecutor(config *RetryConfig) *RetryExecutor {
	return NewRetryExecutorWithChecker(config, nil)
}

func NewRetryExecutorWithChecker(config *RetryConfig, checker RetryableChecker) *RetryExecutor {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if checker == nil {
		checker = &DefaultRetryableChecker{}
	}
	return &RetryExecutor{config: config, retryableChecker: checker}
}

func (r *RetryExecutor) calculateDelay(attempt int) time.Duration {
	return r.config.delay(attempt)
}

// Execute runs operation at most MaxRetries+1 times.
func (r *RetryExecutor) Execute(ctx context.Context, operation RetryableOperation) error {
	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := r.calculateDelay(attempt)
			slogger.Debug(ctx, "Retrying operation after delay", slogger.Fields3(
				"attempt", attempt,
				"max_retries", r.config.MaxRetries,
				"delay_ms", wait.Milliseconds(),
			))
			if err := sleep(ctx, wait); err != nil {
				return err
			}
		}

		lastErr = operation(ctx)
		if lastErr == nil {
			if attempt > 0 {
				slogger.Info(ctx, "Operation succeeded after retries", slogger.Field("attempt", attempt+1))
			}
			return nil
		}
		if !r.retryableChecker.IsRetryable(lastErr) {
			slogger.Debug(ctx, "Error is not retryable", slogger.Fields2("error", lastErr.Error(), "attempt", attempt+1))
			return lastErr
		}
		slogger.Warn(ctx, "Operation failed, will retry", slogger.Fields3(
			"error", lastErr.Error(),
			"attempt", attempt+1,
			"max_retries", r.config.MaxRetries,
		))
	}
	return fmt.Errorf("operation failed after %d retries: %w", r.config.MaxRetries, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// transientMarkers are lower-case substrings of errors that usually clear up
// on their own: lost connections, lock contention and timeouts.
var transientMarkers = []string{
	"connection refused",
	"connection reset",
	"connection lost",
	"connection timed out",
	"too many connections",
	"timeout",
	"deadlock",
	"database is locked",
	"serialization failure",
	"aborted",
	"temporary",
	"try again",
	"resource temporarily unavailable",
	"unavailable",
	"network is unreachable",
	"no route to host",
}

// DefaultRetryableChecker matches error text against transientMarkers.
type DefaultRetryableChecker struct{}

func (d *DefaultRetryableChecker) IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// RetryAllChecker retries every error except context cancellation. Counter
// updates use it because a dropped update undercounts the batch.
type RetryAllChecker struct{}

func (RetryAllChecker) IsRetryable(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// WithRetryAndChecker is a one-shot Execute with config and checker.
func WithRetryAndChecker(
	ctx context.Context,
	config *RetryConfig,
	checker RetryableChecker,
	operation RetryableOperation,
) error {
	return NewRetryExecutorWithChecker(config, checker).Execute(ctx, operation)
}
