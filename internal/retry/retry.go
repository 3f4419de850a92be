// Package retry runs network operations with exponential backoff and jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// DefaultInitialDelay is the delay before the first retry
	DefaultInitialDelay = 500 * time.Millisecond
	// DefaultFactor multiplies the delay after every failed attempt
	DefaultFactor = 2.0
	// DefaultMaxDelay caps a single delay
	DefaultMaxDelay = 30 * time.Second
	// DefaultMaxAttempts counts the first attempt
	DefaultMaxAttempts = 5
	// DefaultJitter is the symmetric randomization ratio applied to each delay
	DefaultJitter = 0.2
)

// Config configures an Executor
type Config struct {
	InitialDelay time.Duration
	Factor       float64
	MaxDelay     time.Duration
	MaxAttempts  int
	Jitter       float64

	// IsRetryable classifies failures. Nil means DefaultIsRetryable.
	IsRetryable func(error) bool
}

// DefaultConfig returns the recommended configuration. New fills in these
// values for unset fields, except Jitter where zero disables randomization.
func DefaultConfig() Config {
	return Config{
		InitialDelay: DefaultInitialDelay,
		Factor:       DefaultFactor,
		MaxDelay:     DefaultMaxDelay,
		MaxAttempts:  DefaultMaxAttempts,
		Jitter:       DefaultJitter,
		IsRetryable:  DefaultIsRetryable,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.InitialDelay <= 0 {
		c.InitialDelay = def.InitialDelay
	}
	if c.Factor < 1 {
		c.Factor = def.Factor
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.MaxDelay < c.InitialDelay {
		c.MaxDelay = c.InitialDelay
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.Jitter < 0 || c.Jitter >= 1 {
		c.Jitter = def.Jitter
	}
	if c.IsRetryable == nil {
		c.IsRetryable = def.IsRetryable
	}
	return c
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryHook observes every scheduled retry
type RetryHook func(attempt int, err error, delay time.Duration)

// Executor retries operations according to its Config. It holds no per-call
// state and is safe for concurrent use.
type Executor struct {
	cfg     Config
	sleep   SleepFunc
	onRetry RetryHook
}

// Option configures an Executor
type Option func(*Executor)

// WithSleep replaces the wait between attempts
func WithSleep(fn SleepFunc) Option {
	return func(e *Executor) {
		if fn != nil {
			e.sleep = fn
		}
	}
}

// WithRetryHook registers a callback invoked before each wait
func WithRetryHook(fn RetryHook) Option {
	return func(e *Executor) {
		e.onRetry = fn
	}
}

// New creates an Executor
func New(cfg Config, opts ...Option) *Executor {
	e := &Executor{
		cfg:   cfg.withDefaults(),
		sleep: sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective configuration
func (e *Executor) Config() Config {
	return e.cfg
}

// Execute runs operation until it succeeds, fails with a non-retryable error,
// or exhausts MaxAttempts. The last error is returned, wrapped with the
// attempt count when attempts ran out.
func (e *Executor) Execute(ctx context.Context, operation func(ctx context.Context) error) error {
	_, err := Do(ctx, e, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, operation(ctx)
	})
	return err
}

// Do is Execute for operations that produce a value
func Do[T any](ctx context.Context, e *Executor, operation func(ctx context.Context) (T, error)) (T, error) {
	b := e.newBackOff()

	var zero T
	for attempt := 1; ; attempt++ {
		result, err := operation(ctx)
		if err == nil {
			return result, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, err
		}
		if !e.cfg.IsRetryable(err) {
			return zero, err
		}
		if attempt >= e.cfg.MaxAttempts {
			return zero, fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		}

		delay := b.NextBackOff()
		if requested := retryAfter(err); requested > 0 {
			delay = min(requested, e.cfg.MaxDelay)
		}

		slog.Debug("Retrying operation",
			"attempt", attempt,
			"max_attempts", e.cfg.MaxAttempts,
			"delay", delay,
			"error", err)
		if e.onRetry != nil {
			e.onRetry(attempt, err, delay)
		}

		if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
			return zero, err
		}
	}
}

// newBackOff returns a fresh schedule: min(MaxDelay, Initial*Factor^(n-1)) ± Jitter
func (e *Executor) newBackOff() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     e.cfg.InitialDelay,
		RandomizationFactor: e.cfg.Jitter,
		Multiplier:          e.cfg.Factor,
		MaxInterval:         e.cfg.MaxDelay,
	}
	b.Reset()
	return b
}

// retryable is implemented by errors that know their own retry class
type retryable interface {
	Retryable() bool
}

type retryAfterer interface {
	RetryAfter() time.Duration
}

func retryAfter(err error) time.Duration {
	var ra retryAfterer
	if errors.As(err, &ra) {
		return ra.RetryAfter()
	}
	return 0
}

// DefaultIsRetryable treats HTTP 5xx and 429 (via errors exposing
// Retryable) and network-level failures as transient. Cancellation and
// everything else is permanent.
func DefaultIsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
