// Package retry wraps provider operations with bounded-attempt backoff.
// Only errors classified transient consume retry budget; everything else
// propagates immediately. The wrapper returns exactly what the wrapped
// operation returns on success.
package retry

import (
	"context"
	"time"

	"github.com/olusolaa/infra-deployer/internal/core/ports"
	apperrors "github.com/olusolaa/infra-deployer/internal/errors"
)

// Policy governs one wrapped call. MaxAttempts must be >= 1. The wait
// before attempt n+1 is BaseBackoff * n.
type Policy struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"min=1"`
	BaseBackoff time.Duration `mapstructure:"backoff" validate:"min=0"`
}

func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 5, BaseBackoff: 2 * time.Second}
}

// Gate is waited on before every attempt. The AWS adapter plugs its
// global rate limiter in here.
type Gate interface {
	Wait(ctx context.Context) error
}

type options struct {
	sleep     func(ctx context.Context, d time.Duration) error
	retryable func(err error) bool
	gate      Gate
}

type Option func(*options)

// WithSleep replaces the inter-attempt wait. Tests use it to observe
// backoff without real time passing.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) { o.sleep = sleep }
}

// WithRetryable replaces the transient-error classifier.
func WithRetryable(fn func(err error) bool) Option {
	return func(o *options) { o.retryable = fn }
}

func WithGate(gate Gate) Option {
	return func(o *options) { o.gate = gate }
}

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do invokes fn up to pol.MaxAttempts times. A non-transient error
// propagates unchanged without consuming budget; the final transient
// failure also propagates unchanged.
func Do[T any](ctx context.Context, logger ports.Logger, pol Policy, name string, fn func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	o := options{
		sleep:     defaultSleep,
		retryable: func(err error) bool { return apperrors.Is(err, apperrors.CodeTransient) },
	}
	for _, opt := range opts {
		opt(&o)
	}

	attempts := pol.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if o.gate != nil {
			if err := o.gate.Wait(ctx); err != nil {
				return zero, apperrors.Wrap(err, apperrors.CodeTimeout, "rate limiter wait aborted for "+name)
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !o.retryable(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		wait := pol.BaseBackoff * time.Duration(attempt)
		logger.Warnf(ctx, "%s failed (attempt %d/%d), retrying in %s: %v", name, attempt, attempts, wait, err)
		if sleepErr := o.sleep(ctx, wait); sleepErr != nil {
			return zero, apperrors.Wrap(sleepErr, apperrors.CodeTimeout, "backoff interrupted for "+name)
		}
	}

	return zero, lastErr
}
