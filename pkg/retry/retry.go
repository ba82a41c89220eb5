package retry

import (
	"context"
	"time"

	"github.com/Killerbeez7/print-dungeon-backend/pkg/config"
	pkgerrors "github.com/Killerbeez7/print-dungeon-backend/pkg/errors"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/logger"
)

const (
	defaultMaxRetries  = 2
	defaultBaseBackoff = 250 * time.Millisecond
)

// Observer receives a signal each time an operation is retried.
type Observer interface {
	IncGatewayRetry(operation string)
}

// Retryer decorates fallible operations with bounded exponential backoff.
// Terminal errors (auth, validation, not-found, precondition) are surfaced
// immediately; everything else is retried until attempts are exhausted.
type Retryer struct {
	maxRetries  int
	baseBackoff time.Duration
	logg        *logger.Logger
	observer    Observer
}

// New builds a Retryer from configuration.
func New(cfg config.RetryConfig, logg *logger.Logger, observer Observer) *Retryer {
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}
	baseBackoff := cfg.BaseBackoff
	if baseBackoff <= 0 {
		baseBackoff = defaultBaseBackoff
	}
	return &Retryer{
		maxRetries:  maxRetries,
		baseBackoff: baseBackoff,
		logg:        logg,
		observer:    observer,
	}
}

// Do runs fn with up to maxRetries additional attempts. The delay before
// attempt n (1-based retries) is baseBackoff * 2^(n-1). The last error is
// returned once attempts are exhausted.
func Do[T any](ctx context.Context, r *Retryer, operation string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if r == nil {
		return fn(ctx)
	}

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			if r.observer != nil {
				r.observer.IncGatewayRetry(operation)
			}
			if err := sleep(ctx, r.backoffFor(attempt)); err != nil {
				return zero, err
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if r.logg != nil {
			attemptCtx := r.logg.WithFields(ctx, map[string]any{
				"operation": operation,
				"attempt":   attempt + 1,
				"error":     err.Error(),
			})
			r.logg.Warn(attemptCtx, "retryable operation failed")
		}

		if !pkgerrors.Retryable(err) {
			return zero, err
		}
	}
	return zero, lastErr
}

func (r *Retryer) backoffFor(attempt int) time.Duration {
	// attempt is 1-based for retries: base, 2*base, 4*base, ...
	return r.baseBackoff << (attempt - 1)
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
