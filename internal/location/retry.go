package location

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/vietddude/locator/internal/core/domain"
)

// RaceFunc performs a single acquisition attempt.
type RaceFunc func(ctx context.Context, opts domain.AcquisitionOptions) (domain.Location, error)

// Orchestrator retries failed attempts with a fixed backoff.
// PermissionDenied and ServicesDisabled abort immediately; Timeout and
// ProviderError are retried up to RetryCount additional times.
type Orchestrator struct {
	observer Observer
}

// NewOrchestrator creates an orchestrator. A nil observer discards events.
func NewOrchestrator(observer Observer) *Orchestrator {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Orchestrator{observer: observer}
}

// Run invokes race until it succeeds, fails fatally, or retries are exhausted.
// The last observed error is returned unchanged.
func (o *Orchestrator) Run(ctx context.Context, race RaceFunc, opts domain.AcquisitionOptions) (domain.Location, error) {
	retries := max(opts.RetryCount, 0)
	// NewConstant panics on a non-positive interval.
	backoff := retry.WithMaxRetries(uint64(retries), retry.NewConstant(max(opts.RetryBackoff, time.Nanosecond)))

	var (
		loc     domain.Location
		attempt int
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		result, err := race(ctx, opts)
		if err == nil {
			loc = result
			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return err
		}

		willRetry := domain.KindOf(err).IsRetryable() && attempt <= retries && ctx.Err() == nil
		o.observer.AttemptFailed(attempt, err, willRetry)
		if !willRetry {
			return err
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		return domain.Location{}, err
	}
	return loc, nil
}
