// Package location implements one-shot and continuous location acquisition:
// the permission gate, the coarse/precise strategy race, the retry
// orchestrator with its single-flight guard, and the continuous watcher.
package location

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/locator/internal/core/domain"
	"github.com/vietddude/locator/internal/infra/position"
)

const opRace = "race"

type strategyResult struct {
	strategy Strategy
	loc      domain.Location
	err      error
	elapsed  time.Duration
}

// Racer runs the coarse and precise strategies concurrently and settles on
// the first of early-accept, both-complete or deadline.
type Racer struct {
	provider position.Provider
	observer Observer
}

// NewRacer creates a racer over provider. A nil observer discards events.
func NewRacer(provider position.Provider, observer Observer) *Racer {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Racer{provider: provider, observer: observer}
}

// Race performs one acquisition attempt.
//
// Provider calls are not canceled when the race settles or its deadline
// fires; they run to their own timeout and their results are discarded.
// Canceling ctx ends the race with ctx.Err().
func (r *Racer) Race(ctx context.Context, opts domain.AcquisitionOptions) (domain.Location, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = domain.DefaultAcquisitionOptions().Timeout
	}

	start := time.Now()
	r.observer.RaceStarted()

	// Buffered so strategies never block on a settled race.
	results := make(chan strategyResult, 2)
	detached := context.WithoutCancel(ctx)

	launch := func(s Strategy, req position.Request) {
		go func() {
			loc, err := r.provider.RequestOnce(detached, req)
			results <- strategyResult{strategy: s, loc: loc, err: err, elapsed: time.Since(start)}
		}()
	}
	launch(StrategyCoarse, position.Request{
		HighAccuracy: false,
		Timeout:      opts.CoarseProviderTimeout(),
		MaxAge:       opts.MaxAge,
	})
	launch(StrategyPrecise, position.Request{
		HighAccuracy: true,
		Timeout:      opts.Timeout,
		MaxAge:       opts.MaxAge,
	})

	deadline := time.NewTimer(opts.Timeout)
	defer deadline.Stop()

	var (
		best    *domain.Location
		lastErr error
		pending = 2
	)

	settle := func(o Outcome, loc domain.Location, err error) (domain.Location, error) {
		r.observer.RaceSettled(o, err, time.Since(start))
		if pending > 0 {
			go r.discard(results, pending)
		}
		return loc, err
	}

	for pending > 0 {
		select {
		case res := <-results:
			pending--
			if res.err != nil {
				r.observer.StrategyCompleted(res.strategy, nil, res.err, res.elapsed)
				lastErr = res.err
				continue
			}

			loc := res.loc
			r.observer.StrategyCompleted(res.strategy, &loc, nil, res.elapsed)
			if loc.WithinAccuracy(opts.AcceptableAccuracy) {
				return settle(OutcomeEarlyAccept, loc, nil)
			}
			if loc.Better(best) {
				best = &loc
			}

		case <-deadline.C:
			if best != nil {
				return settle(OutcomeDeadline, *best, nil)
			}
			return settle(OutcomeDeadline, domain.Location{},
				domain.Errorf(domain.KindTimeout, opRace, "no location within %s", opts.Timeout))

		case <-ctx.Done():
			return settle(OutcomeCanceled, domain.Location{}, ctx.Err())
		}
	}

	if best != nil {
		return settle(OutcomeBothComplete, *best, nil)
	}
	if lastErr != nil {
		return settle(OutcomeBothComplete, domain.Location{}, domain.Classify(opRace, lastErr))
	}
	return settle(OutcomeBothComplete, domain.Location{},
		domain.NewError(domain.KindProviderError, opRace, errors.New("no strategy produced a location")))
}

// discard waits for strategies still running after settlement and reports them.
func (r *Racer) discard(results <-chan strategyResult, pending int) {
	for range pending {
		res := <-results
		if res.err != nil {
			r.observer.LateResult(res.strategy, nil, res.err)
			continue
		}
		loc := res.loc
		r.observer.LateResult(res.strategy, &loc, nil)
	}
}
