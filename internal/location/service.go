package location

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/vietddude/locator/internal/core/domain"
	"github.com/vietddude/locator/internal/infra/permission"
	"github.com/vietddude/locator/internal/infra/position"
)

const opAcquire = "get current location"

// Config configures a Service.
type Config struct {
	// Defaults are the acquisition options per-call overrides are merged onto.
	Defaults domain.AcquisitionOptions
	Gate     GateConfig
	Watch    WatchConfig
}

// Service is the application-facing entry point for location acquisition.
// At most one one-shot acquisition is outstanding per Service; watches are
// independent of that limit.
type Service struct {
	defaults domain.AcquisitionOptions
	observer Observer

	gate     *Gate
	racer    *Racer
	retrier  *Orchestrator
	watcher  *Watcher
	inFlight atomic.Bool
}

// NewService wires the gate, racer, orchestrator and watcher over the given
// collaborators. launcher and observer may be nil.
func NewService(
	cfg Config,
	provider position.Provider,
	perms permission.Provider,
	launcher permission.SettingsLauncher,
	observer Observer,
) *Service {
	if observer == nil {
		observer = NopObserver{}
	}
	defaults := cfg.Defaults
	if defaults == (domain.AcquisitionOptions{}) {
		defaults = domain.DefaultAcquisitionOptions()
	}

	return &Service{
		defaults: defaults.Apply(),
		observer: observer,
		gate:     NewGate(cfg.Gate, perms, provider, launcher),
		racer:    NewRacer(provider, observer),
		retrier:  NewOrchestrator(observer),
		watcher:  NewWatcher(cfg.Watch, provider, observer),
	}
}

// GetCurrentLocation acquires the device position once. opts override the
// service defaults field by field. A call made while another is outstanding
// fails with ConcurrentRequestRejected without touching permissions or providers.
func (s *Service) GetCurrentLocation(ctx context.Context, opts ...domain.Option) (domain.Location, error) {
	start := time.Now()
	if !s.inFlight.CompareAndSwap(false, true) {
		s.observer.Rejected(domain.KindConcurrentRequestRejected, 0)
		return domain.Location{}, domain.NewError(domain.KindConcurrentRequestRejected, opAcquire,
			errors.New("another acquisition is in progress"))
	}
	defer s.inFlight.Store(false)

	o := s.defaults.Apply(opts...)
	loc, err := s.acquire(ctx, o)
	if ctxErr := ctx.Err(); err != nil && ctxErr != nil && errors.Is(err, ctxErr) {
		s.observer.Canceled(time.Since(start))
		return domain.Location{}, err
	}
	if err != nil {
		s.observer.Rejected(domain.KindOf(err), time.Since(start))
		if o.AlertOnFailure {
			err = domain.WithPrompt(err)
		}
		return domain.Location{}, err
	}

	s.observer.Acquired(loc, time.Since(start))
	return loc, nil
}

func (s *Service) acquire(ctx context.Context, o domain.AcquisitionOptions) (domain.Location, error) {
	if _, err := s.gate.Ensure(ctx, false); err != nil {
		return domain.Location{}, err
	}
	if o.RequestBackground {
		// Best effort: a refusal never blocks the foreground fetch.
		granted, err := s.gate.RequestBackground(ctx)
		s.observer.BackgroundRequested(granted, err)
	}
	return s.retrier.Run(ctx, s.racer.Race, o)
}

// InFlight reports whether a one-shot acquisition is outstanding.
func (s *Service) InFlight() bool {
	return s.inFlight.Load()
}

// WatchPosition starts a continuous watch.
func (s *Service) WatchPosition(onLocation func(domain.Location), onError func(error), highAccuracy bool) WatchHandle {
	return s.watcher.Watch(onLocation, onError, highAccuracy)
}

// OpenWatch starts a continuous watch and returns the subscription failure,
// if any, instead of passing it to onError.
func (s *Service) OpenWatch(onLocation func(domain.Location), onError func(error), highAccuracy bool) (WatchHandle, error) {
	return s.watcher.Open(onLocation, onError, highAccuracy)
}

// ClearWatch stops a watch. Unknown handles are ignored.
func (s *Service) ClearWatch(h WatchHandle) {
	s.watcher.Cancel(h)
}

// WatchDone returns a channel closed once the watch has ended.
func (s *Service) WatchDone(h WatchHandle) <-chan struct{} {
	return s.watcher.Done(h)
}

// ActiveWatches returns the number of live watches.
func (s *Service) ActiveWatches() int {
	return s.watcher.Active()
}

// RequestBackgroundPermission requests background permission. It fails with
// PermissionDenied until foreground permission has been granted.
func (s *Service) RequestBackgroundPermission(ctx context.Context) (bool, error) {
	return s.gate.RequestBackground(ctx)
}

// Close stops all watches.
func (s *Service) Close() {
	s.watcher.Close()
}
