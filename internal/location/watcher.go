package location

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/locator/internal/core/domain"
	"github.com/vietddude/locator/internal/infra/position"
)

// WatchHandle identifies a live watch.
type WatchHandle string

// WatchConfig holds the subscription parameters shared by all watches.
type WatchConfig struct {
	DistanceFilter float64       `yaml:"distance_filter"`
	MinInterval    time.Duration `yaml:"min_interval"`
	MaxInterval    time.Duration `yaml:"max_interval"`
}

// DefaultWatchConfig returns the built-in watch settings.
func DefaultWatchConfig() WatchConfig {
	return WatchConfig{
		DistanceFilter: 10,
		MinInterval:    5 * time.Second,
		MaxInterval:    30 * time.Second,
	}
}

// Watcher manages continuous position subscriptions keyed by handle.
// Updates and errors are forwarded verbatim; nothing is retried.
type Watcher struct {
	cfg      WatchConfig
	provider position.Provider
	observer Observer

	mu      sync.Mutex
	watches map[WatchHandle]*watch
	wg      sync.WaitGroup
}

type watch struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher creates a watcher. A nil observer discards events.
func NewWatcher(cfg WatchConfig, provider position.Provider, observer Observer) *Watcher {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Watcher{
		cfg:      cfg,
		provider: provider,
		observer: observer,
		watches:  make(map[WatchHandle]*watch),
	}
}

// Watch opens a subscription and returns its handle. onLocation receives
// every update; onError receives provider errors, including a failure to
// open the subscription. The handle stays valid for Cancel and Done in every case.
func (w *Watcher) Watch(onLocation func(domain.Location), onError func(error), highAccuracy bool) WatchHandle {
	h, err := w.Open(onLocation, onError, highAccuracy)
	if err != nil && onError != nil {
		onError(err)
	}
	return h
}

// Open is Watch with the subscription failure returned instead of passed
// to onError. The handle is usable even when err is non-nil.
func (w *Watcher) Open(onLocation func(domain.Location), onError func(error), highAccuracy bool) (WatchHandle, error) {
	h := WatchHandle(uuid.NewString())
	ctx, cancel := context.WithCancel(context.Background())

	updates, err := w.provider.Watch(ctx, position.WatchRequest{
		HighAccuracy:   highAccuracy,
		DistanceFilter: w.cfg.DistanceFilter,
		MinInterval:    w.cfg.MinInterval,
		MaxInterval:    w.cfg.MaxInterval,
	})
	if err != nil {
		cancel()
		return h, err
	}

	wt := &watch{cancel: cancel, done: make(chan struct{})}
	w.mu.Lock()
	w.watches[h] = wt
	w.mu.Unlock()
	w.observer.WatchStarted(h, highAccuracy)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer close(wt.done)
		defer w.remove(h)

		for upd := range updates {
			if ctx.Err() != nil {
				continue
			}
			if upd.Err != nil {
				if onError != nil {
					onError(upd.Err)
				}
				continue
			}
			if onLocation != nil {
				onLocation(upd.Location)
			}
		}
	}()

	return h, nil
}

// Cancel stops the watch. Unknown or already canceled handles are ignored.
func (w *Watcher) Cancel(h WatchHandle) {
	w.remove(h)
}

// Done returns a channel closed once the watch has ended, whether canceled or
// because the provider stream closed. Unknown handles are already done.
func (w *Watcher) Done(h WatchHandle) <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	if wt, ok := w.watches[h]; ok {
		return wt.done
	}
	return closedChan
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Active returns the number of live watches.
func (w *Watcher) Active() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watches)
}

// Close cancels every watch and waits for their forwarders to exit.
func (w *Watcher) Close() {
	w.mu.Lock()
	handles := make([]WatchHandle, 0, len(w.watches))
	for h := range w.watches {
		handles = append(handles, h)
	}
	w.mu.Unlock()

	for _, h := range handles {
		w.remove(h)
	}
	w.wg.Wait()
}

func (w *Watcher) remove(h WatchHandle) {
	w.mu.Lock()
	wt, ok := w.watches[h]
	delete(w.watches, h)
	w.mu.Unlock()

	if !ok {
		return
	}
	wt.cancel()
	w.observer.WatchStopped(h)
}
