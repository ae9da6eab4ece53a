package position

import (
	"context"
	"time"

	"github.com/vietddude/locator/internal/core/domain"
)

// StaticProvider always reports the same position after an optional delay.
// Used for fixed kiosks at a valet stand and for local development.
type StaticProvider struct {
	name     string
	location domain.Location
	delay    time.Duration
}

// NewStaticProvider creates a provider answering with loc after delay.
func NewStaticProvider(name string, loc domain.Location, delay time.Duration) *StaticProvider {
	return &StaticProvider{name: name, location: loc, delay: delay}
}

// Name returns the provider's name.
func (p *StaticProvider) Name() string {
	return p.name
}

// RequestOnce returns the configured location, or a timeout when the delay
// exceeds the request timeout.
func (p *StaticProvider) RequestOnce(ctx context.Context, req Request) (domain.Location, error) {
	ctx, cancel := withTimeout(ctx, req.Timeout)
	defer cancel()

	if p.delay > 0 {
		t := time.NewTimer(p.delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return domain.Location{}, classifyContext("static request", ctx.Err())
		case <-t.C:
		}
	}

	loc := p.location
	loc.Timestamp = time.Now()
	return loc, nil
}

// Watch emits the configured location every MinInterval (at least one second).
func (p *StaticProvider) Watch(ctx context.Context, req WatchRequest) (<-chan Update, error) {
	interval := max(req.MinInterval, time.Second)
	raw := poll(ctx, interval, func(ctx context.Context) (domain.Location, error) {
		loc := p.location
		loc.Timestamp = time.Now()
		return loc, nil
	})
	return Filter(ctx, raw, req), nil
}

// Close is a no-op.
func (p *StaticProvider) Close() error {
	return nil
}
