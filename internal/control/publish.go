package control

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/locator/internal/core/domain"
	"github.com/vietddude/locator/internal/location"
)

type fixSaver interface {
	SaveFix(ctx context.Context, deviceID string, loc domain.Location, ttl time.Duration) error
}

// fixPublisher pushes every acquired fix to the shared Redis feed so other
// instances can serve it through a redis provider.
type fixPublisher struct {
	location.NopObserver

	saver    fixSaver
	deviceID string
	ttl      time.Duration
	log      *slog.Logger
}

func newFixPublisher(saver fixSaver, deviceID string, ttl time.Duration, log *slog.Logger) *fixPublisher {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &fixPublisher{saver: saver, deviceID: deviceID, ttl: ttl, log: log}
}

func (p *fixPublisher) Acquired(loc domain.Location, _ time.Duration) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := p.saver.SaveFix(ctx, p.deviceID, loc, p.ttl); err != nil {
			p.log.Warn("Failed to publish fix", "device", p.deviceID, "error", err)
		}
	}()
}
