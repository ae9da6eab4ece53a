package position

import (
	"context"
	"time"

	"github.com/vietddude/locator/internal/core/domain"
)

// FixFeed is a shared store of the latest fix per device plus a live stream
// of new fixes. It is implemented by the Redis client.
type FixFeed interface {
	LatestFix(ctx context.Context, deviceID string) (domain.Location, bool, error)
	Subscribe(ctx context.Context, deviceID string) (<-chan domain.Location, func() error, error)
}

// RedisProvider serves positions that a device gateway publishes to Redis.
// Cached fixes satisfy requests within MaxAge; otherwise the next published
// fix is awaited until the request times out.
type RedisProvider struct {
	name     string
	deviceID string
	feed     FixFeed
}

// NewRedisProvider creates a provider reading fixes for deviceID from feed.
func NewRedisProvider(name, deviceID string, feed FixFeed) *RedisProvider {
	return &RedisProvider{name: name, deviceID: deviceID, feed: feed}
}

// Name returns the provider's name.
func (p *RedisProvider) Name() string {
	return p.name
}

// RequestOnce returns a cached fix when fresh enough, else waits for the next one.
func (p *RedisProvider) RequestOnce(ctx context.Context, req Request) (domain.Location, error) {
	const op = "redis request"

	ctx, cancel := withTimeout(ctx, req.Timeout)
	defer cancel()

	// Subscribe before reading the cache so a fix published in between is not lost.
	fixes, unsubscribe, err := p.feed.Subscribe(ctx, p.deviceID)
	if err != nil {
		return domain.Location{}, classifyContext(op, err)
	}
	defer unsubscribe()

	cached, ok, err := p.feed.LatestFix(ctx, p.deviceID)
	if err != nil {
		return domain.Location{}, classifyContext(op, err)
	}
	if ok && fresh(&cached, req, time.Now()) {
		return cached, nil
	}

	select {
	case <-ctx.Done():
		return domain.Location{}, classifyContext(op, ctx.Err())
	case loc, open := <-fixes:
		if !open {
			return domain.Location{}, domain.Errorf(domain.KindProviderError, op, "subscription closed")
		}
		return loc, nil
	}
}

// Watch forwards every published fix through the filter.
func (p *RedisProvider) Watch(ctx context.Context, req WatchRequest) (<-chan Update, error) {
	fixes, unsubscribe, err := p.feed.Subscribe(ctx, p.deviceID)
	if err != nil {
		return nil, classifyContext("redis watch", err)
	}

	raw := make(chan Update)
	go func() {
		defer close(raw)
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case loc, open := <-fixes:
				if !open {
					return
				}
				select {
				case <-ctx.Done():
					return
				case raw <- Update{Location: loc}:
				}
			}
		}
	}()

	return Filter(ctx, raw, req), nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (p *RedisProvider) Close() error {
	return nil
}
