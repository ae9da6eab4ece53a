// Package position implements position providers.
//
// This package contains:
//   - Provider interface: core abstraction for a positioning backend
//   - HTTPProvider: network-based (coarse) geolocation over HTTP
//   - GPSDProvider: satellite (precise) fixes from a gpsd daemon
//   - GRPCProvider: remote positioning service over gRPC
//   - RedisProvider: latest fix cache and live feed published to Redis
//   - Dual: routes coarse and precise requests to separate backends
//   - Monitored: latency and error tracking around any provider
package position

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/vietddude/locator/internal/core/domain"
)

// Request describes a one-shot position request.
type Request struct {
	// HighAccuracy selects the precise (satellite) mode instead of the fast coarse mode.
	HighAccuracy bool

	// Timeout bounds the request. Providers must give up after it elapses.
	Timeout time.Duration

	// MaxAge is how old a cached fix may be. Zero means a fresh fix is required.
	MaxAge time.Duration
}

// WatchRequest describes a continuous subscription.
type WatchRequest struct {
	HighAccuracy bool

	// DistanceFilter is the minimum movement in meters before a new update is reported.
	DistanceFilter float64

	// MinInterval is the fastest rate updates are reported at.
	MinInterval time.Duration

	// MaxInterval forces an update even without movement once it elapses. Zero disables it.
	MaxInterval time.Duration
}

// Update is a single item on a watch stream.
type Update struct {
	Location domain.Location
	Err      error
}

// Provider defines the interface for any positioning backend.
type Provider interface {
	// Name returns the provider identifier (e.g., "gpsd", "network")
	Name() string

	// RequestOnce performs a single position request. Errors are *domain.LocationError.
	RequestOnce(ctx context.Context, req Request) (domain.Location, error)

	// Watch opens a subscription. The channel is closed when ctx is canceled
	// or the backend terminates the stream.
	Watch(ctx context.Context, req WatchRequest) (<-chan Update, error)

	// Close cleans up resources
	Close() error
}

// withTimeout bounds ctx by the request timeout when one is set.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// classifyContext maps context expiry and I/O timeouts to a timeout and everything else to a provider error.
func classifyContext(op string, err error) *domain.LocationError {
	var le *domain.LocationError
	if errors.As(err, &le) {
		return le
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return domain.NewError(domain.KindTimeout, op, err)
	}
	return domain.NewError(domain.KindProviderError, op, err)
}

// fresh reports whether a cached fix may be returned for req.
func fresh(loc *domain.Location, req Request, now time.Time) bool {
	return loc != nil && req.MaxAge > 0 && loc.Age(now) <= req.MaxAge
}
