package position

import (
	"context"
	"errors"
	"fmt"

	"github.com/vietddude/locator/internal/core/domain"
)

// Dual routes coarse requests to one backend and precise requests to another,
// mirroring a device with separate network and satellite positioning.
type Dual struct {
	Coarse  Provider
	Precise Provider
}

// NewDual creates a router over a coarse and a precise backend.
func NewDual(coarse, precise Provider) *Dual {
	return &Dual{Coarse: coarse, Precise: precise}
}

func (d *Dual) pick(highAccuracy bool) Provider {
	if highAccuracy {
		return d.Precise
	}
	return d.Coarse
}

// Name returns the combined provider identifier.
func (d *Dual) Name() string {
	return fmt.Sprintf("dual(%s,%s)", d.Coarse.Name(), d.Precise.Name())
}

// RequestOnce routes by req.HighAccuracy.
func (d *Dual) RequestOnce(ctx context.Context, req Request) (domain.Location, error) {
	return d.pick(req.HighAccuracy).RequestOnce(ctx, req)
}

// Watch routes by req.HighAccuracy.
func (d *Dual) Watch(ctx context.Context, req WatchRequest) (<-chan Update, error) {
	return d.pick(req.HighAccuracy).Watch(ctx, req)
}

// Close closes both backends.
func (d *Dual) Close() error {
	return errors.Join(d.Coarse.Close(), d.Precise.Close())
}
