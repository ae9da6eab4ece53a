package position

import (
	"context"
	"time"

	"github.com/vietddude/locator/internal/core/domain"
)

// Filter applies the distance and interval settings of req to a raw update stream.
//
// A location is forwarded when:
//   - it is the first one, or
//   - MinInterval has elapsed since the last forwarded one, and either it moved
//     at least DistanceFilter meters or MaxInterval has elapsed.
//
// Errors are always forwarded. The returned channel closes when in closes or ctx ends.
func Filter(ctx context.Context, in <-chan Update, req WatchRequest) <-chan Update {
	out := make(chan Update)

	go func() {
		defer close(out)

		var (
			last   *domain.Location
			lastAt time.Time
		)

		for {
			var upd Update
			select {
			case <-ctx.Done():
				return
			case u, ok := <-in:
				if !ok {
					return
				}
				upd = u
			}

			if upd.Err == nil {
				now := time.Now()
				if !shouldForward(last, lastAt, upd.Location, now, req) {
					continue
				}
				loc := upd.Location
				last = &loc
				lastAt = now
			}

			select {
			case <-ctx.Done():
				return
			case out <- upd:
			}
		}
	}()

	return out
}

func shouldForward(
	last *domain.Location,
	lastAt time.Time,
	loc domain.Location,
	now time.Time,
	req WatchRequest,
) bool {
	if last == nil {
		return true
	}

	// Polled sources stamp on arrival, so fetch jitter can land a tick just
	// short of MinInterval.
	elapsed := now.Sub(lastAt)
	if elapsed < req.MinInterval-req.MinInterval/4 {
		return false
	}
	if req.MaxInterval > 0 && elapsed >= req.MaxInterval {
		return true
	}
	return domain.DistanceMeters(*last, loc) >= req.DistanceFilter
}
