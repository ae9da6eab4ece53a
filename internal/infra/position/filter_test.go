package position

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/locator/internal/core/domain"
)

func TestShouldForward(t *testing.T) {
	origin := domain.Location{Latitude: 10, Longitude: 106}
	// ~11m north
	near := domain.Location{Latitude: 10.0001, Longitude: 106}
	// ~111m north
	far := domain.Location{Latitude: 10.001, Longitude: 106}

	now := time.Now()
	req := WatchRequest{DistanceFilter: 50, MinInterval: time.Second, MaxInterval: 10 * time.Second}

	tests := []struct {
		name    string
		last    *domain.Location
		elapsed time.Duration
		loc     domain.Location
		expect  bool
	}{
		{"first update", nil, 0, near, true},
		{"too soon", &origin, 500 * time.Millisecond, far, false},
		{"tick arriving early", &origin, 960 * time.Millisecond, far, true},
		{"moved enough", &origin, 2 * time.Second, far, true},
		{"not moved enough", &origin, 2 * time.Second, near, false},
		{"max interval forces update", &origin, 11 * time.Second, near, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := shouldForward(tt.last, now.Add(-tt.elapsed), tt.loc, now, req)
			if got != tt.expect {
				t.Errorf("shouldForward() = %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestFilter_ForwardsErrorsAndClosesWithInput(t *testing.T) {
	in := make(chan Update)
	out := Filter(context.Background(), in, WatchRequest{DistanceFilter: 1000, MinInterval: time.Hour})

	go func() {
		in <- Update{Location: domain.Location{Latitude: 1}}
		in <- Update{Location: domain.Location{Latitude: 1.00001}} // dropped
		in <- Update{Err: errors.New("signal lost")}
		close(in)
	}()

	var got []Update
	for u := range out {
		got = append(got, u)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(got))
	}
	if got[0].Err != nil || got[1].Err == nil {
		t.Errorf("unexpected sequence: %+v", got)
	}
}

func TestFilter_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan Update)
	out := Filter(ctx, in, WatchRequest{})

	cancel()

	select {
	case _, ok := <-out:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("filter did not stop after cancel")
	}
}
