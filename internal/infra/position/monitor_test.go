package position

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/locator/internal/core/domain"
)

// =============================================================================
// Stubs
// =============================================================================

type stubProvider struct {
	name string
	loc  domain.Location
	err  error

	mu   sync.Mutex
	reqs []Request
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) RequestOnce(ctx context.Context, req Request) (domain.Location, error) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	return s.loc, s.err
}

func (s *stubProvider) Watch(ctx context.Context, req WatchRequest) (<-chan Update, error) {
	ch := make(chan Update)
	close(ch)
	return ch, s.err
}

func (s *stubProvider) Close() error { return nil }

type stubFeed struct {
	cached   domain.Location
	hasCache bool
	live     chan domain.Location
}

func (f *stubFeed) LatestFix(ctx context.Context, deviceID string) (domain.Location, bool, error) {
	return f.cached, f.hasCache, nil
}

func (f *stubFeed) Subscribe(ctx context.Context, deviceID string) (<-chan domain.Location, func() error, error) {
	return f.live, func() error { return nil }, nil
}

// =============================================================================
// Tests
// =============================================================================

func TestMonitor_Status(t *testing.T) {
	m := NewMonitor()
	if m.Status() != StatusHealthy {
		t.Errorf("new monitor should be healthy")
	}

	m.RecordFailure(domain.KindServicesDisabled)
	if m.Status() != StatusUnavailable {
		t.Errorf("fatal failure should mark unavailable, got %v", m.Status())
	}

	m.RecordSuccess(10 * time.Millisecond)
	if m.Status() != StatusHealthy {
		t.Errorf("success should clear unavailable, got %v", m.Status())
	}

	for i := 0; i < 5; i++ {
		m.RecordFailure(domain.KindTimeout)
	}
	if m.Status() != StatusDegraded {
		t.Errorf("high error rate should degrade, got %v", m.Status())
	}

	stats := m.Stats()
	if stats.Requests != 7 || stats.Failures != 6 || stats.Timeouts != 5 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.LastErrorKind != "timeout" {
		t.Errorf("LastErrorKind = %q, want timeout", stats.LastErrorKind)
	}
}

func TestMonitored_RecordsOutcomes(t *testing.T) {
	ok := NewMonitored(&stubProvider{name: "ok", loc: domain.Location{Latitude: 1}})
	if _, err := ok.RequestOnce(context.Background(), Request{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s := ok.Monitor.Stats(); s.Requests != 1 || s.Failures != 0 {
		t.Errorf("unexpected stats: %+v", s)
	}

	bad := NewMonitored(&stubProvider{name: "bad", err: domain.NewError(domain.KindTimeout, "x", nil)})
	if _, err := bad.RequestOnce(context.Background(), Request{}); err == nil {
		t.Fatal("expected error")
	}
	if s := bad.Monitor.Stats(); s.Failures != 1 || s.Timeouts != 1 {
		t.Errorf("unexpected stats: %+v", s)
	}
	if bad.Name() != "bad" {
		t.Errorf("Name() should delegate, got %s", bad.Name())
	}
}

func TestDual_Routes(t *testing.T) {
	coarse := &stubProvider{name: "network", loc: domain.Location{Latitude: 1}}
	precise := &stubProvider{name: "gpsd", loc: domain.Location{Latitude: 2}}
	d := NewDual(coarse, precise)

	loc, _ := d.RequestOnce(context.Background(), Request{HighAccuracy: false})
	if loc.Latitude != 1 {
		t.Errorf("coarse request routed to wrong backend: %+v", loc)
	}
	loc, _ = d.RequestOnce(context.Background(), Request{HighAccuracy: true})
	if loc.Latitude != 2 {
		t.Errorf("precise request routed to wrong backend: %+v", loc)
	}
	if d.Name() != "dual(network,gpsd)" {
		t.Errorf("Name() = %s", d.Name())
	}
}

func TestRedisProvider_CachedFix(t *testing.T) {
	feed := &stubFeed{
		cached:   domain.Location{Latitude: 5, Timestamp: time.Now().Add(-2 * time.Second)},
		hasCache: true,
		live:     make(chan domain.Location),
	}
	p := NewRedisProvider("feed", "valet-1", feed)

	loc, err := p.RequestOnce(context.Background(), Request{Timeout: time.Second, MaxAge: 10 * time.Second})
	if err != nil {
		t.Fatalf("RequestOnce failed: %v", err)
	}
	if loc.Latitude != 5 {
		t.Errorf("expected cached fix, got %+v", loc)
	}
}

func TestRedisProvider_StaleFixWaitsForLive(t *testing.T) {
	feed := &stubFeed{
		cached:   domain.Location{Latitude: 5, Timestamp: time.Now().Add(-time.Minute)},
		hasCache: true,
		live:     make(chan domain.Location, 1),
	}
	feed.live <- domain.Location{Latitude: 6}
	p := NewRedisProvider("feed", "valet-1", feed)

	loc, err := p.RequestOnce(context.Background(), Request{Timeout: time.Second, MaxAge: 10 * time.Second})
	if err != nil {
		t.Fatalf("RequestOnce failed: %v", err)
	}
	if loc.Latitude != 6 {
		t.Errorf("expected live fix, got %+v", loc)
	}
}

func TestRedisProvider_TimesOut(t *testing.T) {
	feed := &stubFeed{live: make(chan domain.Location)}
	p := NewRedisProvider("feed", "valet-1", feed)

	_, err := p.RequestOnce(context.Background(), Request{Timeout: 50 * time.Millisecond})
	if !errors.Is(err, domain.ErrTimeout) {
		t.Errorf("expected timeout, got %v", err)
	}
}

func TestStaticProvider(t *testing.T) {
	p := NewStaticProvider("stand", domain.Location{Latitude: 3, Accuracy: domain.Meters(15)}, 0)
	loc, err := p.RequestOnce(context.Background(), Request{Timeout: time.Second})
	if err != nil || loc.Latitude != 3 || loc.Timestamp.IsZero() {
		t.Errorf("unexpected result: %+v, %v", loc, err)
	}

	slow := NewStaticProvider("slow", domain.Location{}, time.Second)
	_, err = slow.RequestOnce(context.Background(), Request{Timeout: 20 * time.Millisecond})
	if !errors.Is(err, domain.ErrTimeout) {
		t.Errorf("expected timeout, got %v", err)
	}
}
