package position

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/locator/internal/core/domain"
)

// ProviderStatus represents the health state of a provider.
type ProviderStatus int

const (
	StatusHealthy     ProviderStatus = iota // Provider is answering normally
	StatusDegraded                          // Provider is slow or timing out often
	StatusUnavailable                       // Provider reports disabled services or keeps failing
)

func (s ProviderStatus) String() string {
	switch s {
	case StatusDegraded:
		return "degraded"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "healthy"
	}
}

// MonitorStats holds monitoring statistics for a provider.
type MonitorStats struct {
	Status         string        `json:"status"`
	AverageLatency time.Duration `json:"average_latency"`
	Requests       int           `json:"requests"`
	Failures       int           `json:"failures"`
	Timeouts       int           `json:"timeouts"`
	ErrorRate      float64       `json:"error_rate"`
	LastSuccessAt  time.Time     `json:"last_success_at"`
	LastFailureAt  time.Time     `json:"last_failure_at"`
	LastErrorKind  string        `json:"last_error_kind,omitempty"`
}

// Monitor tracks provider latency and failures over a sliding window.
type Monitor struct {
	mu sync.RWMutex

	recentLatencies  []time.Duration
	maxLatencyWindow int

	requests      int
	failures      int
	timeouts      int
	lastSuccessAt time.Time
	lastFailureAt time.Time
	lastKind      *domain.ErrorKind

	slowResponseThreshold time.Duration
	degradedThreshold     float64
}

// NewMonitor creates a new monitor with default settings.
func NewMonitor() *Monitor {
	return &Monitor{
		recentLatencies:       make([]time.Duration, 0, 50),
		maxLatencyWindow:      50,
		slowResponseThreshold: 10 * time.Second,
		degradedThreshold:     0.3, // 30% error rate
	}
}

// RecordSuccess records a successful request with its latency.
func (m *Monitor) RecordSuccess(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests++
	m.lastSuccessAt = time.Now()
	m.lastKind = nil

	m.recentLatencies = append(m.recentLatencies, latency)
	if len(m.recentLatencies) > m.maxLatencyWindow {
		m.recentLatencies = m.recentLatencies[1:]
	}
}

// RecordFailure records a failed request.
func (m *Monitor) RecordFailure(kind domain.ErrorKind) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests++
	m.failures++
	m.lastFailureAt = time.Now()
	m.lastKind = &kind

	if kind == domain.KindTimeout {
		m.timeouts++
	}
}

// Status returns the current status of the provider.
func (m *Monitor) Status() ProviderStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statusLocked()
}

func (m *Monitor) statusLocked() ProviderStatus {
	if m.lastKind != nil && m.lastKind.IsFatal() {
		return StatusUnavailable
	}

	if m.requests >= 5 && m.errorRateLocked() > m.degradedThreshold {
		return StatusDegraded
	}

	if len(m.recentLatencies) > 5 && m.averageLatencyLocked() > m.slowResponseThreshold {
		return StatusDegraded
	}

	return StatusHealthy
}

func (m *Monitor) errorRateLocked() float64 {
	if m.requests == 0 {
		return 0
	}
	return float64(m.failures) / float64(m.requests)
}

func (m *Monitor) averageLatencyLocked() time.Duration {
	if len(m.recentLatencies) == 0 {
		return 0
	}
	var total time.Duration
	for _, lat := range m.recentLatencies {
		total += lat
	}
	return total / time.Duration(len(m.recentLatencies))
}

// Stats returns current monitoring statistics.
func (m *Monitor) Stats() MonitorStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := MonitorStats{
		Status:         m.statusLocked().String(),
		AverageLatency: m.averageLatencyLocked(),
		Requests:       m.requests,
		Failures:       m.failures,
		Timeouts:       m.timeouts,
		ErrorRate:      m.errorRateLocked(),
		LastSuccessAt:  m.lastSuccessAt,
		LastFailureAt:  m.lastFailureAt,
	}
	if m.lastKind != nil {
		stats.LastErrorKind = m.lastKind.String()
	}
	return stats
}

// Monitored wraps a Provider and records every one-shot request in a Monitor.
type Monitored struct {
	Provider
	Monitor *Monitor
}

// NewMonitored decorates p with a fresh Monitor.
func NewMonitored(p Provider) *Monitored {
	return &Monitored{Provider: p, Monitor: NewMonitor()}
}

// RequestOnce delegates to the wrapped provider and records the outcome.
func (m *Monitored) RequestOnce(ctx context.Context, req Request) (domain.Location, error) {
	start := time.Now()
	loc, err := m.Provider.RequestOnce(ctx, req)
	if err != nil {
		m.Monitor.RecordFailure(domain.KindOf(err))
		return loc, err
	}
	m.Monitor.RecordSuccess(time.Since(start))
	return loc, nil
}
