package position

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/vietddude/locator/internal/core/domain"
)

// HTTPProvider resolves a coarse, network-based position from an HTTP
// geolocation endpoint returning {"latitude","longitude","accuracy","timestamp"}.
type HTTPProvider struct {
	name       string
	endpoint   string
	httpClient *http.Client

	mu   sync.RWMutex
	last *domain.Location
}

// NewHTTPProvider creates a new network geolocation provider.
func NewHTTPProvider(name, endpoint string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		name:     name,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type httpFix struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Accuracy  *float64 `json:"accuracy"`
	Timestamp string   `json:"timestamp"`
}

// Name returns the provider's name.
func (p *HTTPProvider) Name() string {
	return p.name
}

// RequestOnce fetches the current network position, or returns the cached fix
// when it is younger than req.MaxAge.
func (p *HTTPProvider) RequestOnce(ctx context.Context, req Request) (domain.Location, error) {
	p.mu.RLock()
	cached := p.last
	p.mu.RUnlock()
	if fresh(cached, req, time.Now()) {
		return *cached, nil
	}

	ctx, cancel := withTimeout(ctx, req.Timeout)
	defer cancel()

	loc, err := p.fetch(ctx)
	if err != nil {
		return domain.Location{}, err
	}

	p.mu.Lock()
	p.last = &loc
	p.mu.Unlock()

	return loc, nil
}

func (p *HTTPProvider) fetch(ctx context.Context) (domain.Location, error) {
	const op = "http request"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return domain.Location{}, domain.NewError(domain.KindProviderError, op, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return domain.Location{}, classifyContext(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Location{}, classifyContext(op, fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusGatewayTimeout:
		return domain.Location{}, domain.Errorf(domain.KindTimeout, op, "http %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return domain.Location{}, domain.Errorf(domain.KindProviderError, op, "http %d: %s", resp.StatusCode, string(body))
	}

	var fix httpFix
	if err := json.Unmarshal(body, &fix); err != nil {
		return domain.Location{}, domain.NewError(domain.KindProviderError, op, fmt.Errorf("parse response: %w", err))
	}
	if fix.Latitude == nil || fix.Longitude == nil {
		return domain.Location{}, domain.Errorf(domain.KindProviderError, op, "response has no coordinates")
	}

	loc := domain.Location{
		Latitude:  *fix.Latitude,
		Longitude: *fix.Longitude,
		Accuracy:  fix.Accuracy,
		Timestamp: time.Now(),
	}
	if fix.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, fix.Timestamp); err == nil {
			loc.Timestamp = ts
		}
	}
	return loc, nil
}

// Watch polls the endpoint every MinInterval (at least one second).
func (p *HTTPProvider) Watch(ctx context.Context, req WatchRequest) (<-chan Update, error) {
	interval := max(req.MinInterval, time.Second)
	raw := poll(ctx, interval, func(ctx context.Context) (domain.Location, error) {
		return p.RequestOnce(ctx, Request{Timeout: interval})
	})
	return Filter(ctx, raw, req), nil
}

// Close cleans up resources.
func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// poll calls fetch immediately and then on every tick until ctx ends.
func poll(
	ctx context.Context,
	interval time.Duration,
	fetch func(ctx context.Context) (domain.Location, error),
) <-chan Update {
	out := make(chan Update)

	go func() {
		defer close(out)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			loc, err := fetch(ctx)
			if ctx.Err() != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case out <- Update{Location: loc, Err: err}:
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return out
}
