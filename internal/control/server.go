package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/locator/internal/core/domain"
	"github.com/vietddude/locator/internal/infra/position"
	"github.com/vietddude/locator/internal/location"
)

// Health status values reported by /health.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
	StatusCritical = "critical"
)

// Server exposes the acquisition service and health endpoints over HTTP.
type Server struct {
	service  *location.Service
	monitors map[string]*position.Monitored
	server   *http.Server
	checks   map[string]func(context.Context) error

	done     chan struct{}
	stopOnce sync.Once
}

// NewServer creates a new HTTP server.
func NewServer(service *location.Service, monitors map[string]*position.Monitored, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		service:  service,
		monitors: monitors,
		checks:   make(map[string]func(context.Context) error),
		done:     make(chan struct{}),
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/detailed", s.handleDetailed)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /v1/location", s.handleLocation)
	mux.HandleFunc("GET /v1/location/watch", s.handleWatch)
	mux.HandleFunc("POST /v1/permissions/background", s.handleBackground)

	return s
}

// AddCheck registers a backend probe reported by /health/detailed.
// Call it before Start.
func (s *Server) AddCheck(name string, check func(context.Context) error) {
	s.checks[name] = check
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop ends open watch streams and stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.done) })
	return s.server.Shutdown(ctx)
}

func (s *Server) status() string {
	if len(s.monitors) == 0 {
		return StatusHealthy
	}

	status := StatusHealthy
	unavailable := 0
	for _, m := range s.monitors {
		switch m.Monitor.Status() {
		case position.StatusUnavailable:
			unavailable++
			status = StatusDegraded
		case position.StatusDegraded:
			status = StatusDegraded
		}
	}
	// Critical only when no backend answers.
	if unavailable == len(s.monitors) {
		return StatusCritical
	}
	return status
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.status()

	code := http.StatusOK
	if status == StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": status})
}

type providerReport struct {
	Name  string                `json:"name"`
	Stats position.MonitorStats `json:"stats"`
}

type detailedReport struct {
	Status        string                    `json:"status"`
	Providers     map[string]providerReport `json:"providers"`
	Backends      map[string]string         `json:"backends,omitempty"`
	ActiveWatches int                       `json:"active_watches"`
	InFlight      bool                      `json:"in_flight"`
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	report := detailedReport{
		Status:        s.status(),
		Providers:     make(map[string]providerReport, len(s.monitors)),
		ActiveWatches: s.service.ActiveWatches(),
		InFlight:      s.service.InFlight(),
	}
	for role, m := range s.monitors {
		report.Providers[role] = providerReport{Name: m.Name(), Stats: m.Monitor.Stats()}
	}

	if len(s.checks) > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		report.Backends = make(map[string]string, len(s.checks))
		for name, check := range s.checks {
			if err := check(ctx); err != nil {
				report.Backends[name] = err.Error()
				if report.Status == StatusHealthy {
					report.Status = StatusDegraded
				}
				continue
			}
			report.Backends[name] = "ok"
		}
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	opts, err := parseOptions(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	loc, err := s.service.GetCurrentLocation(r.Context(), opts...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// parseOptions reads acquisition overrides from the query string.
func parseOptions(r *http.Request) ([]domain.Option, error) {
	q := r.URL.Query()
	var opts []domain.Option

	if v := q.Get("timeout"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout: %w", err)
		}
		opts = append(opts, domain.WithTimeout(d))
	}
	if v := q.Get("max_age"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid max_age: %w", err)
		}
		opts = append(opts, domain.WithMaxAge(d))
	}
	if v := q.Get("accuracy"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid accuracy: %w", err)
		}
		opts = append(opts, domain.WithAcceptableAccuracy(f))
	}
	if v := q.Get("retries"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid retries: %w", err)
		}
		opts = append(opts, domain.WithRetryCount(n))
	}
	if v := q.Get("background"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid background: %w", err)
		}
		opts = append(opts, domain.WithRequestBackground(b))
	}
	if v := q.Get("alert"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid alert: %w", err)
		}
		opts = append(opts, domain.WithAlertOnFailure(b))
	}
	return opts, nil
}

// watchEvent is one NDJSON line on the watch stream.
type watchEvent struct {
	Location *domain.Location `json:"location,omitempty"`
	Kind     string           `json:"kind,omitempty"`
	Error    string           `json:"error,omitempty"`
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "streaming unsupported"})
		return
	}

	highAccuracy := false
	if v := r.URL.Query().Get("high_accuracy"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid high_accuracy"})
			return
		}
		highAccuracy = b
	}

	events := make(chan watchEvent, 16)
	send := func(ev watchEvent) {
		// Drop when the client falls behind.
		select {
		case events <- ev:
		default:
		}
	}

	h, err := s.service.OpenWatch(
		func(loc domain.Location) { send(watchEvent{Location: &loc}) },
		func(err error) { send(watchEvent{Kind: domain.KindOf(err).String(), Error: err.Error()}) },
		highAccuracy,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	defer s.service.ClearWatch(h)
	done := s.service.WatchDone(h)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("X-Watch-Handle", string(h))
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	enc := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.done:
			return
		case <-done:
			// Flush what the watch delivered before it ended.
			for {
				select {
				case ev := <-events:
					if enc.Encode(ev) != nil {
						return
					}
				default:
					flusher.Flush()
					return
				}
			}
		case ev := <-events:
			if err := enc.Encode(ev); err != nil {
				slog.Debug("Watch client gone", "handle", h, "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleBackground(w http.ResponseWriter, r *http.Request) {
	granted, err := s.service.RequestBackgroundPermission(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"granted": granted})
}

type errorBody struct {
	Kind   string `json:"kind,omitempty"`
	Error  string `json:"error"`
	Prompt string `json:"prompt,omitempty"`
}

// statusFor maps an error kind to an HTTP status code.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindPermissionDenied:
		return http.StatusForbidden
	case domain.KindServicesDisabled:
		return http.StatusPreconditionFailed
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	case domain.KindConcurrentRequestRejected:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

// statusClientClosedRequest is the nginx convention for a request the client
// abandoned before a response was ready.
const statusClientClosedRequest = 499

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.Canceled) {
		slog.Debug("Client canceled request", "error", err)
		w.WriteHeader(statusClientClosedRequest)
		return
	}
	le := domain.Classify("", err)
	writeJSON(w, statusFor(le.Kind), errorBody{
		Kind:   le.Kind.String(),
		Error:  err.Error(),
		Prompt: le.Prompt,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
