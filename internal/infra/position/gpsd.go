package position

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/vietddude/locator/internal/core/domain"
)

const gpsdWatchCommand = `?WATCH={"enable":true,"json":true};` + "\n"

// gpsd fix modes (TPV "mode").
const (
	gpsdModeNoFix = 1
	gpsdMode2D    = 2
	gpsdMode3D    = 3
)

// gpsdReport covers the fields of the gpsd JSON objects we consume.
type gpsdReport struct {
	Class   string            `json:"class"`
	Mode    int               `json:"mode"`
	Time    string            `json:"time"`
	Lat     *float64          `json:"lat"`
	Lon     *float64          `json:"lon"`
	Eph     *float64          `json:"eph"`
	Epx     *float64          `json:"epx"`
	Epy     *float64          `json:"epy"`
	Devices []json.RawMessage `json:"devices"`
}

// GPSDProvider reads satellite fixes from a gpsd daemon over its JSON protocol.
// A refused connection or a daemon without devices is reported as disabled
// location services.
type GPSDProvider struct {
	name   string
	addr   string
	dialer net.Dialer

	mu   sync.RWMutex
	last *domain.Location
}

// NewGPSDProvider creates a provider for the gpsd instance at addr (host:port).
func NewGPSDProvider(name, addr string) *GPSDProvider {
	return &GPSDProvider{
		name:   name,
		addr:   addr,
		dialer: net.Dialer{KeepAlive: 30 * time.Second},
	}
}

// Name returns the provider's name.
func (p *GPSDProvider) Name() string {
	return p.name
}

// RequestOnce waits for the next usable TPV report. High-accuracy requests
// require a 3D fix; coarse requests accept a 2D fix.
func (p *GPSDProvider) RequestOnce(ctx context.Context, req Request) (domain.Location, error) {
	const op = "gpsd request"

	p.mu.RLock()
	cached := p.last
	p.mu.RUnlock()
	if fresh(cached, req, time.Now()) {
		return *cached, nil
	}

	ctx, cancel := withTimeout(ctx, req.Timeout)
	defer cancel()

	conn, err := p.open(ctx, op)
	if err != nil {
		return domain.Location{}, err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	minMode := gpsdMode2D
	if req.HighAccuracy {
		minMode = gpsdMode3D
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		loc, ok, err := p.handleLine(scanner.Bytes(), minMode, op)
		if err != nil {
			return domain.Location{}, err
		}
		if ok {
			return loc, nil
		}
	}

	if ctx.Err() != nil {
		return domain.Location{}, classifyContext(op, ctx.Err())
	}
	if err := scanner.Err(); err != nil {
		return domain.Location{}, classifyContext(op, err)
	}
	return domain.Location{}, domain.NewError(domain.KindProviderError, op, io.ErrUnexpectedEOF)
}

// handleLine decodes one report and returns a location when it satisfies minMode.
func (p *GPSDProvider) handleLine(line []byte, minMode int, op string) (domain.Location, bool, error) {
	var rep gpsdReport
	if err := json.Unmarshal(line, &rep); err != nil {
		// gpsd may emit objects we do not model; skip anything unparsable.
		return domain.Location{}, false, nil
	}

	switch rep.Class {
	case "DEVICES":
		if len(rep.Devices) == 0 {
			return domain.Location{}, false, domain.Errorf(domain.KindServicesDisabled, op, "gpsd has no devices")
		}
	case "TPV":
		loc, ok := tpvLocation(rep, minMode)
		if ok {
			p.mu.Lock()
			p.last = &loc
			p.mu.Unlock()
		}
		return loc, ok, nil
	}
	return domain.Location{}, false, nil
}

func (p *GPSDProvider) open(ctx context.Context, op string) (net.Conn, error) {
	conn, err := p.dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		if ctx.Err() != nil {
			return nil, classifyContext(op, ctx.Err())
		}
		if errors.Is(err, syscall.ECONNREFUSED) {
			return nil, domain.NewError(domain.KindServicesDisabled, op, err)
		}
		return nil, classifyContext(op, err)
	}

	if _, err := io.WriteString(conn, gpsdWatchCommand); err != nil {
		_ = conn.Close()
		return nil, classifyContext(op, fmt.Errorf("enable watch: %w", err))
	}
	return conn, nil
}

// tpvLocation converts a TPV report into a Location when the fix is good enough.
func tpvLocation(rep gpsdReport, minMode int) (domain.Location, bool) {
	if rep.Mode < minMode || rep.Mode <= gpsdModeNoFix || rep.Lat == nil || rep.Lon == nil {
		return domain.Location{}, false
	}

	loc := domain.Location{
		Latitude:  *rep.Lat,
		Longitude: *rep.Lon,
		Timestamp: time.Now(),
	}

	switch {
	case rep.Eph != nil:
		loc.Accuracy = domain.Meters(*rep.Eph)
	case rep.Epx != nil && rep.Epy != nil:
		loc.Accuracy = domain.Meters(max(*rep.Epx, *rep.Epy))
	}

	if rep.Time != "" {
		if ts, err := time.Parse(time.RFC3339Nano, rep.Time); err == nil {
			loc.Timestamp = ts
		}
	}
	return loc, true
}

// Watch streams TPV reports until ctx ends or gpsd closes the connection.
func (p *GPSDProvider) Watch(ctx context.Context, req WatchRequest) (<-chan Update, error) {
	const op = "gpsd watch"

	conn, err := p.open(ctx, op)
	if err != nil {
		return nil, err
	}

	minMode := gpsdMode2D
	if req.HighAccuracy {
		minMode = gpsdMode3D
	}

	raw := make(chan Update)
	go func() {
		defer close(raw)
		defer conn.Close()
		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		defer stop()

		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			loc, ok, err := p.handleLine(scanner.Bytes(), minMode, op)
			if !ok && err == nil {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case raw <- Update{Location: loc, Err: err}:
			}
		}

		if ctx.Err() != nil {
			return
		}
		err := scanner.Err()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		select {
		case <-ctx.Done():
		case raw <- Update{Err: classifyContext(op, err)}:
		}
	}()

	return Filter(ctx, raw, req), nil
}

// Close is a no-op; connections are per request.
func (p *GPSDProvider) Close() error {
	return nil
}
