package position

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vietddude/locator/internal/core/domain"
)

// Positioning service methods. Messages are google.protobuf.Struct so no
// generated stubs are needed on either side.
const (
	MethodGetPosition   = "/locator.v1.Positioning/GetPosition"
	MethodWatchPosition = "/locator.v1.Positioning/WatchPosition"
)

// ErrorInfo reasons a positioning server may attach to a status.
const (
	ReasonPermissionDenied = "LOCATION_PERMISSION_DENIED"
	ReasonServicesDisabled = "LOCATION_SERVICES_DISABLED"
)

// GRPCProvider talks to a remote positioning service (e.g. the device agent).
type GRPCProvider struct {
	name string
	conn grpc.ClientConnInterface
	own  *grpc.ClientConn
}

// NewGRPCProvider creates a new gRPC provider.
func NewGRPCProvider(name, endpoint string) (*GRPCProvider, error) {
	target := endpoint
	var opts []grpc.DialOption

	if strings.HasPrefix(endpoint, "https://") || strings.HasSuffix(endpoint, ":443") {
		creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
		opts = append(opts, grpc.WithTransportCredentials(creds))
		target = strings.TrimPrefix(target, "https://")
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		target = strings.TrimPrefix(target, "http://")
	}

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", target, err)
	}

	p := NewGRPCProviderFromConn(name, conn)
	p.own = conn
	return p, nil
}

// NewGRPCProviderFromConn wraps an existing connection. The caller keeps ownership of conn.
func NewGRPCProviderFromConn(name string, conn grpc.ClientConnInterface) *GRPCProvider {
	return &GRPCProvider{name: name, conn: conn}
}

// Name returns the provider's name.
func (p *GRPCProvider) Name() string {
	return p.name
}

func requestStruct(highAccuracy bool, timeout, maxAge time.Duration) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"high_accuracy": highAccuracy,
		"timeout_ms":    timeout.Milliseconds(),
		"max_age_ms":    maxAge.Milliseconds(),
	})
}

// RequestOnce calls GetPosition.
func (p *GRPCProvider) RequestOnce(ctx context.Context, req Request) (domain.Location, error) {
	const op = "grpc request"

	ctx, cancel := withTimeout(ctx, req.Timeout)
	defer cancel()

	in, err := requestStruct(req.HighAccuracy, req.Timeout, req.MaxAge)
	if err != nil {
		return domain.Location{}, domain.NewError(domain.KindProviderError, op, err)
	}

	out := &structpb.Struct{}
	if err := p.conn.Invoke(ctx, MethodGetPosition, in, out); err != nil {
		return domain.Location{}, classifyStatus(op, err)
	}

	return structLocation(op, out)
}

// Watch opens the WatchPosition server stream.
func (p *GRPCProvider) Watch(ctx context.Context, req WatchRequest) (<-chan Update, error) {
	const op = "grpc watch"

	in, err := requestStruct(req.HighAccuracy, 0, 0)
	if err != nil {
		return nil, domain.NewError(domain.KindProviderError, op, err)
	}
	in.Fields["distance_filter_m"] = structpb.NewNumberValue(req.DistanceFilter)
	in.Fields["min_interval_ms"] = structpb.NewNumberValue(float64(req.MinInterval.Milliseconds()))

	desc := &grpc.StreamDesc{StreamName: "WatchPosition", ServerStreams: true}
	stream, err := p.conn.NewStream(ctx, desc, MethodWatchPosition)
	if err != nil {
		return nil, classifyStatus(op, err)
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, classifyStatus(op, err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, classifyStatus(op, err)
	}

	raw := make(chan Update)
	go func() {
		defer close(raw)
		for {
			out := &structpb.Struct{}
			err := stream.RecvMsg(out)
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return
			}

			var upd Update
			if err != nil {
				upd.Err = classifyStatus(op, err)
			} else {
				upd.Location, upd.Err = structLocation(op, out)
			}

			select {
			case <-ctx.Done():
				return
			case raw <- upd:
			}
			if err != nil {
				return
			}
		}
	}()

	return Filter(ctx, raw, req), nil
}

// Close cleans up resources.
func (p *GRPCProvider) Close() error {
	if p.own == nil {
		return nil
	}
	return p.own.Close()
}

func structLocation(op string, s *structpb.Struct) (domain.Location, error) {
	fields := s.GetFields()
	lat, latOK := fields["latitude"]
	lng, lngOK := fields["longitude"]
	if !latOK || !lngOK {
		return domain.Location{}, domain.Errorf(domain.KindProviderError, op, "response has no coordinates")
	}

	loc := domain.Location{
		Latitude:  lat.GetNumberValue(),
		Longitude: lng.GetNumberValue(),
		Timestamp: time.Now(),
	}
	if acc, ok := fields["accuracy"]; ok {
		loc.Accuracy = domain.Meters(acc.GetNumberValue())
	}
	if ts, ok := fields["timestamp"]; ok {
		if parsed, err := time.Parse(time.RFC3339Nano, ts.GetStringValue()); err == nil {
			loc.Timestamp = parsed
		}
	}
	return loc, nil
}

// classifyStatus maps gRPC status codes and ErrorInfo reasons to error kinds.
func classifyStatus(op string, err error) *domain.LocationError {
	st, ok := status.FromError(err)
	if !ok {
		return classifyContext(op, err)
	}

	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok {
			continue
		}
		switch info.GetReason() {
		case ReasonPermissionDenied:
			return domain.NewError(domain.KindPermissionDenied, op, err)
		case ReasonServicesDisabled:
			return domain.NewError(domain.KindServicesDisabled, op, err)
		}
	}

	switch st.Code() {
	case codes.PermissionDenied:
		return domain.NewError(domain.KindPermissionDenied, op, err)
	case codes.FailedPrecondition:
		return domain.NewError(domain.KindServicesDisabled, op, err)
	case codes.DeadlineExceeded:
		return domain.NewError(domain.KindTimeout, op, err)
	default:
		return domain.NewError(domain.KindProviderError, op, err)
	}
}
