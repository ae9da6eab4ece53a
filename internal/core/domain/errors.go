package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of acquisition failure classes.
type ErrorKind int

const (
	KindProviderError ErrorKind = iota
	KindPermissionDenied
	KindServicesDisabled
	KindTimeout
	KindConcurrentRequestRejected
)

func (k ErrorKind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission_denied"
	case KindServicesDisabled:
		return "services_disabled"
	case KindTimeout:
		return "timeout"
	case KindConcurrentRequestRejected:
		return "concurrent_request_rejected"
	default:
		return "provider_error"
	}
}

// IsFatal reports whether the kind needs user or system remediation.
func (k ErrorKind) IsFatal() bool {
	return k == KindPermissionDenied || k == KindServicesDisabled
}

// IsRetryable reports whether the kind stems from transient signal or timing conditions.
func (k ErrorKind) IsRetryable() bool {
	return k == KindTimeout || k == KindProviderError
}

// Sentinels for errors.Is matching by kind.
var (
	ErrProviderError             = &LocationError{Kind: KindProviderError}
	ErrPermissionDenied          = &LocationError{Kind: KindPermissionDenied}
	ErrServicesDisabled          = &LocationError{Kind: KindServicesDisabled}
	ErrTimeout                   = &LocationError{Kind: KindTimeout}
	ErrConcurrentRequestRejected = &LocationError{Kind: KindConcurrentRequestRejected}
)

// LocationError is the classified error surfaced by the acquisition subsystem.
type LocationError struct {
	Kind ErrorKind
	Op   string
	Err  error

	// Prompt is set when the caller asked for alerting on failure.
	Prompt string
}

// NewError creates a classified error.
func NewError(kind ErrorKind, op string, err error) *LocationError {
	return &LocationError{Kind: kind, Op: op, Err: err}
}

// Errorf creates a classified error with a formatted cause.
func Errorf(kind ErrorKind, op, format string, args ...any) *LocationError {
	return &LocationError{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *LocationError) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LocationError) Unwrap() error {
	return e.Err
}

// Is matches sentinels (no Op, no cause) by kind.
func (e *LocationError) Is(target error) bool {
	t, ok := target.(*LocationError)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf classifies any error. Unclassified errors are provider errors.
func KindOf(err error) ErrorKind {
	var le *LocationError
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindProviderError
}

// Classify returns err as a *LocationError, wrapping unclassified errors
// as provider errors.
func Classify(op string, err error) *LocationError {
	if err == nil {
		return nil
	}
	var le *LocationError
	if errors.As(err, &le) {
		return le
	}
	return NewError(KindProviderError, op, err)
}

// WithPrompt returns a copy of err carrying the remediation prompt for its kind.
// Errors that are not classified are returned unchanged.
func WithPrompt(err error) error {
	var le *LocationError
	if !errors.As(err, &le) {
		return err
	}
	cp := *le
	cp.Prompt = Prompt(le.Kind)
	return &cp
}

// Prompt returns the user-facing remediation text for a kind.
func Prompt(kind ErrorKind) string {
	switch kind {
	case KindPermissionDenied:
		return "Location permission is required. Please grant location access in the app settings."
	case KindServicesDisabled:
		return "Location services are turned off. Please enable location services and try again."
	case KindTimeout, KindProviderError:
		return "Unable to get your location. The signal may be too weak, please try again."
	default:
		return ""
	}
}
