package domain

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"
)

func TestLocation_Better(t *testing.T) {
	with := func(acc float64) *Location { return &Location{Accuracy: Meters(acc)} }
	without := &Location{}

	tests := []struct {
		name      string
		candidate Location
		current   *Location
		expect    bool
	}{
		{"no current", Location{}, nil, true},
		{"smaller accuracy wins", *with(20), with(50), true},
		{"larger accuracy loses", *with(80), with(50), false},
		{"tie keeps current", *with(50), with(50), false},
		{"known beats unknown", *with(500), without, true},
		{"unknown never beats known", *without, with(500), false},
		{"unknown vs unknown keeps current", *without, without, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.candidate.Better(tt.current); got != tt.expect {
				t.Errorf("Better() = %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestLocation_WithinAccuracy(t *testing.T) {
	loc := Location{Accuracy: Meters(100)}
	if !loc.WithinAccuracy(100) {
		t.Error("accuracy equal to threshold should be accepted")
	}
	if loc.WithinAccuracy(99.9) {
		t.Error("accuracy above threshold should be rejected")
	}
	if (Location{}).WithinAccuracy(1e9) {
		t.Error("unknown accuracy should never be accepted")
	}
}

func TestLocation_Age(t *testing.T) {
	now := time.Now()
	loc := Location{Timestamp: now.Add(-3 * time.Second)}
	if got := loc.Age(now); got != 3*time.Second {
		t.Errorf("Age() = %v, want 3s", got)
	}
	if got := (Location{}).Age(now); got != time.Duration(math.MaxInt64) {
		t.Errorf("Age() of untimestamped fix = %v, want max duration", got)
	}
}

func TestDistanceMeters(t *testing.T) {
	// One degree of latitude is roughly 111.2km.
	a := Location{Latitude: 10, Longitude: 20}
	b := Location{Latitude: 11, Longitude: 20}
	d := DistanceMeters(a, b)
	if d < 111000 || d > 111400 {
		t.Errorf("DistanceMeters() = %.0f, want ~111200", d)
	}
	if DistanceMeters(a, a) != 0 {
		t.Error("distance to self should be zero")
	}
}

func TestErrorKindClassification(t *testing.T) {
	tests := []struct {
		kind      ErrorKind
		fatal     bool
		retryable bool
	}{
		{KindPermissionDenied, true, false},
		{KindServicesDisabled, true, false},
		{KindTimeout, false, true},
		{KindProviderError, false, true},
		{KindConcurrentRequestRejected, false, false},
	}

	for _, tt := range tests {
		if got := tt.kind.IsFatal(); got != tt.fatal {
			t.Errorf("%s.IsFatal() = %v, want %v", tt.kind, got, tt.fatal)
		}
		if got := tt.kind.IsRetryable(); got != tt.retryable {
			t.Errorf("%s.IsRetryable() = %v, want %v", tt.kind, got, tt.retryable)
		}
	}
}

func TestLocationError_Is(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewError(KindTimeout, "race", errors.New("no fix")))

	if !errors.Is(err, ErrTimeout) {
		t.Error("expected errors.Is to match ErrTimeout")
	}
	if errors.Is(err, ErrProviderError) {
		t.Error("did not expect errors.Is to match ErrProviderError")
	}
	if KindOf(err) != KindTimeout {
		t.Errorf("KindOf() = %v, want timeout", KindOf(err))
	}
	if KindOf(errors.New("boom")) != KindProviderError {
		t.Error("unclassified errors should be provider errors")
	}
}

func TestWithPrompt(t *testing.T) {
	base := NewError(KindServicesDisabled, "ensure", nil)
	err := WithPrompt(base)

	var le *LocationError
	if !errors.As(err, &le) {
		t.Fatal("expected *LocationError")
	}
	if le.Prompt == "" {
		t.Error("expected prompt to be set")
	}
	if base.Prompt != "" {
		t.Error("WithPrompt must not mutate its input")
	}

	plain := errors.New("plain")
	if WithPrompt(plain) != plain {
		t.Error("unclassified errors should pass through")
	}
}

func TestAcquisitionOptions_Apply(t *testing.T) {
	def := DefaultAcquisitionOptions()

	got := def.Apply(WithTimeout(2*time.Second), WithRetryCount(0), WithAlertOnFailure(false))
	if got.Timeout != 2*time.Second {
		t.Errorf("Timeout = %v, want 2s", got.Timeout)
	}
	if got.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", got.RetryCount)
	}
	if got.AlertOnFailure {
		t.Error("AlertOnFailure should be overridden to false")
	}
	if got.MaxAge != def.MaxAge || got.AcceptableAccuracy != def.AcceptableAccuracy {
		t.Error("untouched fields should keep defaults")
	}

	bad := def.Apply(WithTimeout(-1), WithRetryCount(-3), WithAcceptableAccuracy(0))
	if bad.Timeout != def.Timeout || bad.RetryCount != 0 || bad.AcceptableAccuracy != def.AcceptableAccuracy {
		t.Errorf("out-of-range values not normalized: %+v", bad)
	}
}

func TestAcquisitionOptions_CoarseProviderTimeout(t *testing.T) {
	o := AcquisitionOptions{Timeout: 2 * time.Second}
	if got := o.CoarseProviderTimeout(); got != time.Second {
		t.Errorf("default coarse timeout = %v, want 1s", got)
	}

	o.CoarseTimeout = 500 * time.Millisecond
	if got := o.CoarseProviderTimeout(); got != 500*time.Millisecond {
		t.Errorf("coarse timeout = %v, want 500ms", got)
	}

	o.CoarseTimeout = 3 * time.Second
	if got := o.CoarseProviderTimeout(); got != time.Second {
		t.Errorf("coarse timeout longer than deadline = %v, want 1s", got)
	}
}
