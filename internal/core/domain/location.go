package domain

import (
	"math"
	"time"
)

// Location is a single resolved position fix.
// It is a value type; copies are independent.
type Location struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  *float64  `json:"accuracy,omitempty"` // meters, 68% confidence radius
	Timestamp time.Time `json:"timestamp"`
}

// Meters returns a pointer suitable for Location.Accuracy.
func Meters(v float64) *float64 {
	return &v
}

// AccuracyMeters returns the accuracy radius and whether it is known.
func (l Location) AccuracyMeters() (float64, bool) {
	if l.Accuracy == nil {
		return 0, false
	}
	return *l.Accuracy, true
}

// WithinAccuracy reports whether the fix has a known accuracy no worse than threshold.
func (l Location) WithinAccuracy(threshold float64) bool {
	acc, ok := l.AccuracyMeters()
	return ok && acc <= threshold
}

// Better reports whether l should replace current as the best candidate.
// A fix with known accuracy beats one without; otherwise smaller accuracy wins.
// Ties keep current.
func (l Location) Better(current *Location) bool {
	if current == nil {
		return true
	}
	acc, ok := l.AccuracyMeters()
	curAcc, curOK := current.AccuracyMeters()
	switch {
	case ok && !curOK:
		return true
	case ok && curOK:
		return acc < curAcc
	default:
		return false
	}
}

// Age returns how old the fix is relative to now. Fixes without a timestamp
// are treated as infinitely old.
func (l Location) Age(now time.Time) time.Duration {
	if l.Timestamp.IsZero() {
		return time.Duration(math.MaxInt64)
	}
	return now.Sub(l.Timestamp)
}

const earthRadiusMeters = 6371000.0

// DistanceMeters returns the great-circle distance between two fixes (haversine).
func DistanceMeters(a, b Location) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}
