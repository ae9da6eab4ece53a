package domain

import "fmt"

// PermissionKind identifies a location permission the OS can grant.
type PermissionKind string

const (
	PermissionFine       PermissionKind = "fine"       // precise foreground
	PermissionCoarse     PermissionKind = "coarse"     // approximate foreground
	PermissionBackground PermissionKind = "background" // always / background tracking
)

// ParsePermissionKind converts a config or wire value to a PermissionKind.
func ParsePermissionKind(s string) (PermissionKind, error) {
	switch k := PermissionKind(s); k {
	case PermissionFine, PermissionCoarse, PermissionBackground:
		return k, nil
	default:
		return "", fmt.Errorf("unknown permission kind %q", s)
	}
}

// PermissionState is a snapshot taken on each acquisition attempt.
// It is never persisted.
type PermissionState struct {
	ForegroundGranted bool `json:"foreground_granted"`
	BackgroundGranted bool `json:"background_granted"`
	ServicesEnabled   bool `json:"services_enabled"`
}
