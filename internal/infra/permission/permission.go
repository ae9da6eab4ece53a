// Package permission provides location permission backends and settings launchers.
package permission

import (
	"context"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/vietddude/locator/internal/core/domain"
)

// Provider checks and requests location permissions.
type Provider interface {
	// Check returns whether kind is currently granted.
	Check(ctx context.Context, kind domain.PermissionKind) (bool, error)

	// Request asks for kind and returns whether it ended up granted.
	// If already granted, returns immediately.
	Request(ctx context.Context, kind domain.PermissionKind) (bool, error)
}

// SettingsLauncher sends the user to the system location settings.
// It returns once the user is back (or immediately when that cannot be observed).
type SettingsLauncher interface {
	OpenLocationSettings(ctx context.Context) error
}

// StaticStore is an in-memory Provider. Grants hold the current state;
// Policy decides what a Request for a not-yet-granted kind resolves to.
type StaticStore struct {
	mu     sync.RWMutex
	grants map[domain.PermissionKind]bool
	policy map[domain.PermissionKind]bool

	requests map[domain.PermissionKind]int
}

// NewStaticStore creates a store with initial grants and a request policy.
func NewStaticStore(grants, policy map[domain.PermissionKind]bool) *StaticStore {
	s := &StaticStore{
		grants:   make(map[domain.PermissionKind]bool),
		policy:   make(map[domain.PermissionKind]bool),
		requests: make(map[domain.PermissionKind]int),
	}
	for k, v := range grants {
		s.grants[k] = v
	}
	for k, v := range policy {
		s.policy[k] = v
	}
	return s
}

// Check returns the current grant.
func (s *StaticStore) Check(_ context.Context, kind domain.PermissionKind) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grants[kind], nil
}

// Request applies the policy for kind and records the request.
func (s *StaticStore) Request(_ context.Context, kind domain.PermissionKind) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests[kind]++
	if s.grants[kind] {
		return true, nil
	}
	granted := s.policy[kind]
	s.grants[kind] = granted
	return granted, nil
}

// Set changes a grant directly (e.g. the user toggled it in system settings).
func (s *StaticStore) Set(kind domain.PermissionKind, granted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[kind] = granted
}

// Requests returns how many times kind was requested.
func (s *StaticStore) Requests(kind domain.PermissionKind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requests[kind]
}

// CommandLauncher runs a command (e.g. "gnome-control-center location") and
// waits for it to exit.
type CommandLauncher struct {
	Command []string
}

// OpenLocationSettings runs the configured command.
func (l *CommandLauncher) OpenLocationSettings(ctx context.Context) error {
	if len(l.Command) == 0 {
		return nil
	}
	cmd := exec.CommandContext(ctx, l.Command[0], l.Command[1:]...)
	return cmd.Run()
}

// LogLauncher only records that the user should be sent to settings.
type LogLauncher struct{}

// OpenLocationSettings logs the prompt.
func (LogLauncher) OpenLocationSettings(ctx context.Context) error {
	slog.WarnContext(ctx, "Location services disabled, user should open location settings")
	return nil
}
