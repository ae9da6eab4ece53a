package location

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/locator/internal/core/domain"
	"github.com/vietddude/locator/internal/infra/permission"
	"github.com/vietddude/locator/internal/infra/position"
)

const (
	opGate = "permission gate"

	// probeMaxAge lets the services probe answer from any cached fix.
	probeMaxAge = 24 * time.Hour
)

// GateConfig configures the permission gate.
type GateConfig struct {
	// ProbeTimeout bounds the location services probe.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// PromptSettings sends the user to the system settings when services
	// are disabled, then probes once more.
	PromptSettings bool `yaml:"prompt_settings"`
}

// DefaultGateConfig returns the built-in gate settings.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		ProbeTimeout:   3 * time.Second,
		PromptSettings: true,
	}
}

// Gate verifies permissions and location services before an acquisition.
type Gate struct {
	cfg      GateConfig
	perms    permission.Provider
	provider position.Provider
	launcher permission.SettingsLauncher
}

// NewGate creates a gate. launcher may be nil, in which case the user is
// never sent to the settings.
func NewGate(cfg GateConfig, perms permission.Provider, provider position.Provider, launcher permission.SettingsLauncher) *Gate {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultGateConfig().ProbeTimeout
	}
	return &Gate{cfg: cfg, perms: perms, provider: provider, launcher: launcher}
}

// Ensure obtains foreground permission, verifies location services are on,
// and when needsBackground is set obtains background permission as well.
func (g *Gate) Ensure(ctx context.Context, needsBackground bool) (domain.PermissionState, error) {
	var state domain.PermissionState

	granted, err := g.RequestForeground(ctx)
	if err != nil {
		return state, err
	}
	if !granted {
		return state, domain.NewError(domain.KindPermissionDenied, opGate, errors.New("foreground location permission refused"))
	}
	state.ForegroundGranted = true

	enabled, err := g.servicesEnabled(ctx)
	if err != nil {
		return state, err
	}
	if !enabled && g.cfg.PromptSettings && g.launcher != nil {
		if err := g.launcher.OpenLocationSettings(ctx); err != nil {
			return state, domain.NewError(domain.KindServicesDisabled, opGate, fmt.Errorf("open location settings: %w", err))
		}
		if enabled, err = g.servicesEnabled(ctx); err != nil {
			return state, err
		}
	}
	if !enabled {
		return state, domain.NewError(domain.KindServicesDisabled, opGate, errors.New("location services are disabled"))
	}
	state.ServicesEnabled = true

	if !needsBackground {
		return state, nil
	}
	granted, err = g.RequestBackground(ctx)
	if err != nil {
		return state, err
	}
	if !granted {
		return state, domain.NewError(domain.KindPermissionDenied, opGate, errors.New("background location permission refused"))
	}
	state.BackgroundGranted = true
	return state, nil
}

// RequestForeground requests fine permission, falling back to coarse.
func (g *Gate) RequestForeground(ctx context.Context) (bool, error) {
	for _, kind := range []domain.PermissionKind{domain.PermissionFine, domain.PermissionCoarse} {
		granted, err := g.perms.Request(ctx, kind)
		if err != nil {
			return false, domain.NewError(domain.KindProviderError, opGate, fmt.Errorf("request %s permission: %w", kind, err))
		}
		if granted {
			return true, nil
		}
	}
	return false, nil
}

// ForegroundGranted reports whether fine or coarse permission is held, without prompting.
func (g *Gate) ForegroundGranted(ctx context.Context) (bool, error) {
	for _, kind := range []domain.PermissionKind{domain.PermissionFine, domain.PermissionCoarse} {
		granted, err := g.perms.Check(ctx, kind)
		if err != nil {
			return false, domain.NewError(domain.KindProviderError, opGate, fmt.Errorf("check %s permission: %w", kind, err))
		}
		if granted {
			return true, nil
		}
	}
	return false, nil
}

// RequestBackground requests background permission. It fails with
// PermissionDenied while foreground permission is not held.
func (g *Gate) RequestBackground(ctx context.Context) (bool, error) {
	fg, err := g.ForegroundGranted(ctx)
	if err != nil {
		return false, err
	}
	if !fg {
		return false, domain.NewError(domain.KindPermissionDenied, opGate, errors.New("background permission requires foreground permission first"))
	}

	granted, err := g.perms.Request(ctx, domain.PermissionBackground)
	if err != nil {
		return false, domain.NewError(domain.KindProviderError, opGate, fmt.Errorf("request background permission: %w", err))
	}
	return granted, nil
}

// servicesEnabled probes with a fast coarse request. Only a ServicesDisabled
// failure counts as disabled; weak signal is left to the race.
func (g *Gate) servicesEnabled(ctx context.Context) (bool, error) {
	_, err := g.provider.RequestOnce(ctx, position.Request{
		HighAccuracy: false,
		Timeout:      g.cfg.ProbeTimeout,
		MaxAge:       probeMaxAge,
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	return err == nil || domain.KindOf(err) != domain.KindServicesDisabled, nil
}
