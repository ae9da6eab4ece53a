package location

import (
	"context"
	"errors"
	"testing"

	"github.com/vietddude/locator/internal/core/domain"
	"github.com/vietddude/locator/internal/infra/permission"
	"github.com/vietddude/locator/internal/infra/position"
)

type grants = map[domain.PermissionKind]bool

// stubLauncher optionally re-enables services when the user "returns" from settings.
type stubLauncher struct {
	provider *fakeProvider
	enable   bool
	err      error
	opened   int
}

func (l *stubLauncher) OpenLocationSettings(ctx context.Context) error {
	l.opened++
	if l.enable {
		l.provider.setServicesOff(false)
	}
	return l.err
}

func TestGate_Ensure(t *testing.T) {
	tests := []struct {
		name            string
		grants          grants
		policy          grants
		servicesOff     bool
		launcherEnables bool
		promptSettings  bool
		needsBackground bool

		wantErr    error
		wantOpened int
		wantProbes int
		wantState  domain.PermissionState
	}{
		{
			name:       "fine already granted",
			grants:     grants{domain.PermissionFine: true},
			wantProbes: 1,
			wantState:  domain.PermissionState{ForegroundGranted: true, ServicesEnabled: true},
		},
		{
			name:       "fine refused, coarse granted",
			policy:     grants{domain.PermissionCoarse: true},
			wantProbes: 1,
			wantState:  domain.PermissionState{ForegroundGranted: true, ServicesEnabled: true},
		},
		{
			name:    "nothing granted",
			wantErr: domain.ErrPermissionDenied,
		},
		{
			name:            "services enabled from settings",
			grants:          grants{domain.PermissionFine: true},
			servicesOff:     true,
			launcherEnables: true,
			promptSettings:  true,
			wantOpened:      1,
			wantProbes:      2,
			wantState:       domain.PermissionState{ForegroundGranted: true, ServicesEnabled: true},
		},
		{
			name:           "services stay disabled",
			grants:         grants{domain.PermissionFine: true},
			servicesOff:    true,
			promptSettings: true,
			wantErr:        domain.ErrServicesDisabled,
			wantOpened:     1,
			wantProbes:     2,
		},
		{
			name:        "no settings prompt",
			grants:      grants{domain.PermissionFine: true},
			servicesOff: true,
			wantErr:     domain.ErrServicesDisabled,
			wantProbes:  1,
		},
		{
			name:            "background granted",
			grants:          grants{domain.PermissionFine: true},
			policy:          grants{domain.PermissionBackground: true},
			needsBackground: true,
			wantProbes:      1,
			wantState:       domain.PermissionState{ForegroundGranted: true, ServicesEnabled: true, BackgroundGranted: true},
		},
		{
			name:            "background refused",
			grants:          grants{domain.PermissionFine: true},
			needsBackground: true,
			wantErr:         domain.ErrPermissionDenied,
			wantProbes:      1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := permission.NewStaticStore(tt.grants, tt.policy)
			p := &fakeProvider{servicesOff: tt.servicesOff}
			launcher := &stubLauncher{provider: p, enable: tt.launcherEnables}
			g := NewGate(GateConfig{PromptSettings: tt.promptSettings}, store, p, launcher)

			state, err := g.Ensure(context.Background(), tt.needsBackground)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("got %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("Ensure failed: %v", err)
			} else if state != tt.wantState {
				t.Errorf("state = %+v, want %+v", state, tt.wantState)
			}
			if launcher.opened != tt.wantOpened {
				t.Errorf("settings opened %d times, want %d", launcher.opened, tt.wantOpened)
			}
			if got := p.probes(); got != tt.wantProbes {
				t.Errorf("probes = %d, want %d", got, tt.wantProbes)
			}
		})
	}
}

func TestGate_BackgroundRequiresForeground(t *testing.T) {
	store := permission.NewStaticStore(nil, grants{domain.PermissionBackground: true})
	g := NewGate(GateConfig{}, store, &fakeProvider{}, nil)

	granted, err := g.RequestBackground(context.Background())
	if !errors.Is(err, domain.ErrPermissionDenied) || granted {
		t.Fatalf("expected permission denied, got %v, %v", granted, err)
	}
	if n := store.Requests(domain.PermissionBackground); n != 0 {
		t.Errorf("background requested %d times before foreground", n)
	}
}

func TestGate_ForegroundOnlyDoesNotRequestBackground(t *testing.T) {
	store := permission.NewStaticStore(grants{domain.PermissionFine: true}, nil)
	g := NewGate(GateConfig{}, store, &fakeProvider{}, nil)

	if _, err := g.Ensure(context.Background(), false); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if n := store.Requests(domain.PermissionBackground); n != 0 {
		t.Errorf("background requested %d times", n)
	}
}

func TestGate_LauncherError(t *testing.T) {
	store := permission.NewStaticStore(grants{domain.PermissionFine: true}, nil)
	p := &fakeProvider{servicesOff: true}
	launcher := &stubLauncher{provider: p, err: errors.New("no display")}
	g := NewGate(GateConfig{PromptSettings: true}, store, p, launcher)

	_, err := g.Ensure(context.Background(), false)
	if !errors.Is(err, domain.ErrServicesDisabled) {
		t.Errorf("expected services disabled, got %v", err)
	}
}

func TestGate_WeakSignalProbeCountsAsEnabled(t *testing.T) {
	store := permission.NewStaticStore(grants{domain.PermissionFine: true}, nil)
	p := &probeErrProvider{fakeProvider: &fakeProvider{}, err: domain.NewError(domain.KindTimeout, "probe", nil)}
	g := NewGate(GateConfig{}, store, p, nil)

	state, err := g.Ensure(context.Background(), false)
	if err != nil || !state.ServicesEnabled {
		t.Errorf("expected services enabled, got %+v, %v", state, err)
	}
}

// probeErrProvider fails every request with err.
type probeErrProvider struct {
	*fakeProvider
	err error
}

func (p *probeErrProvider) RequestOnce(ctx context.Context, _ position.Request) (domain.Location, error) {
	return domain.Location{}, p.err
}
