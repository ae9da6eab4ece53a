package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/locator/internal/core/config"
	"github.com/vietddude/locator/internal/core/domain"
	"github.com/vietddude/locator/internal/infra/metrics"
	"github.com/vietddude/locator/internal/infra/permission"
	"github.com/vietddude/locator/internal/infra/position"
	redisclient "github.com/vietddude/locator/internal/infra/redis"
	"github.com/vietddude/locator/internal/infra/storage/postgres"
	"github.com/vietddude/locator/internal/location"
)

// Locator is the main application struct that owns the acquisition service
// and its backends.
type Locator struct {
	cfg         *config.AppConfig
	service     *location.Service
	provider    position.Provider
	monitors    map[string]*position.Monitored
	server      *Server
	db          *postgres.DB
	redisClient *redisclient.Client
	log         *slog.Logger
}

// NewLocator creates a Locator with all dependencies initialized.
func NewLocator(ctx context.Context, cfg *config.AppConfig) (*Locator, error) {
	l := &Locator{
		cfg:      cfg,
		monitors: make(map[string]*position.Monitored),
		log:      slog.Default(),
	}

	// 1. Initialize Redis (shared position feed)
	if needsRedis(cfg) {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		l.redisClient = client
	}

	// 2. Initialize Position Providers
	coarse, err := l.buildProvider(cfg.Providers.Coarse)
	if err != nil {
		l.cleanup()
		return nil, fmt.Errorf("coarse provider: %w", err)
	}
	precise, err := l.buildProvider(cfg.Providers.Precise)
	if err != nil {
		coarse.Close()
		l.cleanup()
		return nil, fmt.Errorf("precise provider: %w", err)
	}
	l.monitors["coarse"] = position.NewMonitored(coarse)
	l.monitors["precise"] = position.NewMonitored(precise)
	l.provider = position.NewDual(l.monitors["coarse"], l.monitors["precise"])
	l.log.Info("Position providers ready", "coarse", coarse.Name(), "precise", precise.Name())

	// 3. Initialize Permission Backend
	perms, err := l.buildPermissions(ctx)
	if err != nil {
		l.provider.Close()
		l.cleanup()
		return nil, err
	}

	var launcher permission.SettingsLauncher = permission.LogLauncher{}
	if len(cfg.Settings.Command) > 0 {
		launcher = &permission.CommandLauncher{Command: cfg.Settings.Command}
	}

	// 4. Initialize Service
	observer := location.MultiObserver{location.NewLogObserver(l.log), metrics.Observer{}}
	if id := cfg.Redis.PublishDeviceID; id != "" && l.redisClient != nil {
		observer = append(observer, newFixPublisher(l.redisClient, id, cfg.Redis.FixTTL, l.log))
		l.log.Info("Publishing acquired fixes", "device", id)
	}
	l.service = location.NewService(location.Config{
		Defaults: cfg.Acquisition.Options(),
		Gate:     cfg.Gate,
		Watch:    cfg.Watch,
	}, l.provider, perms, launcher, observer)

	// 5. Initialize HTTP Server
	l.server = NewServer(l.service, l.monitors, cfg.Server.Port)
	if l.db != nil {
		l.server.AddCheck("postgres", l.db.Health)
	}
	if l.redisClient != nil {
		l.server.AddCheck("redis", l.redisClient.Ping)
	}

	return l, nil
}

func needsRedis(cfg *config.AppConfig) bool {
	return cfg.Redis.PublishDeviceID != "" ||
		cfg.Providers.Coarse.Type == "redis" || cfg.Providers.Precise.Type == "redis"
}

func (l *Locator) buildProvider(pc config.ProviderConfig) (position.Provider, error) {
	switch pc.Type {
	case "http":
		return position.NewHTTPProvider(pc.Name, pc.URL, pc.Timeout), nil
	case "gpsd":
		return position.NewGPSDProvider(pc.Name, pc.Address), nil
	case "grpc":
		p, err := position.NewGRPCProvider(pc.Name, pc.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create grpc provider: %w", err)
		}
		return p, nil
	case "redis":
		if l.redisClient == nil {
			return nil, fmt.Errorf("redis provider %s requires redis.url", pc.Name)
		}
		return position.NewRedisProvider(pc.Name, pc.DeviceID, l.redisClient), nil
	case "static":
		loc := domain.Location{Latitude: pc.Latitude, Longitude: pc.Longitude}
		if pc.Accuracy > 0 {
			loc.Accuracy = domain.Meters(pc.Accuracy)
		}
		return position.NewStaticProvider(pc.Name, loc, pc.Delay), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", pc.Type)
	}
}

func (l *Locator) buildPermissions(ctx context.Context) (permission.Provider, error) {
	pc := l.cfg.Permissions
	switch pc.Type {
	case "postgres":
		db, err := postgres.NewDB(ctx, l.cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		l.db = db
		l.log.Info("Using PostgreSQL permission store", "device", pc.DeviceID)
		return postgres.NewPermissionRepo(db, pc.DeviceID), nil
	default:
		grants, err := parseKinds(pc.Grants)
		if err != nil {
			return nil, err
		}
		policy, err := parseKinds(pc.Policy)
		if err != nil {
			return nil, err
		}
		l.log.Info("Using static permission store")
		return permission.NewStaticStore(grants, policy), nil
	}
}

func parseKinds(in map[string]bool) (map[domain.PermissionKind]bool, error) {
	out := make(map[domain.PermissionKind]bool, len(in))
	for k, v := range in {
		kind, err := domain.ParsePermissionKind(k)
		if err != nil {
			return nil, err
		}
		out[kind] = v
	}
	return out, nil
}

// Service returns the acquisition service.
func (l *Locator) Service() *location.Service {
	return l.service
}

// Start starts the HTTP server and background collectors.
func (l *Locator) Start(ctx context.Context) error {
	go func() {
		if err := l.server.Start(); err != nil {
			l.log.Error("HTTP server failed", "error", err)
		}
	}()
	l.log.Info("HTTP server listening", "port", l.cfg.Server.Port)

	if l.db != nil {
		l.db.StartMetricsCollector(ctx)
	}

	go l.runMetricsUpdater(ctx)
	return nil
}

// Stop stops watches, the server and closes backends.
func (l *Locator) Stop(ctx context.Context) error {
	l.log.Info("Stopping Locator...")

	var g errgroup.Group
	g.Go(func() error {
		l.service.Close()
		return nil
	})
	g.Go(func() error {
		return l.server.Stop(ctx)
	})
	err := g.Wait()

	if cerr := l.provider.Close(); cerr != nil {
		l.log.Warn("Failed to close providers", "error", cerr)
	}
	l.cleanup()
	return err
}

// cleanup closes the storage and cache connections.
func (l *Locator) cleanup() {
	if l.redisClient != nil {
		if err := l.redisClient.Close(); err != nil {
			l.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if l.db != nil {
		if err := l.db.Close(); err != nil {
			l.log.Warn("Failed to close database", "error", err)
		}
	}
}

func (l *Locator) runMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for role, m := range l.monitors {
				stats := m.Monitor.Stats()
				metrics.ProviderStatus.WithLabelValues(role, m.Name()).Set(float64(m.Monitor.Status()))
				metrics.ProviderErrorRate.WithLabelValues(role, m.Name()).Set(stats.ErrorRate)
				slog.Debug("Updating provider metrics", "role", role, "provider", m.Name(), "status", stats.Status)
			}
		}
	}
}
