package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/locator/internal/core/domain"
	"github.com/vietddude/locator/internal/location"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Sections with non-zero defaults start from them so an omitted key keeps
	// the default and an explicit false or zero still applies.
	cfg := AppConfig{
		Gate:  location.DefaultGateConfig(),
		Watch: location.DefaultWatchConfig(),
	}
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	def := domain.DefaultAcquisitionOptions()
	acq := &cfg.Acquisition
	if acq.Timeout == 0 {
		acq.Timeout = def.Timeout
	}
	if acq.MaxAge == 0 {
		acq.MaxAge = def.MaxAge
	}
	if acq.AcceptableAccuracy == 0 {
		acq.AcceptableAccuracy = def.AcceptableAccuracy
	}
	if acq.RetryCount == nil {
		acq.RetryCount = &def.RetryCount
	}
	if acq.RetryBackoff == 0 {
		acq.RetryBackoff = def.RetryBackoff
	}
	if acq.AlertOnFailure == nil {
		acq.AlertOnFailure = &def.AlertOnFailure
	}

	if cfg.Providers.Coarse.Type == "" {
		cfg.Providers.Coarse.Type = "http"
	}
	if cfg.Providers.Precise.Type == "" {
		cfg.Providers.Precise.Type = "gpsd"
	}
	if cfg.Providers.Precise.Type == "gpsd" && cfg.Providers.Precise.Address == "" {
		cfg.Providers.Precise.Address = "localhost:2947"
	}
	for _, p := range []*ProviderConfig{&cfg.Providers.Coarse, &cfg.Providers.Precise} {
		if p.Name == "" {
			p.Name = p.Type
		}
		if p.Timeout == 0 {
			p.Timeout = 10 * time.Second
		}
	}

	if cfg.Permissions.Type == "" {
		cfg.Permissions.Type = "static"
	}
}

// Validate checks provider and permission backends are usable.
func (c *AppConfig) Validate() error {
	for role, p := range map[string]ProviderConfig{"coarse": c.Providers.Coarse, "precise": c.Providers.Precise} {
		switch p.Type {
		case "http", "grpc":
			if p.URL == "" {
				return fmt.Errorf("providers.%s: url is required for %s provider", role, p.Type)
			}
		case "redis":
			if p.DeviceID == "" {
				return fmt.Errorf("providers.%s: device_id is required for redis provider", role)
			}
			if c.Redis.URL == "" {
				return fmt.Errorf("providers.%s: redis.url is required for redis provider", role)
			}
		case "gpsd", "static":
		default:
			return fmt.Errorf("providers.%s: unknown provider type %q", role, p.Type)
		}
	}

	if c.Redis.PublishDeviceID != "" && c.Redis.URL == "" {
		return fmt.Errorf("redis.publish_device_id: redis.url is required")
	}

	switch c.Permissions.Type {
	case "static":
		for k := range c.Permissions.Grants {
			if _, err := domain.ParsePermissionKind(k); err != nil {
				return fmt.Errorf("permissions.grants: %w", err)
			}
		}
		for k := range c.Permissions.Policy {
			if _, err := domain.ParsePermissionKind(k); err != nil {
				return fmt.Errorf("permissions.policy: %w", err)
			}
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("permissions: database.url is required for postgres backend")
		}
		if c.Permissions.DeviceID == "" {
			return fmt.Errorf("permissions: device_id is required for postgres backend")
		}
	default:
		return fmt.Errorf("permissions: unknown backend %q", c.Permissions.Type)
	}
	return nil
}
