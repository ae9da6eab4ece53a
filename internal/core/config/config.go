package config

import (
	"time"

	"github.com/vietddude/locator/internal/core/domain"
	redisclient "github.com/vietddude/locator/internal/infra/redis"
	"github.com/vietddude/locator/internal/infra/storage/postgres"
	"github.com/vietddude/locator/internal/location"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server      ServerConfig         `yaml:"server"`
	Logging     LoggingConfig        `yaml:"logging"`
	Acquisition AcquisitionConfig    `yaml:"acquisition"`
	Gate        location.GateConfig  `yaml:"gate"`
	Watch       location.WatchConfig `yaml:"watch"`
	Providers   ProvidersConfig      `yaml:"providers"`
	Permissions PermissionsConfig    `yaml:"permissions"`
	Settings    SettingsConfig       `yaml:"settings"`
	Redis       redisclient.Config   `yaml:"redis"`
	Database    postgres.Config      `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// AcquisitionConfig holds the default one-shot acquisition options.
// Pointer fields distinguish "unset" from an explicit zero/false.
type AcquisitionConfig struct {
	Timeout            time.Duration `yaml:"timeout"`
	CoarseTimeout      time.Duration `yaml:"coarse_timeout"` // 0 = timeout / 2
	MaxAge             time.Duration `yaml:"max_age"`
	AcceptableAccuracy float64       `yaml:"acceptable_accuracy"` // meters
	RetryCount         *int          `yaml:"retry_count"`
	RetryBackoff       time.Duration `yaml:"retry_backoff"`
	RequestBackground  bool          `yaml:"request_background"`
	AlertOnFailure     *bool         `yaml:"alert_on_failure"`
}

// Options converts the section into acquisition options.
func (a AcquisitionConfig) Options() domain.AcquisitionOptions {
	opts := domain.AcquisitionOptions{
		Timeout:            a.Timeout,
		CoarseTimeout:      a.CoarseTimeout,
		MaxAge:             a.MaxAge,
		AcceptableAccuracy: a.AcceptableAccuracy,
		RetryBackoff:       a.RetryBackoff,
		RequestBackground:  a.RequestBackground,
	}
	if a.RetryCount != nil {
		opts.RetryCount = *a.RetryCount
	}
	if a.AlertOnFailure != nil {
		opts.AlertOnFailure = *a.AlertOnFailure
	}
	return opts.Apply()
}

// ProvidersConfig selects the coarse (network) and precise (satellite) backends.
type ProvidersConfig struct {
	Coarse  ProviderConfig `yaml:"coarse"`
	Precise ProviderConfig `yaml:"precise"`
}

// ProviderConfig holds settings for a position provider.
type ProviderConfig struct {
	Type     string        `yaml:"type"` // http, gpsd, grpc, redis, static
	Name     string        `yaml:"name"`
	URL      string        `yaml:"url"`       // http endpoint or grpc target
	Address  string        `yaml:"address"`   // gpsd host:port
	DeviceID string        `yaml:"device_id"` // redis feed key
	Timeout  time.Duration `yaml:"timeout"`   // http client timeout

	// Static provider fix.
	Latitude  float64       `yaml:"latitude"`
	Longitude float64       `yaml:"longitude"`
	Accuracy  float64       `yaml:"accuracy"`
	Delay     time.Duration `yaml:"delay"`
}

// PermissionsConfig selects the permission backend.
type PermissionsConfig struct {
	Type     string          `yaml:"type"`      // static, postgres
	DeviceID string          `yaml:"device_id"` // postgres row key
	Grants   map[string]bool `yaml:"grants"`    // static initial grants
	Policy   map[string]bool `yaml:"policy"`    // static answer to requests
}

// SettingsConfig configures the location settings launcher.
type SettingsConfig struct {
	Command []string `yaml:"command"` // empty = log only
}
