// Package config defines the service-level configuration assembled from
// the environment and an optional config file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/talentforge/talentforge-api/pkg/auth"
	"github.com/talentforge/talentforge-api/pkg/clients/postgres"
	"github.com/talentforge/talentforge-api/pkg/config"
	apperr "github.com/talentforge/talentforge-api/pkg/errors"
)

// fileEnvVar names an optional YAML/JSON config file to layer under the
// environment.
const fileEnvVar = "TALENTFORGE_CONFIG_FILE"

// AppConfig is the full service configuration.
type AppConfig struct {
	Environment     string        `env:"ENVIRONMENT" envDefault:"development" yaml:"environment"`
	Host            string        `env:"HOST" envDefault:"0.0.0.0" yaml:"host"`
	Port            int           `env:"PORT" envDefault:"8080" yaml:"port"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info" yaml:"log_level"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envDefault:"http://localhost:3000" yaml:"cors_origins"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s" yaml:"shutdown_timeout"`

	Auth     auth.Config     `env:"AUTH" yaml:"auth"`
	Postgres postgres.Config `env:"POSTGRES" yaml:"postgres"`
}

// Load resolves the configuration. Environment variables use the
// nested-prefix convention, e.g. AUTH_LOCAL_SECRET and POSTGRES_HOST.
func Load() (AppConfig, error) {
	loader := config.New()
	if path := os.Getenv(fileEnvVar); path != "" {
		loader = loader.WithFile(path)
	}

	var cfg AppConfig
	if err := loader.Load(&cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints beyond required tags.
func (c *AppConfig) Validate() error {
	switch c.Environment {
	case "development", "staging", "production":
	default:
		return apperr.Newf(apperr.CodeValidationFailed,
			"config: unknown environment %q", c.Environment)
	}
	if c.Port < 1 || c.Port > 65535 {
		return apperr.Newf(apperr.CodeValidationFailed,
			"config: port %d is out of range", c.Port)
	}
	if c.Environment == "production" && c.Auth.ProviderDomain == "" {
		return apperr.New(apperr.CodeValidationFailed,
			"config: provider domain is required in production")
	}
	return nil
}

// IsProduction reports whether the service runs in production mode.
// Non-production responses may carry error details.
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

// ListenAddr returns the host:port the HTTP server binds.
func (c *AppConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
