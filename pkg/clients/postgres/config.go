package postgres

import (
	"fmt"
	"net/url"
	"time"

	apperr "github.com/talentforge/talentforge-api/pkg/errors"
)

// Secret is a string whose value is redacted in logs and formatted
// output. Use Value to read the real content.
type Secret string

const redacted = "[REDACTED]"

func (s Secret) String() string { return redacted }

// GoString redacts %#v output.
func (s Secret) GoString() string { return redacted }

// MarshalText redacts the secret when the config is serialized.
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Value returns the actual secret content.
func (s Secret) Value() string { return string(s) }

// SSLMode is the libpq-style TLS mode passed to the server.
type SSLMode string

const (
	SSLDisable    SSLMode = "disable"
	SSLRequire    SSLMode = "require"
	SSLVerifyCA   SSLMode = "verify-ca"
	SSLVerifyFull SSLMode = "verify-full"
)

func validSSLMode(m SSLMode) bool {
	switch m {
	case SSLDisable, SSLRequire, SSLVerifyCA, SSLVerifyFull:
		return true
	}
	return false
}

// DefaultHealthTimeout bounds Health when the caller's context has no
// deadline.
const DefaultHealthTimeout = 5 * time.Second

// maxStatementLength caps db.statement span attributes so traces never
// carry full SQL with parameter-adjacent literals.
const maxStatementLength = 100

// Config holds PostgreSQL connection settings. When URI is set it wins
// over the discrete host fields.
type Config struct {
	URI      string  `env:"URI" yaml:"uri"`
	Host     string  `env:"HOST" envDefault:"localhost" yaml:"host"`
	Port     int     `env:"PORT" envDefault:"5432" yaml:"port"`
	Database string  `env:"DATABASE" envDefault:"talentforge" yaml:"database"`
	User     string  `env:"USER" envDefault:"talentforge" yaml:"user"`
	Password Secret  `env:"PASSWORD" yaml:"password"`
	SSLMode  SSLMode `env:"SSLMODE" envDefault:"disable" yaml:"sslmode"`

	MaxConns          int32         `env:"MAX_CONNS" yaml:"max_conns"`
	MinConns          int32         `env:"MIN_CONNS" yaml:"min_conns"`
	MaxConnLifetime   time.Duration `env:"MAX_CONN_LIFETIME" yaml:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `env:"MAX_CONN_IDLE_TIME" yaml:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `env:"HEALTH_CHECK_PERIOD" yaml:"health_check_period"`
}

// DefaultConfig returns a config suitable for local development.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5432,
		Database: "talentforge",
		User:     "talentforge",
		SSLMode:  SSLDisable,
	}
}

// Validate checks the configuration and fills pool-setting defaults.
func (c *Config) Validate() error {
	if c.URI == "" {
		if c.Host == "" {
			return apperr.New(apperr.CodeValidationFailed, "postgres: host is required")
		}
		if c.Port < 1 || c.Port > 65535 {
			return apperr.Newf(apperr.CodeValidationFailed, "postgres: port %d is out of range", c.Port)
		}
		if c.Database == "" {
			return apperr.New(apperr.CodeValidationFailed, "postgres: database is required")
		}
		if c.User == "" {
			return apperr.New(apperr.CodeValidationFailed, "postgres: user is required")
		}
	}
	if c.SSLMode != "" && !validSSLMode(c.SSLMode) {
		return apperr.Newf(apperr.CodeValidationFailed, "postgres: unknown sslmode %q", c.SSLMode)
	}
	c.applyPoolDefaults()
	return nil
}

func (c *Config) applyPoolDefaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 10
	}
	if c.MinConns == 0 {
		c.MinConns = 2
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = time.Hour
	}
	if c.MaxConnIdleTime == 0 {
		c.MaxConnIdleTime = 30 * time.Minute
	}
	if c.HealthCheckPeriod == 0 {
		c.HealthCheckPeriod = time.Minute
	}
}

// ConnectionString builds the postgres:// URL for pgxpool. A configured
// URI is returned as-is.
func (c *Config) ConnectionString() string {
	if c.URI != "" {
		return c.URI
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Database,
	}
	if c.User != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.User, c.Password.Value())
		} else {
			u.User = url.User(c.User)
		}
	}
	q := url.Values{}
	if c.SSLMode != "" {
		q.Set("sslmode", string(c.SSLMode))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func truncateSQL(sql string) string {
	if len(sql) <= maxStatementLength {
		return sql
	}
	return sql[:maxStatementLength] + "..."
}
