package postgres

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecret_Redaction(t *testing.T) {
	t.Parallel()

	s := Secret("hunter2")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%s", s))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%#v", s))
	assert.Equal(t, "hunter2", s.Value())

	data, err := json.Marshal(struct{ Password Secret }{s})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults valid", func(c *Config) {}, ""},
		{"missing host", func(c *Config) { c.Host = "" }, "host is required"},
		{"port too low", func(c *Config) { c.Port = 0 }, "out of range"},
		{"port too high", func(c *Config) { c.Port = 70000 }, "out of range"},
		{"missing database", func(c *Config) { c.Database = "" }, "database is required"},
		{"missing user", func(c *Config) { c.User = "" }, "user is required"},
		{"bad sslmode", func(c *Config) { c.SSLMode = "mystery" }, "unknown sslmode"},
		{"uri skips host checks", func(c *Config) {
			c.URI = "postgres://u:p@db:5432/tf"
			c.Host = ""
			c.User = ""
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_PoolDefaults(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, int32(10), cfg.MaxConns)
	assert.Equal(t, int32(2), cfg.MinConns)
	assert.Equal(t, time.Hour, cfg.MaxConnLifetime)
	assert.Equal(t, 30*time.Minute, cfg.MaxConnIdleTime)
	assert.Equal(t, time.Minute, cfg.HealthCheckPeriod)

	cfg2 := DefaultConfig()
	cfg2.MaxConns = 50
	require.NoError(t, cfg2.Validate())
	assert.Equal(t, int32(50), cfg2.MaxConns)
}

func TestConfig_ConnectionString(t *testing.T) {
	t.Parallel()

	t.Run("from fields", func(t *testing.T) {
		cfg := &Config{
			Host:     "db.internal",
			Port:     5432,
			Database: "talentforge",
			User:     "api",
			Password: Secret("p@ss word"),
			SSLMode:  SSLRequire,
		}
		got := cfg.ConnectionString()
		assert.True(t, strings.HasPrefix(got, "postgres://"))
		assert.Contains(t, got, "db.internal:5432")
		assert.Contains(t, got, "/talentforge")
		assert.Contains(t, got, "sslmode=require")
		assert.Contains(t, got, "p%40ss%20word", "password must be URL-escaped")
	})

	t.Run("uri wins", func(t *testing.T) {
		cfg := &Config{URI: "postgres://u:p@elsewhere:5432/other", Host: "ignored"}
		assert.Equal(t, "postgres://u:p@elsewhere:5432/other", cfg.ConnectionString())
	})

	t.Run("no password", func(t *testing.T) {
		cfg := DefaultConfig()
		assert.NotContains(t, cfg.ConnectionString(), "@:")
	})
}

func TestTruncateSQL(t *testing.T) {
	t.Parallel()

	short := "SELECT 1"
	assert.Equal(t, short, truncateSQL(short))

	long := strings.Repeat("x", maxStatementLength+20)
	got := truncateSQL(long)
	assert.Len(t, got, maxStatementLength+3)
	assert.True(t, strings.HasSuffix(got, "..."))
}
