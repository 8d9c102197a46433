package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsWhenNothingConfigured(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeFile(t, "shopfloor.yaml", `
database:
  driver: postgres
  dsn: postgres://localhost/shopfloor?sslmode=disable
log:
  level: debug
  format: json
orders:
  backflush: true
`)

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Orders.Backflush)
	assert.Equal(t, "shopfloor.events", cfg.Redis.Channel, "unset keys keep their defaults")
}

func TestLoad_EnvironmentWins(t *testing.T) {
	path := writeFile(t, "shopfloor.yaml", "log:\n  level: warn\n")
	envFile := writeFile(t, ".env", "SHOPFLOOR_REDIS_ENABLED=true\nSHOPFLOOR_REDIS_ADDR=cache:6379\n")
	t.Setenv("SHOPFLOOR_LOG_LEVEL", "error")
	t.Setenv("SHOPFLOOR_DB_DSN", "file:test.db")
	t.Cleanup(func() {
		os.Unsetenv("SHOPFLOOR_REDIS_ENABLED")
		os.Unsetenv("SHOPFLOOR_REDIS_ADDR")
	})

	cfg, err := Load(path, envFile)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, "file:test.db", cfg.Database.DSN)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		message string
	}{
		{"bad_yaml", "database: [", "failed to parse config"},
		{"bad_driver", "database:\n  driver: oracle\n", "database.driver must be sqlite or postgres"},
		{"empty_dsn", "database:\n  dsn: \"\"\n", "database.dsn is required"},
		{"bad_format", "log:\n  format: xml\n", "log.format must be json or console"},
		{"redis_without_addr", "redis:\n  enabled: true\n  addr: \"\"\n", "redis.addr is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "shopfloor.yaml", tt.yaml), "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}
