package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".pulse", "pulse.db"), cfg.Database.Path)
	assert.True(t, cfg.Database.Seed)
	assert.Equal(t, defaultListenAddr, cfg.Server.Addr)
	assert.Equal(t, 5000, cfg.Places.DefaultRadius)
	assert.Equal(t, "commercial", cfg.Places.Category)
	assert.Equal(t, 100*time.Millisecond, cfg.Theme.Throttle)
	assert.Equal(t, 200*time.Millisecond, cfg.Theme.TransitionDelay)
	assert.Equal(t, "theme.mode", cfg.Theme.PreferenceKey)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("PULSE_PLACES_API_KEY", "secret")
	t.Setenv("PULSE_THEME_THROTTLE", "50ms")
	t.Setenv("PULSE_SERVER_ADDR", ":9999")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.Places.APIKey)
	assert.Equal(t, 50*time.Millisecond, cfg.Theme.Throttle)
	assert.Equal(t, ":9999", cfg.Server.Addr)
}

func TestLoadFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "pulse.yaml")
	content := []byte(`
database:
  path: /tmp/custom.db
theme:
  transition_delay: 350ms
  dim_opacity: 0.5
logging:
  format: json
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/custom.db", cfg.Database.Path)
	assert.Equal(t, 350*time.Millisecond, cfg.Theme.TransitionDelay)
	assert.InDelta(t, 0.5, cfg.Theme.DimOpacity, 1e-9)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"radius", func(c *Config) { c.Places.DefaultRadius = 0 }, "places.default_radius"},
		{"limit", func(c *Config) { c.Places.Limit = 1000 }, "places.limit"},
		{"dim", func(c *Config) { c.Theme.DimOpacity = 1.5 }, "theme.dim_opacity"},
		{"format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"timeout", func(c *Config) { c.Places.Timeout = 0 }, "places.timeout"},
		{"key", func(c *Config) { c.Theme.PreferenceKey = " " }, "theme.preference_key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateReportsFirstTimeoutInOrder(t *testing.T) {
	cfg := Default()
	cfg.Server.ReadTimeout = 0
	cfg.Server.ShutdownTimeout = 0
	cfg.Places.Timeout = 0

	for i := 0; i < 20; i++ {
		err := cfg.Validate()
		require.Error(t, err)
		assert.Equal(t, "server.read_timeout must be greater than 0", err.Error())
	}
}
