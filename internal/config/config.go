// Package config loads Pulse runtime settings from defaults, an optional
// config file and PULSE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix = "PULSE"

	defaultListenAddr      = "127.0.0.1:8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultPlacesBaseURL  = "https://api.geoapify.com/v2/places"
	defaultPlacesCategory = "commercial"
	defaultPlacesRadius   = 5000
	defaultPlacesLimit    = 20
	defaultPlacesTimeout  = 8 * time.Second

	defaultThemeKey        = "theme.mode"
	defaultThrottle        = 100 * time.Millisecond
	defaultTransitionDelay = 200 * time.Millisecond
	defaultDimOpacity      = 0.35

	maximumRadius = 50000
	maximumLimit  = 500
)

// Config captures startup settings shared by the Pulse binaries.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Places   PlacesConfig   `mapstructure:"places"`
	Theme    ThemeConfig    `mapstructure:"theme"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
	// Seed loads the embedded sample dataset into an empty database.
	Seed bool `mapstructure:"seed"`
}

// ServerConfig controls the HTTP dashboard.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// PlacesConfig configures the upstream places search used by the proxy route.
type PlacesConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	Category      string        `mapstructure:"category"`
	DefaultRadius int           `mapstructure:"default_radius"`
	Limit         int           `mapstructure:"limit"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// ThemeConfig holds theme signal and chart transition settings.
type ThemeConfig struct {
	// PreferenceKey is the persistence key for the user's mode.
	PreferenceKey string `mapstructure:"preference_key"`
	// WatchFile, when set, is a file holding "dark" or "light" that is
	// watched for OS-level appearance changes.
	WatchFile       string        `mapstructure:"watch_file"`
	Throttle        time.Duration `mapstructure:"throttle"`
	TransitionDelay time.Duration `mapstructure:"transition_delay"`
	DimOpacity      float64       `mapstructure:"dim_opacity"`
}

// LoggingConfig selects the zap encoder and sink.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// File redirects logs away from stderr; the TUI always needs this.
	File string `mapstructure:"file"`
}

// Default returns the built-in configuration without consulting files or env.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

// Load reads configuration. An empty path searches ~/.pulse and the
// working directory for pulse.{yaml,toml,json}; a missing file is not an error.
func Load(path string) (Config, error) {
	return load(viper.New(), path)
}

func load(v *viper.Viper, path string) (Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pulse")
		if dir, err := DataDir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	dbPath := "pulse.db"
	if dir, err := DataDir(); err == nil {
		dbPath = filepath.Join(dir, "pulse.db")
	}

	v.SetDefault("database.path", dbPath)
	v.SetDefault("database.seed", true)

	v.SetDefault("server.addr", defaultListenAddr)
	v.SetDefault("server.read_timeout", defaultReadTimeout)
	v.SetDefault("server.write_timeout", defaultWriteTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	v.SetDefault("places.base_url", defaultPlacesBaseURL)
	v.SetDefault("places.api_key", "")
	v.SetDefault("places.category", defaultPlacesCategory)
	v.SetDefault("places.default_radius", defaultPlacesRadius)
	v.SetDefault("places.limit", defaultPlacesLimit)
	v.SetDefault("places.timeout", defaultPlacesTimeout)

	v.SetDefault("theme.preference_key", defaultThemeKey)
	v.SetDefault("theme.watch_file", "")
	v.SetDefault("theme.throttle", defaultThrottle)
	v.SetDefault("theme.transition_delay", defaultTransitionDelay)
	v.SetDefault("theme.dim_opacity", defaultDimOpacity)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"server.read_timeout", c.Server.ReadTimeout},
		{"server.write_timeout", c.Server.WriteTimeout},
		{"server.shutdown_timeout", c.Server.ShutdownTimeout},
		{"places.timeout", c.Places.Timeout},
	} {
		if d.value <= 0 {
			return fmt.Errorf("%s must be greater than 0", d.name)
		}
	}
	if c.Places.DefaultRadius < 1 || c.Places.DefaultRadius > maximumRadius {
		return fmt.Errorf("places.default_radius must be between 1 and %d", maximumRadius)
	}
	if c.Places.Limit < 1 || c.Places.Limit > maximumLimit {
		return fmt.Errorf("places.limit must be between 1 and %d", maximumLimit)
	}
	if strings.TrimSpace(c.Places.Category) == "" {
		return fmt.Errorf("places.category must not be empty")
	}
	if strings.TrimSpace(c.Theme.PreferenceKey) == "" {
		return fmt.Errorf("theme.preference_key must not be empty")
	}
	if c.Theme.Throttle < 0 || c.Theme.TransitionDelay < 0 {
		return fmt.Errorf("theme.throttle and theme.transition_delay must not be negative")
	}
	if c.Theme.DimOpacity < 0 || c.Theme.DimOpacity > 1 {
		return fmt.Errorf("theme.dim_opacity must be between 0 and 1")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

// DataDir returns ~/.pulse, the home of the default database and config file.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".pulse"), nil
}
