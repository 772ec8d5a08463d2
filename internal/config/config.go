package config

import (
	"time"
)

// Config represents the complete application configuration.
// Values are layered: built-in defaults, then the YAML config file, then
// COINBRIDGE_* environment variables, then runtime overrides.
type Config struct {
	Server       ServerConfig                 `mapstructure:"server"`
	Store        StoreConfig                  `mapstructure:"store"`
	Logging      LoggingConfig                `mapstructure:"logging"`
	Metrics      MetricsConfig                `mapstructure:"metrics"`
	Health       HealthConfig                 `mapstructure:"health"`
	Debug        DebugConfig                  `mapstructure:"debug"`
	Workers      int                          `mapstructure:"workers"`
	Coordinators map[string]CoordinatorConfig `mapstructure:"coordinators"`
	Upstream     UpstreamConfig               `mapstructure:"upstream"`
	Alpha        AlphaConfig                  `mapstructure:"alpha"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// CoordinatorConfig tunes one request coordinator pool.
type CoordinatorConfig struct {
	Window    time.Duration `mapstructure:"window"`
	MaxWeight int           `mapstructure:"max_weight"`
	// Margin scales MaxWeight down by a ratio in (0, 1].
	Margin float64 `mapstructure:"margin"`
}

// UpstreamConfig holds outbound HTTP settings and base URL overrides.
type UpstreamConfig struct {
	Timeout            time.Duration `mapstructure:"timeout"`
	UserAgent          string        `mapstructure:"user_agent"`
	SpotBaseURLs       []string      `mapstructure:"spot_base_urls"`
	FuturesBaseURLs    []string      `mapstructure:"futures_base_urls"`
	FuturesDataBaseURL string        `mapstructure:"futures_data_base_url"`
	AlphaBaseURL       string        `mapstructure:"alpha_base_url"`
	AlphaTokenListURL  string        `mapstructure:"alpha_token_list_url"`
	CoinGeckoBaseURL   string        `mapstructure:"coingecko_base_url"`
	Alpha123BaseURL    string        `mapstructure:"alpha123_base_url"`
	StreamURL          string        `mapstructure:"stream_url"`
}

// AlphaConfig configures the Alpha competition and airdrop registry.
type AlphaConfig struct {
	// SeedFile is an optional YAML or JSON file imported on startup.
	SeedFile string `mapstructure:"seed_file"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level (simple or structured)
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug configuration
type DebugConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Coordinator returns the named pool settings, or the zero value.
func (c *Config) Coordinator(name string) CoordinatorConfig {
	if c == nil || c.Coordinators == nil {
		return CoordinatorConfig{}
	}
	return c.Coordinators[name]
}
