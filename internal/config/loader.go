// Package config provides centralized configuration management for coinbridge.
// Defaults, the YAML config file, COINBRIDGE_* environment variables and
// runtime overrides are merged with viper and decoded into Config with
// mapstructure.
package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/namelens/coinbridge/internal/appid"
)

var (
	appConfig *Config
	configMu  sync.RWMutex
)

// Coordinator pool names.
const (
	PoolBinance   = "binance"
	PoolCoinGecko = "coingecko"
	PoolAlpha123  = "alpha123"
)

// SetDefaults registers every built-in default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", DefaultStorePath())
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("health.enabled", true)
	v.SetDefault("debug.enabled", false)
	v.SetDefault("workers", 4)

	v.SetDefault("coordinators.binance.window", "60s")
	v.SetDefault("coordinators.binance.max_weight", 1200)
	v.SetDefault("coordinators.binance.margin", 1.0)
	v.SetDefault("coordinators.coingecko.window", "60s")
	v.SetDefault("coordinators.coingecko.max_weight", 30)
	v.SetDefault("coordinators.coingecko.margin", 1.0)
	v.SetDefault("coordinators.alpha123.window", "60s")
	v.SetDefault("coordinators.alpha123.max_weight", 60)
	v.SetDefault("coordinators.alpha123.margin", 1.0)

	v.SetDefault("upstream.timeout", "10s")
	v.SetDefault("upstream.user_agent", "coinbridge")
	v.SetDefault("upstream.spot_base_urls", []string{
		"https://api.binance.com/api/v3",
		"https://api1.binance.com/api/v3",
		"https://api2.binance.com/api/v3",
		"https://api3.binance.com/api/v3",
		"https://api4.binance.com/api/v3",
	})
	v.SetDefault("upstream.futures_base_urls", []string{
		"https://fapi.binance.com/fapi/v1",
		"https://fapi1.binance.com/fapi/v1",
	})
	v.SetDefault("upstream.futures_data_base_url", "https://fapi.binance.com/futures/data")
	v.SetDefault("upstream.alpha_base_url", "https://www.binance.com/bapi/defi/v1/public/alpha-trade")
	v.SetDefault("upstream.alpha_token_list_url", "https://www.binance.com/bapi/defi/v1/public/wallet-direct/buw/wallet/cex/alpha/all/token/list")
	v.SetDefault("upstream.coingecko_base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("upstream.alpha123_base_url", "https://alpha123.uk/api")
	v.SetDefault("upstream.stream_url", "wss://stream.binance.com:9443/ws")

	v.SetDefault("alpha.seed_file", "")
}

// Load builds the configuration from defaults, the config file already
// selected on the global viper instance, environment variables and optional
// runtime overrides (highest precedence).
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(ctx context.Context, runtimeOverrides ...map[string]any) (*Config, error) {
	identity, err := appid.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load app identity: %w", err)
	}

	v := viper.New()
	SetDefaults(v)

	if path := viper.ConfigFileUsed(); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(identity.ViperPrefix())
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, overrides := range runtimeOverrides {
		for key, value := range flatten("", overrides) {
			v.Set(key, value)
		}
	}

	cfg, err := Decode(v.AllSettings())
	if err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// Decode converts a nested settings map into a typed Config.
func Decode(settings map[string]any) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}

	return cfg, nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

func flatten(prefix string, in map[string]any) map[string]any {
	out := make(map[string]any)
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := in[k].(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = in[k]
	}
	return out
}

func configName() string {
	identity, _ := appid.Get(context.Background())
	if identity == nil || strings.TrimSpace(identity.ConfigName) == "" {
		return "coinbridge"
	}
	return identity.ConfigName
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(configName())
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	return gfconfig.GetAppDataDir(configName())
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	name := configName()
	dataDir := gfconfig.GetAppDataDir(name)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + name + ".db"
	}
	return filepath.Join(dataDir, name+".db")
}
