package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadDefaults", func(t *testing.T) {
		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		assert.Equal(t, "libsql", cfg.Store.Driver)
		assert.Equal(t, filepath.Join(gfconfig.GetAppDataDir("coinbridge"), "coinbridge.db"), cfg.Store.Path)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, 9090, cfg.Metrics.Port)
		assert.Equal(t, 4, cfg.Workers)

		binance := cfg.Coordinator(PoolBinance)
		assert.Equal(t, time.Minute, binance.Window)
		assert.Equal(t, 1200, binance.MaxWeight)
		assert.Equal(t, 30, cfg.Coordinator(PoolCoinGecko).MaxWeight)

		assert.Len(t, cfg.Upstream.SpotBaseURLs, 5)
		assert.Equal(t, "https://api.binance.com/api/v3", cfg.Upstream.SpotBaseURLs[0])
		assert.Len(t, cfg.Upstream.FuturesBaseURLs, 2)
		assert.Equal(t, 10*time.Second, cfg.Upstream.Timeout)
	})

	t.Run("RuntimeOverrides", func(t *testing.T) {
		overrides := map[string]any{
			"server": map[string]any{
				"port": 9000,
				"host": "0.0.0.0",
			},
			"coordinators": map[string]any{
				"binance": map[string]any{"max_weight": 600},
			},
		}

		cfg, err := Load(ctx, overrides)
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, 600, cfg.Coordinator(PoolBinance).MaxWeight)
		assert.Equal(t, time.Minute, cfg.Coordinator(PoolBinance).Window)
		assert.Equal(t, 9090, cfg.Metrics.Port)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("COINBRIDGE_SERVER_PORT", "3000")
		t.Setenv("COINBRIDGE_LOGGING_LEVEL", "warn")
		t.Setenv("COINBRIDGE_METRICS_ENABLED", "false")
		t.Setenv("COINBRIDGE_COORDINATORS_BINANCE_MARGIN", "0.8")
		t.Setenv("COINBRIDGE_UPSTREAM_SPOT_BASE_URLS", "http://a.test,http://b.test")

		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.False(t, cfg.Metrics.Enabled)
		assert.Equal(t, 0.8, cfg.Coordinator(PoolBinance).Margin)
		assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Upstream.SpotBaseURLs)
	})

	t.Run("ConfigPrecedence", func(t *testing.T) {
		t.Setenv("COINBRIDGE_SERVER_PORT", "4000")

		cfg, err := Load(ctx, map[string]any{
			"server": map[string]any{"port": 5000},
		})
		require.NoError(t, err)
		assert.Equal(t, 5000, cfg.Server.Port)
	})
}

func TestGetConfig(t *testing.T) {
	cfg, err := Load(context.Background())
	require.NoError(t, err)

	retrieved := GetConfig()
	require.NotNil(t, retrieved)
	assert.Equal(t, cfg.Server.Port, retrieved.Server.Port)
}

func TestDecodeFallsBackForEmptyStore(t *testing.T) {
	cfg, err := Decode(map[string]any{
		"store":   map[string]any{"path": "", "url": ""},
		"workers": 0,
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultStorePath(), cfg.Store.Path)
	assert.Equal(t, 4, cfg.Workers)
}

func TestCoordinatorOnNilConfig(t *testing.T) {
	var cfg *Config
	assert.Equal(t, CoordinatorConfig{}, cfg.Coordinator(PoolBinance))
}
