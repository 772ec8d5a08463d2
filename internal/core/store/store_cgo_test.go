//go:build cgo

package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namelens/coinbridge/internal/config"
)

func TestOpenMemoryStore(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.StoreConfig{Path: ":memory:"})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	assert.Equal(t, "libsql", s.Driver())
	assert.Equal(t, 1, s.DB.Stats().MaxOpenConnections)
	require.NoError(t, s.CheckHealth(ctx))
	require.NoError(t, s.Migrate(ctx))
}

func TestOpenLocalFileUsesWAL(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.StoreConfig{Path: filepath.Join(t.TempDir(), "data", "coinbridge.db")})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	assert.Equal(t, 1, s.DB.Stats().MaxOpenConnections)

	var journalMode string
	require.NoError(t, s.DB.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode))
	assert.Contains(t, journalMode, "wal")

	var busyTimeout int
	require.NoError(t, s.DB.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.GreaterOrEqual(t, busyTimeout, 1000)
}

func TestRegistrySurvivesReopen(t *testing.T) {
	ctx := context.Background()
	cfg := config.StoreConfig{Path: "file:" + filepath.Join(t.TempDir(), "coinbridge.db")}

	first, err := Open(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, first.Migrate(ctx))
	require.NoError(t, first.SetCoinGeckoID(ctx, "KOGE", "koge"))
	require.NoError(t, first.Close())

	second, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer func() { _ = second.Close() }()
	require.NoError(t, second.Migrate(ctx))

	ids, err := second.CoinGeckoIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, "koge", ids["KOGE"])
}

func TestReopenLocalFileRepeatedly(t *testing.T) {
	ctx := context.Background()
	cfg := config.StoreConfig{Path: "file:" + filepath.Join(t.TempDir(), "coinbridge.db")}

	for i := 0; i < 5; i++ {
		s, err := Open(ctx, cfg)
		require.NoError(t, err, "open %d", i)
		require.NoError(t, s.Migrate(ctx), "migrate %d", i)

		var journalMode string
		require.NoError(t, s.DB.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode))
		assert.Equal(t, "wal", strings.ToLower(journalMode))
		require.NoError(t, s.Close())
	}
}

func TestSecondHandleSeesWrites(t *testing.T) {
	ctx := context.Background()
	cfg := config.StoreConfig{Path: filepath.Join(t.TempDir(), "coinbridge.db")}

	server, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer func() { _ = server.Close() }()
	require.NoError(t, server.Migrate(ctx))

	cli, err := Open(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, cli.SetCoinGeckoID(ctx, "KOGE", "koge"))
	require.NoError(t, cli.Close())

	ids, err := server.CoinGeckoIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, "koge", ids["KOGE"])
}

func TestClosedStoreFailsHealth(t *testing.T) {
	var s *Store
	assert.Error(t, s.CheckHealth(context.Background()))
	assert.NoError(t, s.Close())
	assert.Error(t, s.Migrate(context.Background()))
}
