//go:build cgo

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namelens/coinbridge/internal/config"
)

func openMigrated(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), config.StoreConfig{Driver: "libsql", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestMigrateSeedsDefaultsOnce(t *testing.T) {
	ctx := context.Background()
	store := openMigrated(t)

	comps, err := store.ListCompetitions(ctx)
	require.NoError(t, err)
	require.Len(t, comps, 2)
	assert.Equal(t, "TIMI", comps[0].Symbol)
	assert.Equal(t, "H", comps[1].Symbol)
	assert.Equal(t, "2026-01-05 21:00:00", comps[0].StartTime)
	assert.Equal(t, "2026-01-12 21:00:00", comps[0].EndTime)
	require.NotNil(t, comps[0].WinnerCount)
	assert.Equal(t, int64(5240), *comps[0].WinnerCount)
	assert.Nil(t, comps[1].TotalReward)

	airdrops, err := store.ListAirdrops(ctx)
	require.NoError(t, err)
	require.Len(t, airdrops, 2)
	assert.Equal(t, "OOOO", airdrops[0].Symbol)
	assert.Equal(t, "2025-12-30", airdrops[0].LaunchDate)
	assert.Equal(t, "2025-10-21", airdrops[1].LaunchDate)

	ids, err := store.CoinGeckoIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, "metaarena", ids["TIMI"])

	deleted, err := store.DeleteCompetition(ctx, "h")
	require.NoError(t, err)
	require.True(t, deleted)

	require.NoError(t, store.Migrate(ctx))
	comps, err = store.ListCompetitions(ctx)
	require.NoError(t, err)
	require.Len(t, comps, 1)
}

func TestUpsertCompetition(t *testing.T) {
	ctx := context.Background()
	store := openMigrated(t)

	comp := Competition{
		Symbol:    "abc",
		StartTime: "2026-02-01 21:00:00",
		EndTime:   "2026-02-08 21:00:00",
	}
	created, err := store.UpsertCompetition(ctx, comp, time.Now())
	require.NoError(t, err)
	require.True(t, created)

	got, err := store.GetCompetition(ctx, "ABC")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ABC Alpha Trading Competition", got.Name)
	assert.Equal(t, "ABC", got.TokenName)
	assert.Equal(t, DefaultTimezone, got.Timezone)
	assert.Equal(t, StatusActive, got.Status)

	comp.Name = "Renamed"
	created, err = store.UpsertCompetition(ctx, comp, time.Now())
	require.NoError(t, err)
	require.False(t, created)

	got, err = store.GetCompetition(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)

	missing, err := store.GetCompetition(ctx, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = store.UpsertCompetition(ctx, Competition{}, time.Now())
	require.Error(t, err)
}

func TestImportSeedFile(t *testing.T) {
	ctx := context.Background()
	store := openMigrated(t)

	path := filepath.Join(t.TempDir(), "alpha.yaml")
	doc := `
active_competitions:
  - symbol: zk
    name: ZK Alpha Trading Competition
    start_time: "2026-03-01 21:00:00"
    end_time: "2026-03-08 21:00:00"
    total_reward: 500000
    winner_count: 1000
ended_competitions:
  - symbol: zk
    name: stale entry
  - symbol: old
    end_time: "2025-01-01 21:00:00"
    status: active
alpha_airdrops:
  - symbol: new
    launch_date: "2026-03-02"
    min_points: 180
    airdrop_amount: 250
coingecko_id_mapping:
  ZK: zksync
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	result, err := store.ImportSeedFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Competitions: 2, Airdrops: 1, CoinGeckoIDs: 1}, result)

	zk, err := store.GetCompetition(ctx, "ZK")
	require.NoError(t, err)
	assert.Equal(t, "ZK Alpha Trading Competition", zk.Name)
	require.NotNil(t, zk.TotalReward)
	assert.InDelta(t, 500000, *zk.TotalReward, 1e-9)

	old, err := store.GetCompetition(ctx, "OLD")
	require.NoError(t, err)
	assert.Equal(t, StatusEnded, old.Status)

	airdrops, err := store.ListAirdrops(ctx)
	require.NoError(t, err)
	require.Len(t, airdrops, 3)
	assert.Equal(t, "NEW", airdrops[0].Symbol)
	assert.Equal(t, StatusEnded, airdrops[0].Status)
}

func TestParseSeedJSON(t *testing.T) {
	seed, err := ParseSeed([]byte(`{"active_competitions":[{"symbol":"X","total_reward":null}],"coingecko_id_mapping":{"X":"x-coin"}}`))
	require.NoError(t, err)
	require.Len(t, seed.ActiveCompetitions, 1)
	assert.Nil(t, seed.ActiveCompetitions[0].TotalReward)
	assert.Equal(t, "x-coin", seed.CoinGeckoIDs["X"])
}
