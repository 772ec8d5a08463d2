package cmd

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/namelens/coinbridge/internal/alpha"
	"github.com/namelens/coinbridge/internal/binance"
	"github.com/namelens/coinbridge/internal/coingecko"
	"github.com/namelens/coinbridge/internal/config"
	"github.com/namelens/coinbridge/internal/core/coordinator"
	"github.com/namelens/coinbridge/internal/core/store"
	"github.com/namelens/coinbridge/internal/market"
	"github.com/namelens/coinbridge/internal/observability"
)

// services is everything a command or the server needs, built from one
// config. Each pool has a single coordinator shared by all callers.
type services struct {
	cfg          *config.Config
	coordinators []*coordinator.Coordinator
	market       *market.Service
	gecko        *coingecko.Client
	alpha        *alpha.Service
	store        *store.Store
}

func (s *services) Close() error {
	if s == nil || s.store == nil {
		return nil
	}
	return s.store.Close()
}

func newCoordinator(cfg *config.Config, pool string, policies coordinator.PolicyTable) *coordinator.Coordinator {
	pc := cfg.Coordinator(pool)
	return coordinator.New(pool, policies,
		coordinator.WithWindow(pc.Window),
		coordinator.WithMaxWeight(pc.MaxWeight),
		coordinator.WithMargin(pc.Margin),
	)
}

// openStore opens and migrates the registry store, importing the configured
// seed file when there is one.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if seed := strings.TrimSpace(cfg.Alpha.SeedFile); seed != "" {
		result, err := db.ImportSeedFile(ctx, seed)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		if observability.CLILogger != nil {
			observability.CLILogger.Debug("Imported alpha seed file",
				zap.String("path", seed),
				zap.Int("competitions", result.Competitions),
				zap.Int("airdrops", result.Airdrops))
		}
	}

	return db, nil
}

// buildServices wires the upstream clients. withStore opens the registry;
// without it the Alpha service is left nil.
func buildServices(ctx context.Context, withStore bool) (*services, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	bnCoord := newCoordinator(cfg, config.PoolBinance, coordinator.BinancePolicies())
	geckoCoord := newCoordinator(cfg, config.PoolCoinGecko, coordinator.CoinGeckoPolicies())
	a123Coord := newCoordinator(cfg, config.PoolAlpha123, coordinator.Alpha123Policies())

	bn := binance.New(bnCoord, binance.OptionsFromConfig(cfg.Upstream))
	svc := &services{
		cfg:          cfg,
		coordinators: []*coordinator.Coordinator{bnCoord, geckoCoord, a123Coord},
		market:       market.New(bn, market.WithWorkers(cfg.Workers)),
		gecko:        coingecko.New(geckoCoord, cfg.Upstream.CoinGeckoBaseURL, cfg.Upstream.Timeout),
	}

	if withStore {
		db, err := openStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		svc.store = db
		a123 := alpha.NewAlpha123Client(a123Coord, cfg.Upstream.Alpha123BaseURL, cfg.Upstream.Timeout)
		svc.alpha = alpha.NewService(db, svc.market, svc.gecko, a123, alpha.WithWorkers(cfg.Workers))
	}

	return svc, nil
}

// getDBPath returns the resolved database path from config
func getDBPath() string {
	cfg := config.GetConfig()
	if cfg == nil {
		return config.DefaultStorePath()
	}
	if cfg.Store.URL != "" {
		return cfg.Store.URL
	}
	dbPath := cfg.Store.Path
	if dbPath == "" {
		dbPath = config.DefaultStorePath()
	}
	if dbPath == ":memory:" {
		return dbPath
	}
	if absPath, err := filepath.Abs(dbPath); err == nil {
		return absPath
	}
	return dbPath
}
