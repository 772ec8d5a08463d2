package server

import (
	"net/http"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/namelens/coinbridge/internal/observability"
	"github.com/namelens/coinbridge/internal/server/handlers"
)

// routeIndex is served at / so callers can discover the surface.
var routeIndex = map[string]any{
	"service": handlers.ServiceName,
	"mcp": map[string]string{
		"binance":   "POST /mcp",
		"coingecko": "POST /mcp-coingecko",
	},
	"rest": []string{
		"GET /binance/spot/price?symbol=BTC",
		"GET /binance/ticker/24h?symbol=BTC",
		"GET /binance/klines?symbol=BTC&interval=1h&limit=100",
		"GET /binance/futures/price?symbol=BTC",
		"GET /binance/analysis/comprehensive?symbol=BTC",
		"GET /binance/analysis/kline-patterns?symbol=BTC&interval=4h",
		"GET /binance/analysis/spot-vs-futures?symbol=BTC",
		"GET /binance/analysis/market-factors?symbol=BTC",
		"GET /binance/funding-rate?symbol=BTC",
		"GET /binance/funding-rate/realtime?symbol=BTC",
		"GET /binance/funding-rate/extreme?threshold=0.1&limit=20",
		"GET /binance/alpha/airdrops",
		"GET /binance/alpha/tokens",
		"GET /binance/alpha/analyze?symbol=TIMI",
		"GET /binance/alpha/competitions",
		"GET /binance/search?keyword=BTC",
		"GET /binance/top-movers?limit=10",
		"GET /coingecko/price?coin_ids=bitcoin",
		"GET /coingecko/coin?coin_id=bitcoin",
		"GET /coingecko/search?query=bitcoin",
		"GET /coingecko/trending",
		"GET /coordinator/stats",
	},
	"health": []string{"/health", "/health/live", "/health/ready", "/health/startup"},
}

func (s *Server) registerRoutes() {
	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, routeIndex)
	})

	s.router.Get("/health", handlers.HealthHandler)
	s.router.Get("/health/live", handlers.LivenessHandler)
	s.router.Get("/health/ready", handlers.ReadinessHandler)
	s.router.Get("/health/startup", handlers.StartupHandler)
	s.router.Get("/version", handlers.VersionHandler)
	s.router.Get("/metrics", MetricsHandler)

	if s.opts.BinanceMCP != nil {
		s.router.Post("/mcp", s.opts.BinanceMCP.ServeHTTP)
	}
	if s.opts.CoinGeckoMCP != nil {
		s.router.Post("/mcp-coingecko", s.opts.CoinGeckoMCP.ServeHTTP)
	}

	if api := s.opts.API; api != nil {
		gaugeSources = api.Coordinators
		s.router.Route("/binance", func(r chi.Router) {
			r.Get("/spot/price", api.SpotPrice)
			r.Get("/ticker/24h", api.Ticker24h)
			r.Get("/klines", api.Klines)
			r.Get("/futures/price", api.FuturesPrice)
			r.Get("/analysis/comprehensive", api.Comprehensive)
			r.Get("/analysis/kline-patterns", api.KlinePatterns)
			r.Get("/analysis/spot-vs-futures", api.SpotVsFutures)
			r.Get("/analysis/market-factors", api.MarketFactors)
			r.Get("/funding-rate", api.FundingRate)
			r.Get("/funding-rate/realtime", api.RealtimeFunding)
			r.Get("/funding-rate/extreme", api.ExtremeFunding)
			r.Get("/alpha/airdrops", api.AlphaAirdrops)
			r.Get("/alpha/tokens", api.AlphaTokens)
			r.Get("/alpha/analyze", api.AlphaAnalyze)
			r.Get("/alpha/competitions", api.AlphaCompetitions)
			r.Get("/search", api.Search)
			r.Get("/top-movers", api.TopMovers)
		})
		s.router.Route("/coingecko", func(r chi.Router) {
			r.Get("/price", api.GeckoPrice)
			r.Get("/coin", api.GeckoCoin)
			r.Get("/search", api.GeckoSearch)
			r.Get("/trending", api.GeckoTrending)
		})
		s.router.Get("/coordinator/stats", api.CoordinatorStats)
	}

	s.registerAdminEndpoint()
}

// registerAdminEndpoint mounts the gofulmen signal endpoint when an admin
// token is configured.
func (s *Server) registerAdminEndpoint() {
	logger := observability.ServerLogger

	if s.opts.AdminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no COINBRIDGE_ADMIN_TOKEN set)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: s.opts.AdminToken,
		RateLimit: 10, // per minute
		RateBurst: 5,
		Manager:   nil, // default global manager
	})
	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("auth", "bearer token"),
			zap.String("rate_limit", "10/min, burst 5"))
		logger.Warn("Admin endpoint enabled - ensure this server is not exposed to public internet")
	}
}
