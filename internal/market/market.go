// Package market turns raw Binance responses into the views served by the
// tool and REST layers: symbol normalization, multi-market fallback,
// formatting and fan-out over several symbols.
package market

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/namelens/coinbridge/internal/binance"
)

// ErrInvalidInput marks argument validation failures.
var ErrInvalidInput = errors.New("invalid input")

// Market labels.
const (
	MarketSpot    = "spot"
	MarketFutures = "futures"
	MarketAlpha   = "Alpha"
)

// Defaults and caps applied to caller-supplied limits.
const (
	DefaultKlineLimit  = 100
	MaxKlineLimit      = 1000
	DefaultSeriesLimit = 30
	MaxSeriesLimit     = 500
	DefaultWorkers     = 4
)

// Intervals lists the supported kline intervals.
var Intervals = []string{"1m", "3m", "5m", "15m", "30m", "1h", "2h", "4h", "6h", "8h", "12h", "1d", "3d", "1w", "1M"}

// Periods lists the supported futures data periods.
var Periods = []string{"5m", "15m", "30m", "1h", "2h", "4h", "6h", "12h", "1d"}

// Service serves market views from a Binance client.
type Service struct {
	bn      *binance.Client
	workers int
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithWorkers bounds the fan-out concurrency of multi-symbol calls.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithClock overrides the time source used for countdowns and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Service.
func New(bn *binance.Client, opts ...Option) *Service {
	s := &Service{bn: bn, workers: DefaultWorkers, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Binance returns the underlying client.
func (s *Service) Binance() *binance.Client {
	return s.bn
}

// Normalize upper-cases a symbol and appends USDT when it is missing.
func Normalize(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if !strings.HasSuffix(symbol, "USDT") {
		symbol += "USDT"
	}
	return symbol
}

func validateInterval(interval string) error {
	if !slices.Contains(Intervals, interval) {
		return fmt.Errorf("%w: unsupported interval %q, supported: %s", ErrInvalidInput, interval, strings.Join(Intervals, ", "))
	}
	return nil
}

func validatePeriod(period string) error {
	if !slices.Contains(Periods, period) {
		return fmt.Errorf("%w: unsupported period %q, supported: %s", ErrInvalidInput, period, strings.Join(Periods, ", "))
	}
	return nil
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// fanOut runs fn for every index with at most workers goroutines. fn records
// its own failures, so the group never aborts early.
func (s *Service) fanOut(ctx context.Context, n int, fn func(ctx context.Context, i int)) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			fn(gctx, i)
			return nil
		})
	}
	_ = g.Wait()
}
