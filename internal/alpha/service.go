// Package alpha serves Binance Alpha competition and airdrop information: a
// registry kept in the store, priced from Binance with CoinGecko as a
// fallback, plus the live airdrop calendar from alpha123.
package alpha

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/namelens/coinbridge/internal/coingecko"
	"github.com/namelens/coinbridge/internal/core/store"
	"github.com/namelens/coinbridge/internal/market"
)

// Price sources.
const (
	SourceBinance   = "Binance"
	SourceCoinGecko = "CoinGecko"
)

// ErrInvalidInput marks argument validation failures. It is the market
// sentinel so callers map both the same way.
var ErrInvalidInput = market.ErrInvalidInput

// ErrPriceUnavailable is returned when no source could price a token.
var ErrPriceUnavailable = errors.New("price unavailable")

// Quote is a token price and where it came from.
type Quote struct {
	Price     float64
	Change24h float64
	Volume24h float64
	Source    string
}

// Service combines the registry with the market sources.
type Service struct {
	store   *store.Store
	market  *market.Service
	gecko   *coingecko.Client
	a123    *Alpha123Client
	workers int
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithWorkers bounds concurrent price lookups.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a Service. gecko and a123 may be nil, which disables the
// CoinGecko fallback and the realtime calendar respectively.
func NewService(st *store.Store, mkt *market.Service, gecko *coingecko.Client, a123 *Alpha123Client, opts ...Option) *Service {
	s := &Service{
		store:   st,
		market:  mkt,
		gecko:   gecko,
		a123:    a123,
		workers: market.DefaultWorkers,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the registry store.
func (s *Service) Store() *store.Store {
	return s.store
}

// Price looks a token up on Binance (spot, Alpha, then futures) and falls
// back to CoinGecko through the id mapping.
func (s *Service) Price(ctx context.Context, symbol string, geckoIDs map[string]string) (Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if s.market != nil {
		if t, err := s.market.Ticker24h(ctx, symbol); err == nil {
			return Quote{
				Price:     t.Price,
				Change24h: t.PriceChangePercent,
				Volume24h: t.QuoteVolume24h,
				Source:    SourceBinance,
			}, nil
		}
	}
	return s.geckoPrice(ctx, symbol, geckoIDs)
}

func (s *Service) geckoPrice(ctx context.Context, symbol string, geckoIDs map[string]string) (Quote, error) {
	id := geckoIDs[symbol]
	if id == "" || s.gecko == nil {
		return Quote{}, fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol)
	}
	quotes, err := s.gecko.SimplePrice(ctx, []string{id})
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %s: %v", ErrPriceUnavailable, symbol, err)
	}
	q, ok := quotes[id]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s: coingecko has no %s", ErrPriceUnavailable, symbol, id)
	}
	return Quote{Price: q.USD, Change24h: q.USD24hChange, Volume24h: q.USD24hVol, Source: SourceCoinGecko}, nil
}

func (s *Service) geckoIDs(ctx context.Context) map[string]string {
	ids, err := s.store.CoinGeckoIDs(ctx)
	if err != nil {
		return map[string]string{}
	}
	return ids
}

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

// amount formats a reward quantity with grouping and only the decimals it
// needs.
func amount(v float64) string {
	if v == math.Trunc(v) {
		return market.Grouped(v, 0)
	}
	return strings.TrimRight(market.Grouped(v, 6), "0")
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
