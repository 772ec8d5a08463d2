package binance

import (
	"context"

	"github.com/namelens/coinbridge/internal/core/coordinator"
)

// FuturesPrice returns the latest USDⓈ-M futures price.
func (c *Client) FuturesPrice(ctx context.Context, symbol string) (PriceTicker, error) {
	return get[PriceTicker](ctx, c, c.futures("/ticker/price", coordinator.Params{"symbol": symbol}))
}

// FuturesTicker24h returns 24h statistics for one contract.
func (c *Client) FuturesTicker24h(ctx context.Context, symbol string) (Ticker24h, error) {
	return get[Ticker24h](ctx, c, c.futures("/ticker/24hr", coordinator.Params{"symbol": symbol}))
}

// FuturesTickers24h returns 24h statistics for every contract.
func (c *Client) FuturesTickers24h(ctx context.Context) ([]Ticker24h, error) {
	return get[[]Ticker24h](ctx, c, c.futures("/ticker/24hr", nil))
}

// FuturesKlines returns contract candles, oldest first.
func (c *Client) FuturesKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	return get[[]Kline](ctx, c, c.futures("/klines", coordinator.Params{
		"symbol":   symbol,
		"interval": interval,
		"limit":    limit,
	}))
}

// FuturesExchangeInfo lists futures contracts.
func (c *Client) FuturesExchangeInfo(ctx context.Context) (ExchangeInfo, error) {
	return get[ExchangeInfo](ctx, c, c.futures("/exchangeInfo", nil))
}

// PremiumIndex returns mark price and funding state for one contract.
func (c *Client) PremiumIndex(ctx context.Context, symbol string) (PremiumIndex, error) {
	return get[PremiumIndex](ctx, c, c.futures("/premiumIndex", coordinator.Params{"symbol": symbol}))
}

// PremiumIndexAll returns mark price and funding state for every contract.
func (c *Client) PremiumIndexAll(ctx context.Context) ([]PremiumIndex, error) {
	return get[[]PremiumIndex](ctx, c, c.futures("/premiumIndex", nil))
}

// FundingRateHistory returns settled funding records, oldest first.
func (c *Client) FundingRateHistory(ctx context.Context, symbol string, limit int) ([]FundingRateRecord, error) {
	return get[[]FundingRateRecord](ctx, c, c.futures("/fundingRate", coordinator.Params{
		"symbol": symbol,
		"limit":  limit,
	}))
}

// OpenInterest returns current open interest for a contract.
func (c *Client) OpenInterest(ctx context.Context, symbol string) (OpenInterest, error) {
	return get[OpenInterest](ctx, c, c.futures("/openInterest", coordinator.Params{"symbol": symbol}))
}
