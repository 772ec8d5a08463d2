package binance

import (
	"context"

	"github.com/namelens/coinbridge/internal/core/coordinator"
)

// SpotPrice returns the latest spot price for a symbol.
func (c *Client) SpotPrice(ctx context.Context, symbol string) (PriceTicker, error) {
	return get[PriceTicker](ctx, c, c.spot("/ticker/price", coordinator.Params{"symbol": symbol}))
}

// SpotTicker24h returns 24h statistics for one spot symbol.
func (c *Client) SpotTicker24h(ctx context.Context, symbol string) (Ticker24h, error) {
	return get[Ticker24h](ctx, c, c.spot("/ticker/24hr", coordinator.Params{"symbol": symbol}))
}

// SpotTickers24h returns 24h statistics for every spot symbol.
func (c *Client) SpotTickers24h(ctx context.Context) ([]Ticker24h, error) {
	return get[[]Ticker24h](ctx, c, c.spot("/ticker/24hr", nil))
}

// SpotKlines returns candles, oldest first.
func (c *Client) SpotKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	return get[[]Kline](ctx, c, c.spot("/klines", coordinator.Params{
		"symbol":   symbol,
		"interval": interval,
		"limit":    limit,
	}))
}

// SpotExchangeInfo lists spot symbols.
func (c *Client) SpotExchangeInfo(ctx context.Context) (ExchangeInfo, error) {
	return get[ExchangeInfo](ctx, c, c.spot("/exchangeInfo", nil))
}
