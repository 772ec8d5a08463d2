package binance

import (
	"context"

	"github.com/namelens/coinbridge/internal/core/coordinator"
)

func seriesParams(symbol, period string, limit int) coordinator.Params {
	return coordinator.Params{
		"symbol": symbol,
		"period": period,
		"limit":  limit,
	}
}

// OpenInterestHist returns the open interest series.
func (c *Client) OpenInterestHist(ctx context.Context, symbol, period string, limit int) ([]RatioRecord, error) {
	return get[[]RatioRecord](ctx, c, c.futuresData("openInterestHist", seriesParams(symbol, period, limit)))
}

// TopLongShortAccountRatio is the long/short account ratio of the top 20%
// of traders by margin.
func (c *Client) TopLongShortAccountRatio(ctx context.Context, symbol, period string, limit int) ([]RatioRecord, error) {
	return get[[]RatioRecord](ctx, c, c.futuresData("topLongShortAccountRatio", seriesParams(symbol, period, limit)))
}

// TopLongShortPositionRatio is the long/short position ratio of top traders.
func (c *Client) TopLongShortPositionRatio(ctx context.Context, symbol, period string, limit int) ([]RatioRecord, error) {
	return get[[]RatioRecord](ctx, c, c.futuresData("topLongShortPositionRatio", seriesParams(symbol, period, limit)))
}

// GlobalLongShortAccountRatio is the long/short account ratio of all traders.
func (c *Client) GlobalLongShortAccountRatio(ctx context.Context, symbol, period string, limit int) ([]RatioRecord, error) {
	return get[[]RatioRecord](ctx, c, c.futuresData("globalLongShortAccountRatio", seriesParams(symbol, period, limit)))
}

// TakerLongShortRatio is the taker buy/sell volume ratio.
func (c *Client) TakerLongShortRatio(ctx context.Context, symbol, period string, limit int) ([]TakerRatioRecord, error) {
	return get[[]TakerRatioRecord](ctx, c, c.futuresData("takerlongshortRatio", seriesParams(symbol, period, limit)))
}
