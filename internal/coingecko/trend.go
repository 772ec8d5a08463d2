package coingecko

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/namelens/coinbridge/internal/indicators"
)

// TrendDays is the chart window used for trend probability.
const TrendDays = 7

// ErrInsufficientData is returned when a chart has fewer than 10 points.
var ErrInsufficientData = errors.New("insufficient data")

// TrendProbability estimates short-term direction from a 7-day chart.
type TrendProbability struct {
	Trend            string  `json:"trend,omitempty"`
	TrendDescription string  `json:"trend_description,omitempty"`
	UpProbability    float64 `json:"up_probability"`
	DownProbability  float64 `json:"down_probability"`
	UpDays           int     `json:"7d_up_days"`
	DownDays         int     `json:"7d_down_days"`
	PriceVsMA7       string  `json:"price_vs_ma7,omitempty"`
	Volatility       string  `json:"volatility_7d,omitempty"`
	Analysis         string  `json:"analysis,omitempty"`
	Error            string  `json:"error,omitempty"`
}

// TrendFromPrices scores a price series covering TrendDays days. The series
// is cut into equal daily buckets; up/down day counts set the base
// probability, which is then nudged by the distance from the 7-day mean and
// by 3-day versus 7-day momentum, and clamped to [15, 85].
func TrendFromPrices(prices []float64) (TrendProbability, error) {
	n := len(prices)
	if n < 10 {
		return TrendProbability{}, ErrInsufficientData
	}

	perDay := n / TrendDays
	up, down, total := 0, 0, 0
	for i := 1; i < TrendDays; i++ {
		start, end := (i-1)*perDay, i*perDay
		if end >= n || prices[start] == 0 {
			continue
		}
		change := (prices[end] - prices[start]) / prices[start] * 100
		total++
		switch {
		case change > 0:
			up++
		case change < 0:
			down++
		}
	}

	current := prices[n-1]
	ma7 := indicators.Mean(prices)
	if ma7 == 0 {
		return TrendProbability{}, ErrInsufficientData
	}
	ma3 := current
	if n >= perDay*3 {
		ma3 = indicators.Mean(prices[n-perDay*3:])
	}
	priceVsMA7 := (current - ma7) / ma7 * 100

	var sumSquares float64
	returns := 0
	for i := 1; i < n; i++ {
		if prices[i-1] == 0 {
			continue
		}
		r := (prices[i] - prices[i-1]) / prices[i-1]
		sumSquares += r * r
		returns++
	}
	volatility := 0.0
	if returns > 0 {
		volatility = math.Sqrt(sumSquares/float64(returns)) * 100
	}

	base := 50.0
	if total > 0 {
		base = float64(up) / float64(total) * 100
	}
	maFactor := indicators.Clamp(priceVsMA7*2, -15, 15)
	momentum := (ma3 - ma7) / ma7 * 100
	momentumFactor := indicators.Clamp(momentum*3, -10, 10)

	upProbability := indicators.Clamp(base+maFactor+momentumFactor, 15, 85)
	result := TrendProbability{
		UpProbability:   indicators.Round(upProbability, 1),
		DownProbability: indicators.Round(100-upProbability, 1),
		UpDays:          up,
		DownDays:        down,
		PriceVsMA7:      fmt.Sprintf("%+.2f%%", priceVsMA7),
		Volatility:      fmt.Sprintf("%.2f%%", volatility),
	}

	switch {
	case upProbability >= 60:
		result.Trend, result.TrendDescription = "📈 bullish", "short-term upside"
	case upProbability <= 40:
		result.Trend, result.TrendDescription = "📉 bearish", "short-term downside"
	default:
		result.Trend, result.TrendDescription = "➡️ ranging", "no clear direction"
	}

	side := "below"
	if priceVsMA7 > 0 {
		side = "above"
	}
	result.Analysis = fmt.Sprintf("Last 7 days: %d up, %d down; price is %.1f%% %s the 7-day average",
		up, down, math.Abs(priceVsMA7), side)
	return result, nil
}

// TrendProbability fetches the 7-day chart for a coin and scores it.
func (c *Client) TrendProbability(ctx context.Context, id string) (TrendProbability, error) {
	chart, err := c.MarketChart(ctx, id, TrendDays)
	if err != nil {
		return TrendProbability{}, err
	}
	return TrendFromPrices(chart.PriceSeries())
}

// PricesWithTrend returns quotes for ids, each annotated with its trend
// probability. Trend failures are reported inside the quote rather than
// failing the whole call.
func (c *Client) PricesWithTrend(ctx context.Context, ids []string, workers int) (map[string]Quote, error) {
	ids = SplitIDs(ids)
	quotes, err := c.SimplePrice(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make(map[string]Quote, len(quotes))
	for id, q := range quotes {
		q.TrendAnalysis = nil
		out[id] = q
	}

	trends := make([]TrendProbability, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, id := range ids {
		if _, ok := out[id]; !ok {
			continue
		}
		g.Go(func() error {
			trend, err := c.TrendProbability(gctx, id)
			if err != nil {
				trend = TrendProbability{Error: err.Error()}
			}
			trends[i] = trend
			return nil
		})
	}
	_ = g.Wait()

	for i, id := range ids {
		q, ok := out[id]
		if !ok {
			continue
		}
		trend := trends[i]
		q.TrendAnalysis = &trend
		out[id] = q
	}
	return out, nil
}
