package market

import (
	"context"
	"fmt"

	"github.com/namelens/coinbridge/internal/binance"
)

// OpenInterestPoint is one open interest history sample.
type OpenInterestPoint struct {
	Timestamp         string  `json:"timestamp"`
	OpenInterest      float64 `json:"open_interest"`
	OpenInterestValue float64 `json:"open_interest_value"`
}

// OpenInterestHistory is a run of open interest samples, newest as returned
// by Binance.
type OpenInterestHistory struct {
	Symbol  string              `json:"symbol"`
	Market  string              `json:"market"`
	Period  string              `json:"period"`
	Count   int                 `json:"count"`
	History []OpenInterestPoint `json:"history"`
}

// RatioPoint is one long/short ratio sample. Account ratios fill the account
// shares, position ratios the position shares, taker ratios the volumes.
type RatioPoint struct {
	Timestamp      string   `json:"timestamp"`
	LongShortRatio *float64 `json:"long_short_ratio,omitempty"`
	LongAccount    string   `json:"long_account,omitempty"`
	ShortAccount   string   `json:"short_account,omitempty"`
	LongPosition   string   `json:"long_position,omitempty"`
	ShortPosition  string   `json:"short_position,omitempty"`
	BuySellRatio   *float64 `json:"buy_sell_ratio,omitempty"`
	BuyVol         *float64 `json:"buy_vol,omitempty"`
	SellVol        *float64 `json:"sell_vol,omitempty"`
}

// RatioSeries is a ratio history with its latest value.
type RatioSeries struct {
	Symbol      string       `json:"symbol"`
	Market      string       `json:"market"`
	Period      string       `json:"period"`
	Description string       `json:"description"`
	LatestRatio float64      `json:"latest_ratio"`
	Count       int          `json:"count"`
	History     []RatioPoint `json:"history"`
}

func seriesArgs(symbol, period string, limit int) (string, int, error) {
	if err := validatePeriod(period); err != nil {
		return "", 0, err
	}
	return Normalize(symbol), clampLimit(limit, DefaultSeriesLimit, MaxSeriesLimit), nil
}

// OpenInterestHist returns open interest history.
func (s *Service) OpenInterestHist(ctx context.Context, symbol, period string, limit int) (*OpenInterestHistory, error) {
	symbol, limit, err := seriesArgs(symbol, period, limit)
	if err != nil {
		return nil, err
	}
	records, err := s.bn.OpenInterestHist(ctx, symbol, period, limit)
	if err != nil {
		return nil, fmt.Errorf("open interest history %s: %w", symbol, err)
	}
	history := make([]OpenInterestPoint, len(records))
	for i, r := range records {
		history[i] = OpenInterestPoint{
			Timestamp:         FormatMillisOr(r.Timestamp, "N/A"),
			OpenInterest:      r.SumOpenInterest.Float(),
			OpenInterestValue: r.SumOpenInterestValue.Float(),
		}
	}
	return &OpenInterestHistory{
		Symbol:  symbol,
		Market:  MarketFutures,
		Period:  period,
		Count:   len(history),
		History: history,
	}, nil
}

type ratioFetcher func(ctx context.Context, symbol, period string, limit int) ([]binance.RatioRecord, error)

// TopLongShortAccountRatio returns the account ratio of the top 20% of
// traders by position.
func (s *Service) TopLongShortAccountRatio(ctx context.Context, symbol, period string, limit int) (*RatioSeries, error) {
	return s.accountRatio(ctx, symbol, period, limit, s.bn.TopLongShortAccountRatio,
		"top trader account long/short ratio (top 20% by position)")
}

// GlobalLongShortRatio returns the account ratio across all traders.
func (s *Service) GlobalLongShortRatio(ctx context.Context, symbol, period string, limit int) (*RatioSeries, error) {
	return s.accountRatio(ctx, symbol, period, limit, s.bn.GlobalLongShortAccountRatio,
		"global account long/short ratio")
}

func (s *Service) accountRatio(ctx context.Context, symbol, period string, limit int, fetch ratioFetcher, description string) (*RatioSeries, error) {
	symbol, limit, err := seriesArgs(symbol, period, limit)
	if err != nil {
		return nil, err
	}
	records, err := fetch(ctx, symbol, period, limit)
	if err != nil {
		return nil, fmt.Errorf("long/short ratio %s: %w", symbol, err)
	}
	history := make([]RatioPoint, len(records))
	for i, r := range records {
		ratio := r.LongShortRatio.Float()
		history[i] = RatioPoint{
			Timestamp:      FormatMillisOr(r.Timestamp, "N/A"),
			LongShortRatio: &ratio,
			LongAccount:    share(r.LongAccount.Float()),
			ShortAccount:   share(r.ShortAccount.Float()),
		}
	}
	return ratioSeries(symbol, period, description, history), nil
}

// TopLongShortPositionRatio returns the position ratio of top traders.
func (s *Service) TopLongShortPositionRatio(ctx context.Context, symbol, period string, limit int) (*RatioSeries, error) {
	symbol, limit, err := seriesArgs(symbol, period, limit)
	if err != nil {
		return nil, err
	}
	records, err := s.bn.TopLongShortPositionRatio(ctx, symbol, period, limit)
	if err != nil {
		return nil, fmt.Errorf("position ratio %s: %w", symbol, err)
	}
	history := make([]RatioPoint, len(records))
	for i, r := range records {
		ratio := r.LongShortRatio.Float()
		history[i] = RatioPoint{
			Timestamp:      FormatMillisOr(r.Timestamp, "N/A"),
			LongShortRatio: &ratio,
			LongPosition:   share(r.LongShare()),
			ShortPosition:  share(r.ShortShare()),
		}
	}
	return ratioSeries(symbol, period, "top trader position long/short ratio", history), nil
}

// TakerBuySellRatio returns the taker buy/sell volume ratio.
func (s *Service) TakerBuySellRatio(ctx context.Context, symbol, period string, limit int) (*RatioSeries, error) {
	symbol, limit, err := seriesArgs(symbol, period, limit)
	if err != nil {
		return nil, err
	}
	records, err := s.bn.TakerLongShortRatio(ctx, symbol, period, limit)
	if err != nil {
		return nil, fmt.Errorf("taker ratio %s: %w", symbol, err)
	}
	history := make([]RatioPoint, len(records))
	var latest float64
	for i, r := range records {
		ratio, buy, sell := r.BuySellRatio.Float(), r.BuyVol.Float(), r.SellVol.Float()
		if i == 0 {
			latest = ratio
		}
		history[i] = RatioPoint{
			Timestamp:    FormatMillisOr(r.Timestamp, "N/A"),
			BuySellRatio: &ratio,
			BuyVol:       &buy,
			SellVol:      &sell,
		}
	}
	series := ratioSeries(symbol, period, "taker buy/sell volume ratio", history)
	series.LatestRatio = latest
	return series, nil
}

func ratioSeries(symbol, period, description string, history []RatioPoint) *RatioSeries {
	series := &RatioSeries{
		Symbol:      symbol,
		Market:      MarketFutures,
		Period:      period,
		Description: description,
		Count:       len(history),
		History:     history,
	}
	if len(history) > 0 && history[0].LongShortRatio != nil {
		series.LatestRatio = *history[0].LongShortRatio
	}
	return series
}

func share(fraction float64) string {
	return fmt.Sprintf("%.2f%%", fraction*100)
}
