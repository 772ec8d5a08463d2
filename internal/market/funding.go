package market

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/namelens/coinbridge/internal/binance"
	"github.com/namelens/coinbridge/internal/indicators"
)

// Funding settles three times a day.
const fundingPerYear = 3 * 365

// Default extreme funding scan settings.
const (
	DefaultExtremeThreshold = 0.1
	DefaultExtremeLimit     = 20
)

// FundingHistoryEntry is one settled funding rate.
type FundingHistoryEntry struct {
	Rate string `json:"rate"`
	Time string `json:"time"`
}

// FundingRate is the last settled funding rate with recent history.
type FundingRate struct {
	Symbol                       string                `json:"symbol"`
	HistoricalSettledRate        float64               `json:"historical_settled_rate"`
	HistoricalSettledRateDisplay string                `json:"historical_settled_rate_display"`
	AnnualRate                   string                `json:"annual_rate"`
	NextFundingTime              string                `json:"next_funding_time"`
	Countdown                    string                `json:"countdown"`
	Signal                       string                `json:"signal"`
	RateLevel                    string                `json:"rate_level"`
	History                      []FundingHistoryEntry `json:"history"`
	Note                         string                `json:"note"`
}

// RealtimeFunding is the current rate plus the predicted next rate.
type RealtimeFunding struct {
	Symbol                       string  `json:"symbol"`
	MarkPrice                    float64 `json:"mark_price"`
	MarkPriceDisplay             string  `json:"mark_price_display"`
	IndexPrice                   float64 `json:"index_price"`
	IndexPriceDisplay            string  `json:"index_price_display"`
	Premium                      float64 `json:"premium"`
	PremiumDisplay               string  `json:"premium_display"`
	CurrentRealtimeRate          float64 `json:"current_realtime_rate"`
	CurrentRealtimeRateDisplay   string  `json:"current_realtime_rate_display"`
	CurrentAnnualRate            string  `json:"current_annual_rate"`
	CurrentSignal                string  `json:"current_signal"`
	PredictedNextRate            float64 `json:"predicted_next_rate"`
	PredictedNextRateDisplay     string  `json:"predicted_next_rate_display"`
	PredictedAnnualRate          string  `json:"predicted_annual_rate"`
	PredictedSignal              string  `json:"predicted_signal"`
	HistoricalSettledRate        float64 `json:"historical_settled_rate"`
	HistoricalSettledRateDisplay string  `json:"historical_settled_rate_display"`
	NextFundingTime              string  `json:"next_funding_time"`
	Countdown                    string  `json:"countdown"`
	RateLevel                    string  `json:"rate_level"`
	Note                         string  `json:"note"`
}

// ExtremeContract is one contract in an extreme funding list.
type ExtremeContract struct {
	Symbol               string  `json:"symbol"`
	PredictedRate        float64 `json:"predicted_rate"`
	PredictedRateDisplay string  `json:"predicted_rate_display"`
	LastRate             string  `json:"last_rate"`
	MarkPrice            string  `json:"mark_price"`
	Premium              string  `json:"premium"`
	Countdown            string  `json:"countdown"`
	AnnualRate           string  `json:"annual_rate"`
}

// ExtremeGroup is one side of the extreme funding scan. Count is taken before
// truncation.
type ExtremeGroup struct {
	Description string            `json:"description"`
	Count       int               `json:"count"`
	Contracts   []ExtremeContract `json:"contracts"`
}

// ExtremeFunding lists contracts whose predicted rate is beyond a threshold.
type ExtremeFunding struct {
	Threshold       string       `json:"threshold"`
	Timestamp       string       `json:"timestamp"`
	ExtremeNegative ExtremeGroup `json:"extreme_negative"`
	ExtremePositive ExtremeGroup `json:"extreme_positive"`
}

// MarkPrice is the premiumIndex view of one contract.
type MarkPrice struct {
	Symbol                 string  `json:"symbol"`
	Market                 string  `json:"market"`
	MarkPrice              float64 `json:"mark_price"`
	MarkPriceFormatted     string  `json:"mark_price_formatted"`
	IndexPrice             float64 `json:"index_price"`
	IndexPriceFormatted    string  `json:"index_price_formatted"`
	LastFundingRate        string  `json:"last_funding_rate"`
	LastFundingRateDecimal float64 `json:"last_funding_rate_decimal"`
	NextFundingTime        string  `json:"next_funding_time"`
	CountdownToSettlement  string  `json:"countdown_to_settlement"`
	EstimatedSettlePrice   string  `json:"estimated_settle_price"`
}

// OpenInterestView is the current open interest of one contract.
type OpenInterestView struct {
	Symbol                string  `json:"symbol"`
	Market                string  `json:"market"`
	OpenInterest          float64 `json:"open_interest"`
	OpenInterestFormatted string  `json:"open_interest_formatted"`
	Timestamp             string  `json:"timestamp"`
}

// FundingSignal says which side pays at a rate in percent.
func FundingSignal(rate float64) string {
	switch {
	case rate > 0:
		return "longs pay"
	case rate < 0:
		return "shorts pay"
	}
	return "neutral"
}

// FundingLevel buckets a rate in percent.
func FundingLevel(rate float64) string {
	switch {
	case rate < -0.5:
		return "extreme negative"
	case rate < -0.1:
		return "high negative"
	case rate < 0:
		return "normal negative"
	case rate < 0.1:
		return "normal positive"
	case rate < 0.5:
		return "high positive"
	}
	return "extreme positive"
}

// PredictFunding estimates the next funding rate in percent from mark and
// index prices and the interest rate (a fraction). It returns the premium and
// the predicted rate.
func PredictFunding(mark, index, interest float64) (premium, predicted float64) {
	if index > 0 {
		premium = (mark - index) / index * 100
	}
	interestPct := interest * 100
	predicted = premium + indicators.Clamp(interestPct-premium, -0.05, 0.05)
	return premium, indicators.Clamp(predicted, -0.75, 0.75)
}

func percentOf(n binance.Number) float64 {
	return n.Mul(decimal.NewFromInt(100)).InexactFloat64()
}

// FundingRate returns the last settled rate with the five most recent
// settlements.
func (s *Service) FundingRate(ctx context.Context, symbol string) (*FundingRate, error) {
	symbol = Normalize(symbol)
	premium, err := s.bn.PremiumIndex(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("funding rate %s: %w", symbol, err)
	}
	rate := percentOf(premium.LastFundingRate)

	history := []FundingHistoryEntry{}
	// History is best effort; the current rate stands on its own.
	if records, herr := s.bn.FundingRateHistory(ctx, symbol, 10); herr == nil {
		for i, r := range records {
			if i == 5 {
				break
			}
			history = append(history, FundingHistoryEntry{
				Rate: fmt.Sprintf("%+.4f%%", percentOf(r.FundingRate)),
				Time: FormatMillis(r.FundingTime),
			})
		}
	}

	return &FundingRate{
		Symbol:                       symbol,
		HistoricalSettledRate:        rate,
		HistoricalSettledRateDisplay: fmt.Sprintf("%+.4f%%", rate),
		AnnualRate:                   Percent(rate * fundingPerYear),
		NextFundingTime:              FormatMillisOr(premium.NextFundingTime, "N/A"),
		Countdown:                    countdown(s.now(), premium.NextFundingTime, false),
		Signal:                       FundingSignal(rate),
		RateLevel:                    FundingLevel(rate),
		History:                      history,
		Note:                         "historical_settled_rate is the rate settled in the previous period",
	}, nil
}

// RealtimeFundingRate returns the current rate and the predicted next rate.
func (s *Service) RealtimeFundingRate(ctx context.Context, symbol string) (*RealtimeFunding, error) {
	symbol = Normalize(symbol)
	p, err := s.bn.PremiumIndex(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("realtime funding rate %s: %w", symbol, err)
	}

	mark := p.MarkPrice.Float()
	index := p.IndexPrice.Float()
	current := percentOf(p.LastFundingRate)
	premium, predicted := PredictFunding(mark, index, p.Interest())

	return &RealtimeFunding{
		Symbol:                       symbol,
		MarkPrice:                    mark,
		MarkPriceDisplay:             Money(mark, 4),
		IndexPrice:                   index,
		IndexPriceDisplay:            Money(index, 4),
		Premium:                      premium,
		PremiumDisplay:               fmt.Sprintf("%+.4f%%", premium),
		CurrentRealtimeRate:          current,
		CurrentRealtimeRateDisplay:   fmt.Sprintf("%+.4f%%", current),
		CurrentAnnualRate:            Percent(current * fundingPerYear),
		CurrentSignal:                FundingSignal(current),
		PredictedNextRate:            predicted,
		PredictedNextRateDisplay:     fmt.Sprintf("%+.5f%%", predicted),
		PredictedAnnualRate:          Percent(predicted * fundingPerYear),
		PredictedSignal:              FundingSignal(predicted),
		HistoricalSettledRate:        current,
		HistoricalSettledRateDisplay: fmt.Sprintf("%+.4f%%", current),
		NextFundingTime:              FormatMillisOr(p.NextFundingTime, "N/A"),
		Countdown:                    countdown(s.now(), p.NextFundingTime, false),
		RateLevel:                    FundingLevel(current),
		Note:                         "current_realtime_rate is the rate in effect now; predicted_next_rate is an estimate for the next settlement",
	}, nil
}

// ExtremeFundingRates scans trading USDT/USDC perpetuals for predicted rates
// beyond +/-threshold percent. Both arguments are used as given: a threshold
// of 0 keeps every non-zero rate and a limit of 0 returns counts only.
// Callers supply DefaultExtremeThreshold and DefaultExtremeLimit when the
// user gave none.
func (s *Service) ExtremeFundingRates(ctx context.Context, threshold float64, limit int) (*ExtremeFunding, error) {
	if threshold < 0 || math.IsNaN(threshold) {
		return nil, fmt.Errorf("%w: threshold must be >= 0, got %g", ErrInvalidInput, threshold)
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must be >= 0, got %d", ErrInvalidInput, limit)
	}

	info, err := s.bn.FuturesExchangeInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("extreme funding rates: %w", err)
	}
	trading := info.FuturesTradingSet()

	all, err := s.bn.PremiumIndexAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("extreme funding rates: %w", err)
	}

	now := s.now()
	var negative, positive []ExtremeContract
	for _, p := range all {
		if _, ok := trading[p.Symbol]; !ok {
			continue
		}
		mark := p.MarkPrice.Float()
		premium, predicted := PredictFunding(mark, p.IndexPrice.Float(), p.Interest())
		entry := ExtremeContract{
			Symbol:               p.Symbol,
			PredictedRate:        predicted,
			PredictedRateDisplay: fmt.Sprintf("%+.5f%%", predicted),
			LastRate:             fmt.Sprintf("%+.4f%%", percentOf(p.LastFundingRate)),
			MarkPrice:            Money(mark, 4),
			Premium:              fmt.Sprintf("%+.4f%%", premium),
			Countdown:            countdown(now, p.NextFundingTime, true),
			AnnualRate:           Percent(predicted * fundingPerYear),
		}
		switch {
		case predicted < -threshold:
			negative = append(negative, entry)
		case predicted > threshold:
			positive = append(positive, entry)
		}
	}

	sort.SliceStable(negative, func(i, j int) bool { return negative[i].PredictedRate < negative[j].PredictedRate })
	sort.SliceStable(positive, func(i, j int) bool { return positive[i].PredictedRate > positive[j].PredictedRate })

	return &ExtremeFunding{
		Threshold: fmt.Sprintf("%g%%", threshold),
		Timestamp: now.Format(TimeLayout),
		ExtremeNegative: ExtremeGroup{
			Description: "extreme negative funding (shorts pay, favors longs)",
			Count:       len(negative),
			Contracts:   truncate(negative, limit),
		},
		ExtremePositive: ExtremeGroup{
			Description: "extreme positive funding (longs pay, favors shorts)",
			Count:       len(positive),
			Contracts:   truncate(positive, limit),
		},
	}, nil
}

// MarkPrice returns mark, index and funding state for one contract.
func (s *Service) MarkPrice(ctx context.Context, symbol string) (*MarkPrice, error) {
	symbol = Normalize(symbol)
	p, err := s.bn.PremiumIndex(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("mark price %s: %w", symbol, err)
	}
	mark := p.MarkPrice.Float()
	index := p.IndexPrice.Float()
	settle := "N/A"
	if !p.EstimatedSettlePrice.IsZero() {
		settle = Money(p.EstimatedSettlePrice.Float(), 4)
	}
	return &MarkPrice{
		Symbol:                 symbol,
		Market:                 MarketFutures,
		MarkPrice:              mark,
		MarkPriceFormatted:     Money(mark, 4),
		IndexPrice:             index,
		IndexPriceFormatted:    Money(index, 4),
		LastFundingRate:        fmt.Sprintf("%+.4f%%", percentOf(p.LastFundingRate)),
		LastFundingRateDecimal: p.LastFundingRate.Float(),
		NextFundingTime:        FormatMillisOr(p.NextFundingTime, "N/A"),
		CountdownToSettlement:  countdown(s.now(), p.NextFundingTime, true),
		EstimatedSettlePrice:   settle,
	}, nil
}

// OpenInterest returns the current open interest of one contract.
func (s *Service) OpenInterest(ctx context.Context, symbol string) (*OpenInterestView, error) {
	symbol = Normalize(symbol)
	oi, err := s.bn.OpenInterest(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("open interest %s: %w", symbol, err)
	}
	value := oi.OpenInterest.Float()
	return &OpenInterestView{
		Symbol:                symbol,
		Market:                MarketFutures,
		OpenInterest:          value,
		OpenInterestFormatted: Compact(value),
		Timestamp:             FormatMillisOr(oi.Time, "N/A"),
	}, nil
}

func truncate[T any](items []T, n int) []T {
	if items == nil {
		return []T{}
	}
	if len(items) > n {
		return items[:n]
	}
	return items
}
