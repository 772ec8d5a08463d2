package market

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/namelens/coinbridge/internal/indicators"
)

// Analysis window sizes.
const (
	analysisInterval = "1h"
	analysisKlines   = 200
	patternKlines    = 100
	patternWindow    = 10
	// DefaultPatternInterval is the kline interval used for pattern scans.
	DefaultPatternInterval = "4h"
)

// ErrInsufficientData is returned when a series is too short to analyze.
var ErrInsufficientData = errors.New("insufficient data for analysis")

// RSIView is the latest RSI reading.
type RSIView struct {
	Value       float64 `json:"value"`
	Signal      string  `json:"signal"`
	Description string  `json:"description"`
}

// MACDView is the latest MACD state.
type MACDView struct {
	MACDLine    float64 `json:"macd_line"`
	SignalLine  float64 `json:"signal_line"`
	Histogram   float64 `json:"histogram"`
	Signal      string  `json:"signal"`
	Description string  `json:"description"`
}

// BollingerView is the band levels and where the price sits in them.
type BollingerView struct {
	Upper     string `json:"upper"`
	Middle    string `json:"middle"`
	Lower     string `json:"lower"`
	Bandwidth string `json:"bandwidth"`
	Position  string `json:"position"`
	Note      string `json:"note"`
}

// MovingAverages is MA7, MA20 and MA50 with the price distance to each.
type MovingAverages struct {
	MA7         string `json:"ma7"`
	MA20        string `json:"ma20"`
	MA50        string `json:"ma50"`
	PriceVsMA7  string `json:"price_vs_ma7"`
	PriceVsMA20 string `json:"price_vs_ma20"`
	Note        string `json:"note"`
}

// TechnicalIndicators groups the indicator views.
type TechnicalIndicators struct {
	RSI            RSIView        `json:"rsi"`
	MACD           MACDView       `json:"macd"`
	BollingerBands BollingerView  `json:"bollinger_bands"`
	MovingAverages MovingAverages `json:"moving_averages"`
}

// SupportResistanceView lists the nearest levels.
type SupportResistanceView struct {
	ResistanceLevels []string `json:"resistance_levels"`
	SupportLevels    []string `json:"support_levels"`
	Note             string   `json:"note"`
}

// Comprehensive is the full technical read of a symbol.
type Comprehensive struct {
	Symbol              string                  `json:"symbol"`
	Market              string                  `json:"market"`
	CurrentPrice        string                  `json:"current_price"`
	Change24h           string                  `json:"change_24h"`
	Volume24h           string                  `json:"volume_24h"`
	TrendEmoji          string                  `json:"trend_emoji"`
	AnalysisTimeframe   string                  `json:"analysis_timeframe"`
	AnalysisNote        string                  `json:"analysis_note"`
	TrendAnalysis       indicators.TrendPattern `json:"trend_analysis"`
	Prediction          indicators.Probability  `json:"prediction"`
	TechnicalIndicators TechnicalIndicators     `json:"technical_indicators"`
	SupportResistance   SupportResistanceView   `json:"support_resistance"`
	Summary             string                  `json:"summary"`
}

// Pattern is one recognized candle pattern.
type Pattern struct {
	Pattern      string `json:"pattern"`
	Time         string `json:"time"`
	Significance string `json:"significance"`
	Type         string `json:"type"`
}

// LatestKline is the most recent candle, formatted.
type LatestKline struct {
	Time   string `json:"time"`
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	Volume string `json:"volume"`
}

// PatternReport is the result of a candle pattern scan.
type PatternReport struct {
	Symbol          string      `json:"symbol"`
	Market          string      `json:"market"`
	Interval        string      `json:"interval"`
	IntervalNote    string      `json:"interval_note"`
	OverallPattern  string      `json:"overall_pattern"`
	RecentPatterns  []Pattern   `json:"recent_patterns"`
	PatternCount    int         `json:"pattern_count"`
	LatestKline     LatestKline `json:"latest_kline"`
	AnalysisSummary string      `json:"analysis_summary"`
}

// MarketComparison relates a symbol's move to BTC and ETH.
type MarketComparison struct {
	BTCChange24h     string `json:"btc_change_24h"`
	ETHChange24h     string `json:"eth_change_24h"`
	VsBTC            string `json:"vs_btc"`
	VsETH            string `json:"vs_eth"`
	RelativeStrength string `json:"relative_strength"`
}

// FactorReport lists the market factors acting on a symbol.
type FactorReport struct {
	Symbol           string           `json:"symbol"`
	Market           string           `json:"market"`
	Price            string           `json:"price"`
	Change24h        string           `json:"change_24h"`
	MarketComparison MarketComparison `json:"market_comparison"`
	Factors          []string         `json:"factors"`
	Suggestions      []string         `json:"suggestions"`
}

type klineSource func(ctx context.Context, symbol, interval string, limit int) (*KlineSeries, error)
type tickerSource func(ctx context.Context, symbol string) (*Ticker, error)

// ComprehensiveAnalysis runs the indicator suite over 200 hourly spot
// candles.
func (s *Service) ComprehensiveAnalysis(ctx context.Context, symbol string) (*Comprehensive, error) {
	return s.comprehensive(ctx, symbol, s.Klines, s.Ticker24h)
}

// ComprehensiveAnalysisFutures is ComprehensiveAnalysis over futures data.
func (s *Service) ComprehensiveAnalysisFutures(ctx context.Context, symbol string) (*Comprehensive, error) {
	return s.comprehensive(ctx, symbol, s.FuturesKlines, s.FuturesTicker24h)
}

func (s *Service) comprehensive(ctx context.Context, symbol string, klines klineSource, ticker tickerSource) (*Comprehensive, error) {
	series, err := klines(ctx, symbol, analysisInterval, analysisKlines)
	if err != nil {
		return nil, err
	}
	if len(series.Klines) == 0 {
		return nil, fmt.Errorf("%w: no klines for %s", ErrInsufficientData, Normalize(symbol))
	}
	t, err := ticker(ctx, symbol)
	if err != nil {
		return nil, err
	}

	closes, highs, lows := series.Closes(), series.Highs(), series.Lows()
	current := closes[len(closes)-1]

	rsi := indicators.RSI(closes, 14)
	macd := indicators.MACD(closes, 12, 26, 9)
	bb := indicators.Bollinger(closes, 20, 2)
	levels := indicators.SupportResistance(highs, lows, closes)
	trend := indicators.AnalyzeTrend(closes)
	prediction := indicators.PriceProbability(closes, rsi, macd, bb)

	ma7 := trailingMean(closes, 7)
	ma20 := trailingMean(closes, 20)
	ma50 := trailingMean(closes, 50)

	rsiSignal, rsiHint := "neutral", "within the normal range"
	switch {
	case rsi < 30:
		rsiSignal, rsiHint = "oversold", "watch for a rebound"
	case rsi > 70:
		rsiSignal, rsiHint = "overbought", "pullback risk"
	}
	macdSignal, macdHint := "bearish", "histogram negative, bearish momentum"
	if macd.Histogram > 0 {
		macdSignal, macdHint = "bullish", "histogram positive, bullish momentum"
	}
	position := "middle band"
	switch {
	case current > bb.Upper*0.98:
		position = "near upper band"
	case current < bb.Lower*1.02:
		position = "near lower band"
	}

	return &Comprehensive{
		Symbol:            t.Symbol,
		Market:            t.Market,
		CurrentPrice:      t.PriceFormatted,
		Change24h:         t.PriceChangeDisplay,
		Volume24h:         t.QuoteVolumeFormatted,
		TrendEmoji:        t.TrendEmoji,
		AnalysisTimeframe: "1h klines",
		AnalysisNote:      "all indicators use 1h klines and suit short-term decisions (1-24h)",
		TrendAnalysis:     trend,
		Prediction:        prediction,
		TechnicalIndicators: TechnicalIndicators{
			RSI: RSIView{
				Value:       rsi,
				Signal:      rsiSignal,
				Description: fmt.Sprintf("RSI=%g (1h), %s", rsi, rsiHint),
			},
			MACD: MACDView{
				MACDLine:    macd.MACD,
				SignalLine:  macd.Signal,
				Histogram:   macd.Histogram,
				Signal:      macdSignal,
				Description: macdHint + " (1h)",
			},
			BollingerBands: BollingerView{
				Upper:     Money(bb.Upper, 4),
				Middle:    Money(bb.Middle, 4),
				Lower:     Money(bb.Lower, 4),
				Bandwidth: fmt.Sprintf("%.2f%%", bb.Bandwidth),
				Position:  position,
				Note:      "1h klines",
			},
			MovingAverages: MovingAverages{
				MA7:         Money(ma7, 4),
				MA20:        Money(ma20, 4),
				MA50:        Money(ma50, 4),
				PriceVsMA7:  Percent((current/ma7 - 1) * 100),
				PriceVsMA20: Percent((current/ma20 - 1) * 100),
				Note:        "1h klines",
			},
		},
		SupportResistance: SupportResistanceView{
			ResistanceLevels: moneyList(levels.Resistance, 3),
			SupportLevels:    moneyList(levels.Support, 3),
			Note:             "from 1h highs and lows",
		},
		Summary: Summary(trend, prediction, rsi, macd) + " (1h analysis)",
	}, nil
}

// Summary condenses a trend, a prediction and the momentum indicators into
// one line.
func Summary(trend indicators.TrendPattern, p indicators.Probability, rsi float64, macd indicators.MACDResult) string {
	parts := []string{"trend: " + trend.Trend}
	switch {
	case p.UpProbability >= 60:
		parts = append(parts, fmt.Sprintf("up probability %g%% (%s confidence)", p.UpProbability, p.Confidence))
	case p.UpProbability <= 40:
		parts = append(parts, fmt.Sprintf("down probability %g%% (%s confidence)", p.DownProbability, p.Confidence))
	default:
		parts = append(parts, "direction unclear, consider waiting")
	}
	switch {
	case rsi < 30:
		parts = append(parts, "⚠️ RSI oversold, rebound possible")
	case rsi > 70:
		parts = append(parts, "⚠️ RSI overbought, pullback risk")
	}
	switch {
	case macd.Histogram > 0 && macd.MACD > macd.Signal:
		parts = append(parts, "MACD golden cross, bullish momentum building")
	case macd.Histogram < 0 && macd.MACD < macd.Signal:
		parts = append(parts, "MACD death cross, bearish momentum building")
	}
	return strings.Join(parts, " | ")
}

// KlinePatterns scans the last ten spot candles for reversal patterns.
func (s *Service) KlinePatterns(ctx context.Context, symbol, interval string) (*PatternReport, error) {
	return s.patterns(ctx, symbol, interval, s.Klines)
}

// KlinePatternsFutures is KlinePatterns over futures candles.
func (s *Service) KlinePatternsFutures(ctx context.Context, symbol, interval string) (*PatternReport, error) {
	return s.patterns(ctx, symbol, interval, s.FuturesKlines)
}

func (s *Service) patterns(ctx context.Context, symbol, interval string, klines klineSource) (*PatternReport, error) {
	if interval == "" {
		interval = DefaultPatternInterval
	}
	series, err := klines(ctx, symbol, interval, patternKlines)
	if err != nil {
		return nil, err
	}
	candles := series.Klines
	if len(candles) < patternWindow {
		return nil, fmt.Errorf("%w: need %d klines, got %d", ErrInsufficientData, patternWindow, len(candles))
	}

	found := DetectPatterns(candles[len(candles)-patternWindow:])

	closes := series.Closes()
	current := closes[len(closes)-1]
	ma20 := fixedMean(closes, 20)
	ma50 := ma20
	if len(closes) >= 50 {
		ma50 = fixedMean(closes, 50)
	}
	overall := "ranging"
	switch {
	case current > ma20 && ma20 > ma50:
		overall = "uptrend"
	case current < ma20 && ma20 < ma50:
		overall = "downtrend"
	}

	recent := found
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	summary := fmt.Sprintf("currently in a %s (%s klines), ", overall, interval)
	if len(found) > 0 {
		summary += fmt.Sprintf("%d pattern signals found recently", len(found))
	} else {
		summary += "no clear pattern signals"
	}

	last := candles[len(candles)-1]
	return &PatternReport{
		Symbol:         series.Symbol,
		Market:         series.Market,
		Interval:       interval,
		IntervalNote:   fmt.Sprintf("patterns are read on %s klines and apply at that timeframe", interval),
		OverallPattern: overall,
		RecentPatterns: recent,
		PatternCount:   len(found),
		LatestKline: LatestKline{
			Time:   last.OpenTime,
			Open:   Money(last.Open, 4),
			High:   Money(last.High, 4),
			Low:    Money(last.Low, 4),
			Close:  Money(last.Close, 4),
			Volume: Compact(last.Volume),
		},
		AnalysisSummary: summary,
	}, nil
}

// DetectPatterns looks for doji, hammer, hanging man and engulfing candles,
// starting from the third candle so each has two predecessors.
func DetectPatterns(candles []Candle) []Pattern {
	patterns := []Pattern{}
	for i := 2; i < len(candles); i++ {
		k, prev := candles[i], candles[i-1]

		body := k.Close - k.Open
		bodySize := math.Abs(body)
		upperShadow := k.High - max(k.Open, k.Close)
		lowerShadow := min(k.Open, k.Close) - k.Low

		if bodySize < (k.High-k.Low)*0.1 {
			patterns = append(patterns, Pattern{"doji", k.OpenTime, "possible trend reversal", "reversal"})
		}
		if lowerShadow > bodySize*2 && upperShadow < bodySize*0.5 {
			patterns = append(patterns, Pattern{"hammer", k.OpenTime, "bottom reversal signal", "bullish"})
		}
		if upperShadow > bodySize*2 && lowerShadow < bodySize*0.5 {
			patterns = append(patterns, Pattern{"hanging man", k.OpenTime, "top reversal signal", "bearish"})
		}

		prevBody := prev.Close - prev.Open
		switch {
		case body > 0 && prevBody < 0 && body > math.Abs(prevBody)*1.5:
			patterns = append(patterns, Pattern{"bullish engulfing", k.OpenTime, "strong bullish signal", "bullish"})
		case body < 0 && prevBody > 0 && math.Abs(body) > prevBody*1.5:
			patterns = append(patterns, Pattern{"bearish engulfing", k.OpenTime, "strong bearish signal", "bearish"})
		}
	}
	return patterns
}

// MarketFactors compares a symbol's 24h move with BTC and ETH and flags
// notable conditions.
func (s *Service) MarketFactors(ctx context.Context, symbol string) (*FactorReport, error) {
	return s.factors(ctx, symbol, s.Ticker24h)
}

// MarketFactorsFutures is MarketFactors over futures tickers.
func (s *Service) MarketFactorsFutures(ctx context.Context, symbol string) (*FactorReport, error) {
	return s.factors(ctx, symbol, s.FuturesTicker24h)
}

func (s *Service) factors(ctx context.Context, symbol string, ticker tickerSource) (*FactorReport, error) {
	t, err := ticker(ctx, symbol)
	if err != nil {
		return nil, err
	}

	// Benchmarks are optional context; a failed lookup counts as no move.
	benchmarks := []string{"BTC", "ETH"}
	changes := make([]float64, len(benchmarks))
	s.fanOut(ctx, len(benchmarks), func(ctx context.Context, i int) {
		if bt, berr := ticker(ctx, benchmarks[i]); berr == nil {
			changes[i] = bt.PriceChangePercent
		}
	})
	btc, eth := changes[0], changes[1]

	change := t.PriceChangePercent
	vsBTC, vsETH := change-btc, change-eth

	var factors []string
	switch {
	case btc > 2:
		factors = append(factors, "📈 BTC rally is lifting market sentiment")
	case btc < -2:
		factors = append(factors, "📉 BTC decline is weighing on the market")
	}
	switch {
	case vsBTC > 5:
		factors = append(factors, fmt.Sprintf("💪 strong against BTC (+%.1f%%)", vsBTC))
	case vsBTC < -5:
		factors = append(factors, fmt.Sprintf("😔 weak against BTC (%.1f%%)", vsBTC))
	}
	switch {
	case t.QuoteVolume24h > 1e8:
		factors = append(factors, "🔥 active trading, clear inflows")
	case t.QuoteVolume24h < 1e6:
		factors = append(factors, "💤 thin trading, poor liquidity")
	}
	if len(factors) == 0 {
		factors = []string{"market is calm, no notable factors"}
	}

	strength := "weaker than the market"
	if vsBTC > 0 {
		strength = "stronger than the market"
	}

	return &FactorReport{
		Symbol:    t.Symbol,
		Market:    t.Market,
		Price:     t.PriceFormatted,
		Change24h: t.PriceChangeDisplay,
		MarketComparison: MarketComparison{
			BTCChange24h:     Percent(btc),
			ETHChange24h:     Percent(eth),
			VsBTC:            Percent(vsBTC),
			VsETH:            Percent(vsETH),
			RelativeStrength: strength,
		},
		Factors: factors,
		Suggestions: []string{
			"follow BTC, the market direction drives everything else",
			"watch volume; moves backed by volume are healthier",
			"keep an eye on project news and announcements",
		},
	}, nil
}

// trailingMean averages the last n values, or returns the last value when the
// series is shorter than n.
func trailingMean(values []float64, n int) float64 {
	if len(values) < n {
		return values[len(values)-1]
	}
	return indicators.Mean(values[len(values)-n:])
}

// fixedMean sums up to the last n values and divides by n regardless of how
// many there were.
func fixedMean(values []float64, n int) float64 {
	start := max(len(values)-n, 0)
	var sum float64
	for _, v := range values[start:] {
		sum += v
	}
	return sum / float64(n)
}

func moneyList(values []float64, n int) []string {
	out := []string{}
	for i, v := range values {
		if i == n {
			break
		}
		out = append(out, Money(v, 4))
	}
	return out
}
