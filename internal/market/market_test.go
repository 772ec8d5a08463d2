package market

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namelens/coinbridge/internal/binance"
	"github.com/namelens/coinbridge/internal/core/coordinator"
)

// fakeBinance serves canned bodies keyed by "<prefix><path>" and, when a
// symbol is present, "<prefix><path>?<symbol>".
type fakeBinance struct {
	t      *testing.T
	bodies map[string]string
	status map[string]int
}

func newFakeBinance(t *testing.T) *fakeBinance {
	return &fakeBinance{t: t, bodies: map[string]string{}, status: map[string]int{}}
}

func (f *fakeBinance) on(route, body string) *fakeBinance {
	f.bodies[route] = body
	return f
}

func (f *fakeBinance) fail(route string, status int, body string) *fakeBinance {
	f.status[route] = status
	f.bodies[route] = body
	return f
}

func (f *fakeBinance) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	keys := []string{r.URL.Path}
	if sym := r.URL.Query().Get("symbol"); sym != "" {
		keys = []string{r.URL.Path + "?" + sym}
	}
	for _, key := range keys {
		body, ok := f.bodies[key]
		if !ok {
			continue
		}
		w.Header().Set("Content-Type", "application/json")
		if status, ok := f.status[key]; ok {
			w.WriteHeader(status)
		}
		_, _ = w.Write([]byte(body))
		return
	}
	w.WriteHeader(http.StatusBadRequest)
	_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
}

func (f *fakeBinance) service(opts ...Option) *Service {
	server := httptest.NewServer(f)
	f.t.Cleanup(server.Close)
	client := binance.New(coordinator.New("binance", coordinator.BinancePolicies()), binance.Options{
		SpotBaseURLs:       []string{server.URL + "/spot"},
		FuturesBaseURLs:    []string{server.URL + "/fapi"},
		FuturesDataBaseURL: server.URL + "/data",
		AlphaBaseURL:       server.URL + "/alpha",
		AlphaTokenListURL:  server.URL + "/alpha/list",
	})
	return New(client, opts...)
}

func ticker(symbol string, last, change, quoteVolume float64) string {
	return fmt.Sprintf(`{"symbol":%q,"lastPrice":"%f","priceChangePercent":"%f","priceChange":"0","highPrice":"%f","lowPrice":"%f","volume":"100","quoteVolume":"%f","count":10}`,
		symbol, last, change, last*1.1, last*0.9, quoteVolume)
}

func klines(n int, start float64, step float64) string {
	rows := make([]string, n)
	base := int64(1700000000000)
	for i := range n {
		open := start + float64(i)*step
		closePrice := open + step
		rows[i] = fmt.Sprintf(`[%d,"%g","%g","%g","%g","10",%d,"1000",5]`,
			base+int64(i)*3600000, open, max(open, closePrice)+1, min(open, closePrice)-1, closePrice, base+int64(i+1)*3600000-1)
	}
	return "[" + strings.Join(rows, ",") + "]"
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "$1,234.57", Money(1234.5678, 2))
	assert.Equal(t, "$0.123400", Money(0.1234, 6))
	assert.Equal(t, "1,234,567.0", Grouped(1234567, 1))
	assert.Equal(t, "+1.50%", Percent(1.5))
	assert.Equal(t, "-0.25%", Percent(-0.25))
	assert.Equal(t, "1.50B", Compact(1.5e9))
	assert.Equal(t, "2.25M", Compact(2.25e6))
	assert.Equal(t, "3.00K", Compact(3000))
	assert.Equal(t, "999.00", Compact(999))
	assert.Equal(t, "🟢", TrendEmoji(0.1))
	assert.Equal(t, "🔴", TrendEmoji(-0.1))
	assert.Equal(t, "⚪", TrendEmoji(0))
	assert.Equal(t, "N/A", FormatMillisOr(0, "N/A"))
}

func TestCountdown(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	deadline := now.Add(time.Hour + 2*time.Minute + 3*time.Second).UnixMilli()

	assert.Equal(t, "01:02:03", countdown(now, deadline, false))
	assert.Equal(t, "01:02", countdown(now, deadline, true))
	assert.Equal(t, "settling", countdown(now, now.Add(-time.Second).UnixMilli(), false))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "BTCUSDT", Normalize(" btc "))
	assert.Equal(t, "ETHUSDT", Normalize("ethusdt"))
}

func TestPredictFunding(t *testing.T) {
	premium, predicted := PredictFunding(100, 100, 0.0001)
	assert.InDelta(t, 0, premium, 1e-12)
	assert.InDelta(t, 0.01, predicted, 1e-12)

	premium, predicted = PredictFunding(101, 100, 0.0001)
	assert.InDelta(t, 1.0, premium, 1e-9)
	assert.InDelta(t, 0.75, predicted, 1e-12, "predicted rate is capped")

	premium, predicted = PredictFunding(100.02, 100, 0.0001)
	assert.InDelta(t, 0.02, premium, 1e-9)
	assert.InDelta(t, 0.01, predicted, 1e-9)

	_, predicted = PredictFunding(1, 0, 0.0001)
	assert.InDelta(t, 0.01, predicted, 1e-12, "zero index leaves premium at zero")
}

func TestFundingLevelAndSignal(t *testing.T) {
	cases := map[float64]string{
		-0.6:  "extreme negative",
		-0.2:  "high negative",
		-0.01: "normal negative",
		0:     "normal positive",
		0.2:   "high positive",
		0.5:   "extreme positive",
	}
	for rate, want := range cases {
		assert.Equal(t, want, FundingLevel(rate), "rate %v", rate)
	}
	assert.Equal(t, "longs pay", FundingSignal(0.01))
	assert.Equal(t, "shorts pay", FundingSignal(-0.01))
	assert.Equal(t, "neutral", FundingSignal(0))
}

func TestTicker24hFallsBackToAlpha(t *testing.T) {
	svc := newFakeBinance(t).
		on("/alpha/list", `{"code":"000000","success":true,"data":[{"alphaId":"ALPHA_1","symbol":"KOGE","name":"KOGE","price":"1.5","percentChange24h":"2.5","volume24h":"1000","chainName":"BSC"}]}`).
		service()

	tk, err := svc.Ticker24h(context.Background(), "koge")
	require.NoError(t, err)
	assert.Equal(t, MarketAlpha, tk.Market)
	assert.Equal(t, "KOGEUSDT", tk.Symbol)
	assert.Equal(t, "ALPHA_1", tk.AlphaID)
	assert.InDelta(t, 1.5, tk.Price, 1e-12)
	assert.Equal(t, "+2.50%", tk.PriceChangeDisplay)
	assert.Equal(t, "BSC", tk.Chain)
}

func TestTicker24hFallsBackToFutures(t *testing.T) {
	svc := newFakeBinance(t).
		on("/alpha/list", `{"code":"000000","success":true,"data":[]}`).
		on("/fapi/ticker/24hr?XYZUSDT", ticker("XYZUSDT", 2, -1, 5e6)).
		service()

	tk, err := svc.Ticker24h(context.Background(), "XYZ")
	require.NoError(t, err)
	assert.Equal(t, MarketFutures, tk.Market)
	assert.Equal(t, "🔴", tk.TrendEmoji)
}

func TestTicker24hUnknownSymbol(t *testing.T) {
	svc := newFakeBinance(t).
		on("/alpha/list", `{"code":"000000","success":true,"data":[]}`).
		service()

	_, err := svc.Ticker24h(context.Background(), "NOPE")
	require.Error(t, err)
	assert.True(t, binance.IsInvalidSymbol(err))
}

func TestMultipleTickersRecordsFailures(t *testing.T) {
	svc := newFakeBinance(t).
		on("/spot/ticker/24hr?BTCUSDT", ticker("BTCUSDT", 65000, 1.2, 1e9)).
		on("/alpha/list", `{"code":"000000","success":true,"data":[]}`).
		service(WithWorkers(2))

	got := svc.MultipleTickers(context.Background(), []string{"btc", "nope"})
	require.Len(t, got, 2)
	require.NotNil(t, got["BTC"].Ticker)
	assert.Equal(t, "BTCUSDT", got["BTC"].Symbol)
	assert.Nil(t, got["NOPE"].Ticker)
	assert.NotEmpty(t, got["NOPE"].Error)
}

func TestKlinesValidatesInterval(t *testing.T) {
	svc := newFakeBinance(t).service()

	_, err := svc.Klines(context.Background(), "BTC", "7m", 10)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.TakerBuySellRatio(context.Background(), "BTC", "1w", 10)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func newExtremeService(t *testing.T) *Service {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	next := now.Add(90 * time.Minute).UnixMilli()
	premium := func(symbol string, mark, index float64) string {
		return fmt.Sprintf(`{"symbol":%q,"markPrice":"%g","indexPrice":"%g","lastFundingRate":"0.0001","interestRate":"0.0001","nextFundingTime":%d}`, symbol, mark, index, next)
	}
	return newFakeBinance(t).
		on("/fapi/exchangeInfo", `{"symbols":[
			{"symbol":"AAAUSDT","status":"TRADING","quoteAsset":"USDT","contractType":"PERPETUAL"},
			{"symbol":"BBBUSDT","status":"TRADING","quoteAsset":"USDT","contractType":"PERPETUAL"},
			{"symbol":"CCCUSDT","status":"TRADING","quoteAsset":"USDT","contractType":"PERPETUAL"},
			{"symbol":"DDDUSDT","status":"SETTLING","quoteAsset":"USDT","contractType":"PERPETUAL"},
			{"symbol":"EEEUSDT","status":"TRADING","quoteAsset":"USDT","contractType":"PERPETUAL"}]}`).
		on("/fapi/premiumIndex", "["+strings.Join([]string{
			premium("AAAUSDT", 101, 100),
			premium("BBBUSDT", 99, 100),
			premium("CCCUSDT", 100, 100),
			premium("DDDUSDT", 110, 100),
			premium("EEEUSDT", 100.3, 100),
		}, ",")+"]").
		service(WithClock(func() time.Time { return now }))
}

func TestExtremeFundingRates(t *testing.T) {
	svc := newExtremeService(t)

	got, err := svc.ExtremeFundingRates(context.Background(), 0.1, 1)
	require.NoError(t, err)

	assert.Equal(t, "0.1%", got.Threshold)
	assert.Equal(t, 2, got.ExtremePositive.Count)
	require.Len(t, got.ExtremePositive.Contracts, 1)
	assert.Equal(t, "AAAUSDT", got.ExtremePositive.Contracts[0].Symbol)
	assert.Equal(t, "01:30", got.ExtremePositive.Contracts[0].Countdown)

	assert.Equal(t, 1, got.ExtremeNegative.Count)
	require.Len(t, got.ExtremeNegative.Contracts, 1)
	assert.Equal(t, "BBBUSDT", got.ExtremeNegative.Contracts[0].Symbol)
	assert.InDelta(t, -0.75, got.ExtremeNegative.Contracts[0].PredictedRate, 1e-9)
}

func TestExtremeFundingRatesHonoursZeroArguments(t *testing.T) {
	svc := newExtremeService(t)

	got, err := svc.ExtremeFundingRates(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, "0%", got.Threshold)
	require.Len(t, got.ExtremePositive.Contracts, 3)
	assert.Equal(t, "AAAUSDT", got.ExtremePositive.Contracts[0].Symbol)
	assert.Equal(t, "EEEUSDT", got.ExtremePositive.Contracts[1].Symbol)
	assert.Equal(t, "CCCUSDT", got.ExtremePositive.Contracts[2].Symbol)
	assert.Equal(t, 1, got.ExtremeNegative.Count)

	got, err = svc.ExtremeFundingRates(context.Background(), 0.1, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ExtremePositive.Count)
	assert.Empty(t, got.ExtremePositive.Contracts)
	assert.Empty(t, got.ExtremeNegative.Contracts)

	_, err = svc.ExtremeFundingRates(context.Background(), -0.1, 20)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.ExtremeFundingRates(context.Background(), 0.1, -1)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestTopGainersLosers(t *testing.T) {
	svc := newFakeBinance(t).
		on("/spot/ticker/24hr", "["+strings.Join([]string{
			ticker("AUSDT", 1, 12, 5e6),
			ticker("BUSDT", 1, 3, 5e6),
			ticker("CUSDT", 1, -4, 5e6),
			ticker("DUSDT", 1, -9, 5e6),
			ticker("THINUSDT", 1, 50, 1e5),
			ticker("EBTC", 1, 40, 5e6),
		}, ",")+"]").
		service()

	got, err := svc.TopGainersLosers(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got.TopGainers, 2)
	require.Len(t, got.TopLosers, 2)
	assert.Equal(t, "AUSDT", got.TopGainers[0].Symbol)
	assert.Equal(t, "BUSDT", got.TopGainers[1].Symbol)
	assert.Equal(t, "DUSDT", got.TopLosers[0].Symbol)
	assert.Equal(t, "CUSDT", got.TopLosers[1].Symbol)
	assert.Equal(t, "+12.00%", got.TopGainers[0].Change)
}

func TestSearchSymbolsFallsBackToAlpha(t *testing.T) {
	svc := newFakeBinance(t).
		on("/spot/exchangeInfo", `{"symbols":[{"symbol":"BTCUSDT","status":"TRADING","baseAsset":"BTC","quoteAsset":"USDT"}]}`).
		on("/alpha/list", `{"code":"000000","success":true,"data":[{"alphaId":"ALPHA_9","symbol":"KOGE","name":"KOGE","price":"1"}]}`).
		service()

	spot, err := svc.SearchSymbols(context.Background(), "btc")
	require.NoError(t, err)
	assert.Equal(t, 1, spot.Count)
	assert.Empty(t, spot.Note)

	alpha, err := svc.SearchSymbols(context.Background(), "koge")
	require.NoError(t, err)
	require.Equal(t, 1, alpha.Count)
	assert.Equal(t, MarketAlpha, alpha.Symbols[0].Market)
	assert.NotEmpty(t, alpha.Note)
}

func TestDetectPatterns(t *testing.T) {
	candles := []Candle{
		{OpenTime: "t0", Open: 100, High: 101, Low: 99, Close: 100.5},
		{OpenTime: "t1", Open: 100, High: 100, Low: 99, Close: 99},
		{OpenTime: "t2", Open: 99, High: 101, Low: 99, Close: 101},
		{OpenTime: "t3", Open: 100, High: 101, Low: 99, Close: 100.05},
	}

	got := DetectPatterns(candles)
	require.Len(t, got, 2)
	assert.Equal(t, Pattern{"bullish engulfing", "t2", "strong bullish signal", "bullish"}, got[0])
	assert.Equal(t, "doji", got[1].Pattern)
	assert.Equal(t, "t3", got[1].Time)

	assert.Empty(t, DetectPatterns(candles[:2]))
}

func TestKlinePatterns(t *testing.T) {
	svc := newFakeBinance(t).
		on("/spot/klines?UPUSDT", klines(60, 100, 1)).
		on("/spot/klines?SHORTUSDT", klines(5, 100, 1)).
		service()

	report, err := svc.KlinePatterns(context.Background(), "UP", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultPatternInterval, report.Interval)
	assert.Equal(t, "uptrend", report.OverallPattern)
	assert.NotNil(t, report.RecentPatterns)
	assert.Equal(t, "$160.0000", report.LatestKline.Close)

	_, err = svc.KlinePatterns(context.Background(), "SHORT", "1h")
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestComprehensiveAnalysis(t *testing.T) {
	svc := newFakeBinance(t).
		on("/spot/klines?UPUSDT", klines(200, 100, 0.5)).
		on("/spot/ticker/24hr?UPUSDT", ticker("UPUSDT", 200, 5, 2e8)).
		service()

	got, err := svc.ComprehensiveAnalysis(context.Background(), "up")
	require.NoError(t, err)
	assert.Equal(t, "UPUSDT", got.Symbol)
	assert.Equal(t, MarketSpot, got.Market)
	assert.Equal(t, "$200.0000", got.CurrentPrice)
	assert.True(t, strings.HasPrefix(got.Summary, "trend: "))
	assert.True(t, strings.HasSuffix(got.Summary, "(1h analysis)"))
	assert.LessOrEqual(t, len(got.SupportResistance.SupportLevels), 3)
	assert.LessOrEqual(t, len(got.SupportResistance.ResistanceLevels), 3)
	assert.Equal(t, "overbought", got.TechnicalIndicators.RSI.Signal)
}

func TestMarketFactors(t *testing.T) {
	svc := newFakeBinance(t).
		on("/spot/ticker/24hr?XUSDT", ticker("XUSDT", 2, 10, 2e8)).
		on("/spot/ticker/24hr?BTCUSDT", ticker("BTCUSDT", 65000, 1, 1e10)).
		on("/alpha/list", `{"code":"000000","success":true,"data":[]}`).
		service()

	got, err := svc.MarketFactors(context.Background(), "X")
	require.NoError(t, err)
	assert.Equal(t, "+1.00%", got.MarketComparison.BTCChange24h)
	assert.Equal(t, "+0.00%", got.MarketComparison.ETHChange24h, "missing benchmark counts as flat")
	assert.Equal(t, "+9.00%", got.MarketComparison.VsBTC)
	assert.Equal(t, "stronger than the market", got.MarketComparison.RelativeStrength)
	assert.Contains(t, got.Factors, "💪 strong against BTC (+9.0%)")
	assert.Contains(t, got.Factors, "🔥 active trading, clear inflows")
	assert.Len(t, got.Suggestions, 3)
}
