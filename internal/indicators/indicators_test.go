package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(from, to int) []float64 {
	out := make([]float64, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, float64(i))
	}
	return out
}

func TestSMAAndEMA(t *testing.T) {
	require.Equal(t, []float64{1.5, 2.5, 3.5}, SMA([]float64{1, 2, 3, 4}, 2))
	require.Nil(t, SMA([]float64{1}, 2))

	ema := EMA([]float64{1, 2, 3, 4}, 2)
	require.Len(t, ema, 3)
	assert.InDelta(t, 1.5, ema[0], 1e-9)
	assert.InDelta(t, 2.5, ema[1], 1e-9)
	assert.InDelta(t, 3.5, ema[2], 1e-9)
	require.Nil(t, EMA([]float64{1, 2}, 3))
}

func TestRSI(t *testing.T) {
	require.Equal(t, 50.0, RSI(series(1, 14), 14))
	require.Equal(t, 100.0, RSI(series(1, 15), 14))

	alternating := make([]float64, 15)
	for i := range alternating {
		alternating[i] = 10 + float64(i%2)
	}
	require.Equal(t, 50.0, RSI(alternating, 14))
}

func TestMACDNeedsSlowPlusSignal(t *testing.T) {
	require.Equal(t, MACDResult{}, MACD(series(1, 30), 12, 26, 9))

	flat := make([]float64, 60)
	for i := range flat {
		flat[i] = 5
	}
	require.Equal(t, MACDResult{}, MACD(flat, 12, 26, 9))

	rising := MACD(series(1, 60), 12, 26, 9)
	require.Greater(t, rising.MACD, 0.0)
}

func TestBollinger(t *testing.T) {
	bands := Bollinger(series(1, 20), 20, 2)
	assert.Equal(t, 22.032563, bands.Upper)
	assert.Equal(t, 10.5, bands.Middle)
	assert.Equal(t, -1.032563, bands.Lower)
	assert.Equal(t, 219.67, bands.Bandwidth)

	require.Equal(t, Bands{}, Bollinger(series(1, 5), 20, 2))
}

func TestSupportResistance(t *testing.T) {
	highs := []float64{1, 2, 3, 9, 3, 2, 1, 2, 3, 8, 3, 2, 1, 2, 3, 7, 3, 2, 1, 2, 3, 2}
	lows := make([]float64, len(highs))
	for i, h := range highs {
		lows[i] = h - 0.5
	}

	levels := SupportResistance(highs, lows, highs)
	require.Equal(t, []float64{9, 8, 7}, levels.Resistance)
	require.Equal(t, []float64{0.5}, levels.Support)

	short := SupportResistance(highs[:10], lows[:10], highs[:10])
	require.Empty(t, short.Resistance)
	require.NotNil(t, short.Support)
}

func TestAnalyzeTrend(t *testing.T) {
	trend := AnalyzeTrend(series(1, 30))
	require.Equal(t, 5, trend.TrendScore)
	require.Equal(t, "📈 strong up", trend.Trend)
	require.Equal(t, 100.0, trend.Strength)
	require.Equal(t, "+11.11%", trend.PriceVsMA7)
	require.Equal(t, "+46.34%", trend.PriceVsMA20)
	require.Equal(t, "+3.45%", trend.Changes["1d"])
	require.Equal(t, "+25.00%", trend.Changes["7d"])
	require.Equal(t, "+76.47%", trend.Changes["14d"])

	require.Equal(t, "unknown", AnalyzeTrend(series(1, 10)).Trend)
}

func TestPriceProbability(t *testing.T) {
	closes := series(1, 30)
	rsi := RSI(closes, 14)
	prob := PriceProbability(closes, rsi, MACD(closes, 12, 26, 9), Bollinger(closes, 20, 2))

	require.Equal(t, 35.0, prob.UpProbability)
	require.Equal(t, 65.0, prob.DownProbability)
	require.Equal(t, "medium", prob.Confidence)
	require.NotNil(t, prob.Factors)
	require.Equal(t, "+15.38%", prob.Factors.Momentum)
	require.Equal(t, "bearish", prob.Factors.MACDSignal)

	short := PriceProbability(series(1, 5), 50, MACDResult{}, Bands{})
	require.Equal(t, 50.0, short.UpProbability)
	require.Equal(t, "low", short.Confidence)
}

func TestRoundAndClamp(t *testing.T) {
	require.Equal(t, 1.23, Round(1.2345, 2))
	require.Equal(t, 10.0, Clamp(12, -10, 10))
	require.Equal(t, -10.0, Clamp(-12, -10, 10))
	require.Equal(t, 0.0, Mean(nil))
}
