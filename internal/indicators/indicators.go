// Package indicators implements the technical indicators used by the market
// analysis tools. All functions are pure and operate on oldest-first series.
package indicators

import (
	"math"
	"sort"
)

// SMA returns the simple moving average series. It is empty when the input is
// shorter than period.
func SMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return nil
	}
	out := make([]float64, 0, len(prices)-period+1)
	for i := 0; i+period <= len(prices); i++ {
		out = append(out, mean(prices[i:i+period]))
	}
	return out
}

// EMA returns the exponential moving average series seeded with the SMA of
// the first period values.
func EMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return nil
	}
	k := 2.0 / float64(period+1)
	out := make([]float64, 0, len(prices)-period+1)
	out = append(out, mean(prices[:period]))
	for _, p := range prices[period:] {
		prev := out[len(out)-1]
		out = append(out, (p-prev)*k+prev)
	}
	return out
}

// RSI is the relative strength index using simple averages of the last
// period gains and losses. Short inputs return the neutral 50.
func RSI(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period+1 {
		return 50
	}
	var gain, loss float64
	for i := len(prices) - period; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change >= 0 {
			gain += change
		} else {
			loss -= change
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return Round(100-100/(1+rs), 2)
}

// MACDResult holds the latest MACD values.
type MACDResult struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// MACD computes the latest MACD line, signal line and histogram. Inputs shorter
// than slow+signal yield zeros.
func MACD(prices []float64, fast, slow, signal int) MACDResult {
	if len(prices) < slow+signal {
		return MACDResult{}
	}
	emaFast := EMA(prices, fast)
	emaSlow := EMA(prices, slow)
	if diff := len(emaFast) - len(emaSlow); diff > 0 {
		emaFast = emaFast[diff:]
	}

	n := len(emaFast)
	if len(emaSlow) < n {
		n = len(emaSlow)
	}
	line := make([]float64, n)
	for i := 0; i < n; i++ {
		line[i] = emaFast[i] - emaSlow[i]
	}
	if len(line) < signal {
		return MACDResult{}
	}

	sig := EMA(line, signal)
	current := line[len(line)-1]
	var currentSignal float64
	if len(sig) > 0 {
		currentSignal = sig[len(sig)-1]
	}
	return MACDResult{
		MACD:      Round(current, 6),
		Signal:    Round(currentSignal, 6),
		Histogram: Round(current-currentSignal, 6),
	}
}

// Bands holds Bollinger band levels.
type Bands struct {
	Upper     float64 `json:"upper"`
	Middle    float64 `json:"middle"`
	Lower     float64 `json:"lower"`
	Bandwidth float64 `json:"bandwidth"`
}

// Bollinger computes bands over the last period prices with the population
// standard deviation.
func Bollinger(prices []float64, period int, stdDev float64) Bands {
	if period <= 0 || len(prices) < period {
		return Bands{}
	}
	recent := prices[len(prices)-period:]
	middle := mean(recent)
	var variance float64
	for _, p := range recent {
		variance += (p - middle) * (p - middle)
	}
	std := math.Sqrt(variance / float64(period))

	upper := middle + stdDev*std
	lower := middle - stdDev*std
	var bandwidth float64
	if middle > 0 {
		bandwidth = (upper - lower) / middle * 100
	}
	return Bands{
		Upper:     Round(upper, 6),
		Middle:    Round(middle, 6),
		Lower:     Round(lower, 6),
		Bandwidth: Round(bandwidth, 2),
	}
}

// Levels are support and resistance prices, highest first.
type Levels struct {
	Support    []float64 `json:"support"`
	Resistance []float64 `json:"resistance"`
}

// SupportResistance finds strict local extremes over +/-2 bars in the last 50
// highs and lows. It needs at least 20 closes.
func SupportResistance(highs, lows, closes []float64) Levels {
	levels := Levels{Support: []float64{}, Resistance: []float64{}}
	if len(closes) < 20 {
		return levels
	}
	highs = tail(highs, 50)
	lows = tail(lows, 50)

	var resistances, supports []float64
	for i := 2; i < len(highs)-2; i++ {
		h := highs[i]
		if h > highs[i-1] && h > highs[i-2] && h > highs[i+1] && h > highs[i+2] {
			resistances = append(resistances, h)
		}
	}
	for i := 2; i < len(lows)-2; i++ {
		l := lows[i]
		if l < lows[i-1] && l < lows[i-2] && l < lows[i+1] && l < lows[i+2] {
			supports = append(supports, l)
		}
	}

	levels.Resistance = topLevels(resistances, 5)
	levels.Support = topLevels(supports, 5)
	return levels
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	return mean(values)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func tail(values []float64, n int) []float64 {
	if len(values) > n {
		return values[len(values)-n:]
	}
	return values
}

func topLevels(values []float64, n int) []float64 {
	seen := make(map[float64]struct{}, len(values))
	out := make([]float64, 0, len(values))
	for _, v := range values {
		r := Round(v, 4)
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(out)))
	if len(out) > n {
		out = out[:n]
	}
	return out
}
