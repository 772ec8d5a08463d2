package indicators

import "fmt"

// TrendPattern summarizes direction from moving averages and recent change.
type TrendPattern struct {
	Trend       string            `json:"trend"`
	TrendScore  int               `json:"trend_score"`
	Strength    float64           `json:"strength"`
	Description string            `json:"description"`
	PriceVsMA7  string            `json:"price_vs_ma7,omitempty"`
	PriceVsMA20 string            `json:"price_vs_ma20,omitempty"`
	Changes     map[string]string `json:"changes,omitempty"`
}

// AnalyzeTrend scores the trend of a close series. It needs 20 closes.
func AnalyzeTrend(closes []float64) TrendPattern {
	if len(closes) < 20 {
		return TrendPattern{Trend: "unknown", Description: "insufficient data"}
	}

	n := len(closes)
	current := closes[n-1]
	changes := map[string]float64{
		"1d":  pctChange(current, closes[n-2]),
		"7d":  pctChange(current, closes[n-7]),
		"14d": pctChange(current, closes[n-14]),
	}

	ma7 := mean(closes[n-7:])
	ma20 := mean(closes[n-20:])

	score := 0
	score += sign(current > ma7)
	score += sign(current > ma20)
	score += sign(ma7 > ma20)
	switch c := changes["7d"]; {
	case c > 5:
		score += 2
	case c > 0:
		score++
	case c < -5:
		score -= 2
	default:
		score--
	}

	var trend, description string
	switch {
	case score >= 3:
		trend, description = "📈 strong up", "clear bullish trend, watch for pullback entries"
	case score >= 1:
		trend, description = "↗️ mild up", "leaning bullish, may continue higher"
	case score <= -3:
		trend, description = "📉 strong down", "clear bearish trend, stay cautious"
	case score <= -1:
		trend, description = "↘️ mild down", "leaning bearish, may continue lower"
	default:
		trend, description = "➡️ sideways", "no clear direction, wait for a breakout"
	}

	formatted := make(map[string]string, len(changes))
	for k, v := range changes {
		formatted[k] = fmt.Sprintf("%+.2f%%", v)
	}

	return TrendPattern{
		Trend:       trend,
		TrendScore:  score,
		Strength:    float64(abs(score)) / 5 * 100,
		Description: description,
		PriceVsMA7:  fmt.Sprintf("%+.2f%%", (current/ma7-1)*100),
		PriceVsMA20: fmt.Sprintf("%+.2f%%", (current/ma20-1)*100),
		Changes:     formatted,
	}
}

// Probability is the heuristic up/down estimate.
type Probability struct {
	UpProbability   float64            `json:"up_probability"`
	DownProbability float64            `json:"down_probability"`
	Confidence      string             `json:"confidence"`
	Factors         *ProbabilityFactor `json:"factors,omitempty"`
}

// ProbabilityFactor explains the inputs behind a Probability.
type ProbabilityFactor struct {
	RSISignal  string `json:"rsi_signal"`
	MACDSignal string `json:"macd_signal"`
	BBSignal   string `json:"bb_signal"`
	Momentum   string `json:"momentum"`
}

// PriceProbability combines RSI, MACD, Bollinger position and 5-bar momentum
// into an up probability clamped to [15, 85]. It needs 14 closes.
func PriceProbability(closes []float64, rsi float64, macd MACDResult, bb Bands) Probability {
	if len(closes) < 14 {
		return Probability{UpProbability: 50, DownProbability: 50, Confidence: "low"}
	}

	score := 50.0
	switch {
	case rsi < 30:
		score += 15
	case rsi > 70:
		score -= 15
	case rsi > 50:
		score += 5
	default:
		score -= 5
	}

	if macd.Histogram > 0 {
		score += 10
		if macd.MACD > macd.Signal {
			score += 5
		}
	} else {
		score -= 10
		if macd.MACD < macd.Signal {
			score -= 5
		}
	}

	current := closes[len(closes)-1]
	switch {
	case current < bb.Lower:
		score += 10
	case current > bb.Upper:
		score -= 10
	}

	momentum := pctChange(current, closes[len(closes)-5])
	score += Clamp(momentum*2, -10, 10)

	up := Clamp(score, 15, 85)
	confidence := "high"
	switch {
	case up >= 40 && up <= 60:
		confidence = "low"
	case up >= 30 && up <= 70:
		confidence = "medium"
	}

	rsiSignal := "neutral"
	switch {
	case rsi < 30:
		rsiSignal = "oversold, rebound likely"
	case rsi > 70:
		rsiSignal = "overbought, pullback likely"
	}
	macdSignal := "bearish"
	if macd.Histogram > 0 {
		macdSignal = "bullish"
	}
	bbSignal := "neutral"
	switch {
	case current < bb.Lower:
		bbSignal = "touching lower band"
	case current > bb.Upper:
		bbSignal = "touching upper band"
	}

	return Probability{
		UpProbability:   Round(up, 1),
		DownProbability: Round(100-up, 1),
		Confidence:      confidence,
		Factors: &ProbabilityFactor{
			RSISignal:  rsiSignal,
			MACDSignal: macdSignal,
			BBSignal:   bbSignal,
			Momentum:   fmt.Sprintf("%+.2f%%", momentum),
		},
	}
}

func pctChange(current, base float64) float64 {
	if base == 0 {
		return 0
	}
	return (current - base) / base * 100
}

func sign(cond bool) int {
	if cond {
		return 1
	}
	return -1
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
