package market

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/namelens/coinbridge/internal/binance"
)

const alphaNote = "data from the Binance Alpha market"

// Price is a last-trade price.
type Price struct {
	Symbol         string  `json:"symbol"`
	Market         string  `json:"market,omitempty"`
	Price          float64 `json:"price"`
	PriceFormatted string  `json:"price_formatted"`
	Time           string  `json:"time,omitempty"`
	Note           string  `json:"note,omitempty"`
}

// Ticker is a 24h rolling window summary.
type Ticker struct {
	Symbol               string  `json:"symbol"`
	AlphaID              string  `json:"alpha_id,omitempty"`
	Name                 string  `json:"name,omitempty"`
	Market               string  `json:"market"`
	Price                float64 `json:"price"`
	PriceFormatted       string  `json:"price_formatted"`
	PriceChange          float64 `json:"price_change"`
	PriceChangePercent   float64 `json:"price_change_percent"`
	PriceChangeDisplay   string  `json:"price_change_display"`
	High24h              float64 `json:"high_24h"`
	Low24h               float64 `json:"low_24h"`
	Volume24h            float64 `json:"volume_24h"`
	Volume24hFormatted   string  `json:"volume_24h_formatted,omitempty"`
	QuoteVolume24h       float64 `json:"quote_volume_24h"`
	QuoteVolumeFormatted string  `json:"quote_volume_formatted"`
	OpenPrice            float64 `json:"open_price,omitempty"`
	WeightedAvgPrice     float64 `json:"weighted_avg_price,omitempty"`
	TradeCount           int64   `json:"trade_count,omitempty"`
	MarketCap            float64 `json:"market_cap,omitempty"`
	MarketCapFormatted   string  `json:"market_cap_formatted,omitempty"`
	Chain                string  `json:"chain,omitempty"`
	Holders              float64 `json:"holders,omitempty"`
	TrendEmoji           string  `json:"trend_emoji"`
	Note                 string  `json:"note,omitempty"`
}

// TickerEntry is one slot of a multi-symbol result. Exactly one of Ticker and
// Error is set.
type TickerEntry struct {
	*Ticker
	Error string `json:"error,omitempty"`
	Err   error  `json:"-"`
}

// Candle is one kline with display timestamps.
type Candle struct {
	OpenTime    string  `json:"open_time"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	Volume      float64 `json:"volume"`
	CloseTime   string  `json:"close_time"`
	QuoteVolume float64 `json:"quote_volume"`
	Trades      int64   `json:"trades"`
}

// KlineSeries is a run of candles, oldest first.
type KlineSeries struct {
	Symbol   string   `json:"symbol"`
	AlphaID  string   `json:"alpha_id,omitempty"`
	Market   string   `json:"market"`
	Interval string   `json:"interval"`
	Count    int      `json:"count"`
	Klines   []Candle `json:"klines"`
	Note     string   `json:"note,omitempty"`
}

// Closes returns the close prices.
func (k KlineSeries) Closes() []float64 {
	return k.column(func(c Candle) float64 { return c.Close })
}

// Highs returns the high prices.
func (k KlineSeries) Highs() []float64 {
	return k.column(func(c Candle) float64 { return c.High })
}

// Lows returns the low prices.
func (k KlineSeries) Lows() []float64 {
	return k.column(func(c Candle) float64 { return c.Low })
}

func (k KlineSeries) column(pick func(Candle) float64) []float64 {
	out := make([]float64, len(k.Klines))
	for i, c := range k.Klines {
		out[i] = pick(c)
	}
	return out
}

// SpotPrice returns the spot price, falling back to the Alpha token list for
// symbols spot does not list.
func (s *Service) SpotPrice(ctx context.Context, symbol string) (*Price, error) {
	symbol = Normalize(symbol)
	p, err := s.bn.SpotPrice(ctx, symbol)
	if err != nil {
		if binance.IsInvalidSymbol(err) {
			if alpha, aerr := s.AlphaTicker(ctx, symbol); aerr == nil {
				return &Price{
					Symbol:         symbol,
					Market:         MarketAlpha,
					Price:          alpha.Price,
					PriceFormatted: alpha.PriceFormatted,
					Note:           alphaNote,
				}, nil
			}
		}
		return nil, fmt.Errorf("spot price %s: %w", symbol, err)
	}
	price := p.Price.Float()
	return &Price{
		Symbol:         p.Symbol,
		Market:         MarketSpot,
		Price:          price,
		PriceFormatted: Money(price, 4),
	}, nil
}

// Ticker24h returns the spot 24h ticker. Symbols spot does not list are
// looked up in Alpha, then in futures.
func (s *Service) Ticker24h(ctx context.Context, symbol string) (*Ticker, error) {
	symbol = Normalize(symbol)
	t, err := s.bn.SpotTicker24h(ctx, symbol)
	if err != nil {
		if binance.IsInvalidSymbol(err) {
			if alpha, aerr := s.AlphaTicker(ctx, symbol); aerr == nil {
				return alpha, nil
			}
			if fut, ferr := s.FuturesTicker24h(ctx, symbol); ferr == nil {
				return fut, nil
			}
		}
		return nil, fmt.Errorf("24h ticker %s: %w", symbol, err)
	}
	return tickerView(t, MarketSpot), nil
}

// MultipleTickers fetches spot tickers concurrently. Failures are recorded
// per entry.
func (s *Service) MultipleTickers(ctx context.Context, symbols []string) map[string]TickerEntry {
	return s.multiple(ctx, symbols, s.Ticker24h)
}

// FuturesMultipleTickers fetches futures tickers concurrently.
func (s *Service) FuturesMultipleTickers(ctx context.Context, symbols []string) map[string]TickerEntry {
	return s.multiple(ctx, symbols, s.FuturesTicker24h)
}

func (s *Service) multiple(ctx context.Context, symbols []string, fetch func(context.Context, string) (*Ticker, error)) map[string]TickerEntry {
	entries := make([]TickerEntry, len(symbols))
	s.fanOut(ctx, len(symbols), func(ctx context.Context, i int) {
		t, err := fetch(ctx, symbols[i])
		if err != nil {
			entries[i] = TickerEntry{Error: err.Error(), Err: err}
			return
		}
		entries[i] = TickerEntry{Ticker: t}
	})

	out := make(map[string]TickerEntry, len(symbols))
	for i, symbol := range symbols {
		out[strings.ToUpper(strings.TrimSpace(symbol))] = entries[i]
	}
	return out
}

// FuturesPrice returns the futures last price.
func (s *Service) FuturesPrice(ctx context.Context, symbol string) (*Price, error) {
	symbol = Normalize(symbol)
	p, err := s.bn.FuturesPrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("futures price %s: %w", symbol, err)
	}
	price := p.Price.Float()
	return &Price{
		Symbol:         p.Symbol,
		Price:          price,
		PriceFormatted: Money(price, 4),
		Time:           FormatMillisOr(p.Time, ""),
	}, nil
}

// FuturesTicker24h returns the futures 24h ticker.
func (s *Service) FuturesTicker24h(ctx context.Context, symbol string) (*Ticker, error) {
	symbol = Normalize(symbol)
	t, err := s.bn.FuturesTicker24h(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("futures 24h ticker %s: %w", symbol, err)
	}
	return tickerView(t, MarketFutures), nil
}

// AlphaTicker builds a ticker from the Alpha token list.
func (s *Service) AlphaTicker(ctx context.Context, symbol string) (*Ticker, error) {
	token, err := s.bn.FindAlphaToken(ctx, symbol)
	if err != nil {
		return nil, err
	}
	price := token.Price.Float()
	change := token.PercentChange24h.Float()
	volume := token.Volume24h.Float()
	marketCap := token.MarketCap.Float()
	return &Ticker{
		Symbol:               token.Symbol + "USDT",
		AlphaID:              token.AlphaID,
		Name:                 token.Name,
		Market:               MarketAlpha,
		Price:                price,
		PriceFormatted:       Money(price, 6),
		PriceChangePercent:   change,
		PriceChangeDisplay:   Percent(change),
		High24h:              token.PriceHigh24h.Float(),
		Low24h:               token.PriceLow24h.Float(),
		Volume24h:            volume,
		QuoteVolume24h:       volume,
		QuoteVolumeFormatted: "$" + Compact(volume),
		MarketCap:            marketCap,
		MarketCapFormatted:   "$" + Compact(marketCap),
		Chain:                token.ChainName,
		Holders:              token.Holders.Float(),
		TrendEmoji:           TrendEmoji(change),
		Note:                 alphaNote,
	}, nil
}

func tickerView(t binance.Ticker24h, market string) *Ticker {
	last := t.LastPrice.Float()
	change := t.PriceChangePercent.Float()
	volume := t.Volume.Float()
	quote := t.QuoteVolume.Float()
	return &Ticker{
		Symbol:               t.Symbol,
		Market:               market,
		Price:                last,
		PriceFormatted:       Money(last, 4),
		PriceChange:          t.PriceChange.Float(),
		PriceChangePercent:   change,
		PriceChangeDisplay:   Percent(change),
		High24h:              t.HighPrice.Float(),
		Low24h:               t.LowPrice.Float(),
		Volume24h:            volume,
		Volume24hFormatted:   Compact(volume),
		QuoteVolume24h:       quote,
		QuoteVolumeFormatted: "$" + Compact(quote),
		OpenPrice:            t.OpenPrice.Float(),
		WeightedAvgPrice:     t.WeightedAvgPrice.Float(),
		TradeCount:           t.Count,
		TrendEmoji:           TrendEmoji(change),
	}
}

// Klines returns spot candles. Symbols spot does not list are looked up in
// Alpha, then in futures.
func (s *Service) Klines(ctx context.Context, symbol, interval string, limit int) (*KlineSeries, error) {
	symbol = Normalize(symbol)
	if err := validateInterval(interval); err != nil {
		return nil, err
	}
	limit = clampLimit(limit, DefaultKlineLimit, MaxKlineLimit)

	raw, err := s.bn.SpotKlines(ctx, symbol, interval, limit)
	if err != nil {
		if binance.IsInvalidSymbol(err) {
			if alpha, aerr := s.AlphaKlines(ctx, symbol, interval, limit); aerr == nil {
				return alpha, nil
			}
			if fut, ferr := s.FuturesKlines(ctx, symbol, interval, limit); ferr == nil {
				return fut, nil
			}
		}
		return nil, fmt.Errorf("klines %s: %w", symbol, err)
	}
	return klineSeries(symbol, MarketSpot, interval, raw), nil
}

// FuturesKlines returns futures candles.
func (s *Service) FuturesKlines(ctx context.Context, symbol, interval string, limit int) (*KlineSeries, error) {
	symbol = Normalize(symbol)
	if err := validateInterval(interval); err != nil {
		return nil, err
	}
	limit = clampLimit(limit, DefaultKlineLimit, MaxKlineLimit)

	raw, err := s.bn.FuturesKlines(ctx, symbol, interval, limit)
	if err != nil {
		return nil, fmt.Errorf("futures klines %s: %w", symbol, err)
	}
	return klineSeries(symbol, MarketFutures, interval, raw), nil
}

// AlphaKlines returns candles for an Alpha token found by symbol or name.
func (s *Service) AlphaKlines(ctx context.Context, symbol, interval string, limit int) (*KlineSeries, error) {
	if err := validateInterval(interval); err != nil {
		return nil, err
	}
	token, err := s.bn.FindAlphaToken(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if token.AlphaID == "" {
		return nil, errors.New("alpha token has no id")
	}
	raw, err := s.bn.AlphaKlines(ctx, token.AlphaID, interval, clampLimit(limit, DefaultKlineLimit, MaxKlineLimit))
	if err != nil {
		return nil, err
	}
	series := klineSeries(token.Symbol+"USDT", MarketAlpha, interval, raw)
	series.AlphaID = token.AlphaID
	series.Note = alphaNote
	return series, nil
}

func klineSeries(symbol, market, interval string, raw []binance.Kline) *KlineSeries {
	candles := make([]Candle, len(raw))
	for i, k := range raw {
		candles[i] = Candle{
			OpenTime:    FormatMillis(k.OpenTime),
			Open:        k.Open.Float(),
			High:        k.High.Float(),
			Low:         k.Low.Float(),
			Close:       k.Close.Float(),
			Volume:      k.Volume.Float(),
			CloseTime:   FormatMillisOr(k.CloseTime, ""),
			QuoteVolume: k.QuoteVolume.Float(),
			Trades:      k.Trades,
		}
	}
	return &KlineSeries{
		Symbol:   symbol,
		Market:   market,
		Interval: interval,
		Count:    len(candles),
		Klines:   candles,
	}
}
