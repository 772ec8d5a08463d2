package binance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Number is a decimal that decodes from JSON strings or numbers. Empty strings
// and null decode to zero, matching how Binance pads unset fields.
type Number struct {
	decimal.Decimal
}

// NewNumber builds a Number from a float.
func NewNumber(v float64) Number {
	return Number{Decimal: decimal.NewFromFloat(v)}
}

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte(`""`)) {
		n.Decimal = decimal.Zero
		return nil
	}
	raw := string(bytes.Trim(data, `"`))
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("decode number %q: %w", raw, err)
	}
	n.Decimal = d
	return nil
}

// Float returns the value as a float64.
func (n Number) Float() float64 {
	return n.InexactFloat64()
}

// PriceTicker is /ticker/price.
type PriceTicker struct {
	Symbol string `json:"symbol"`
	Price  Number `json:"price"`
	Time   int64  `json:"time"`
}

// Ticker24h is /ticker/24hr for a single symbol.
type Ticker24h struct {
	Symbol             string `json:"symbol"`
	PriceChange        Number `json:"priceChange"`
	PriceChangePercent Number `json:"priceChangePercent"`
	WeightedAvgPrice   Number `json:"weightedAvgPrice"`
	OpenPrice          Number `json:"openPrice"`
	HighPrice          Number `json:"highPrice"`
	LowPrice           Number `json:"lowPrice"`
	LastPrice          Number `json:"lastPrice"`
	Volume             Number `json:"volume"`
	QuoteVolume        Number `json:"quoteVolume"`
	Count              int64  `json:"count"`
}

// Kline is one candle. Binance encodes it as a positional array.
type Kline struct {
	OpenTime    int64
	Open        Number
	High        Number
	Low         Number
	Close       Number
	Volume      Number
	CloseTime   int64
	QuoteVolume Number
	Trades      int64
}

func (k *Kline) UnmarshalJSON(data []byte) error {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if len(fields) < 6 {
		return fmt.Errorf("kline has %d fields, want at least 6", len(fields))
	}

	var err error
	if k.OpenTime, err = decodeInt(fields[0]); err != nil {
		return err
	}
	for i, dst := range []*Number{&k.Open, &k.High, &k.Low, &k.Close, &k.Volume} {
		if err := dst.UnmarshalJSON(fields[i+1]); err != nil {
			return err
		}
	}
	if len(fields) > 6 {
		if k.CloseTime, err = decodeInt(fields[6]); err != nil {
			return err
		}
	}
	if len(fields) > 7 {
		if err := k.QuoteVolume.UnmarshalJSON(fields[7]); err != nil {
			return err
		}
	}
	if len(fields) > 8 {
		if k.Trades, err = decodeInt(fields[8]); err != nil {
			return err
		}
	}
	return nil
}

// decodeInt accepts 123 or "123"; the Alpha API quotes its timestamps.
func decodeInt(raw json.RawMessage) (int64, error) {
	s := string(bytes.Trim(bytes.TrimSpace(raw), `"`))
	if s == "" || s == "null" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0, fmt.Errorf("decode integer %q: %w", s, err)
		}
		return int64(f), nil
	}
	return v, nil
}

// DefaultInterestRate is the futures interest rate used when premiumIndex
// omits one (0.01%).
const DefaultInterestRate = 0.0001

// PremiumIndex is /premiumIndex: mark price and funding state.
type PremiumIndex struct {
	Symbol               string  `json:"symbol"`
	MarkPrice            Number  `json:"markPrice"`
	IndexPrice           Number  `json:"indexPrice"`
	EstimatedSettlePrice Number  `json:"estimatedSettlePrice"`
	LastFundingRate      Number  `json:"lastFundingRate"`
	InterestRate         *Number `json:"interestRate"`
	NextFundingTime      int64   `json:"nextFundingTime"`
	Time                 int64   `json:"time"`
}

// Interest returns the interest rate as a fraction, defaulting when absent.
func (p PremiumIndex) Interest() float64 {
	if p.InterestRate == nil {
		return DefaultInterestRate
	}
	return p.InterestRate.Float()
}

// FundingRateRecord is one settled funding entry from /fundingRate.
type FundingRateRecord struct {
	Symbol      string `json:"symbol"`
	FundingRate Number `json:"fundingRate"`
	FundingTime int64  `json:"fundingTime"`
	MarkPrice   Number `json:"markPrice"`
}

// OpenInterest is /openInterest.
type OpenInterest struct {
	Symbol       string `json:"symbol"`
	OpenInterest Number `json:"openInterest"`
	Time         int64  `json:"time"`
}

// RatioRecord covers the /futures/data history series: open interest
// history and the account and position long/short ratios.
type RatioRecord struct {
	Symbol               string `json:"symbol"`
	LongShortRatio       Number `json:"longShortRatio"`
	LongAccount          Number `json:"longAccount"`
	ShortAccount         Number `json:"shortAccount"`
	LongPosition         Number `json:"longPosition"`
	ShortPosition        Number `json:"shortPosition"`
	SumOpenInterest      Number `json:"sumOpenInterest"`
	SumOpenInterestValue Number `json:"sumOpenInterestValue"`
	Timestamp            int64  `json:"timestamp"`
}

// LongShare returns the long side of a position ratio. Binance reports it as
// longAccount on some endpoints and longPosition on others.
func (r RatioRecord) LongShare() float64 {
	if !r.LongPosition.IsZero() {
		return r.LongPosition.Float()
	}
	return r.LongAccount.Float()
}

// ShortShare mirrors LongShare.
func (r RatioRecord) ShortShare() float64 {
	if !r.ShortPosition.IsZero() {
		return r.ShortPosition.Float()
	}
	return r.ShortAccount.Float()
}

// TakerRatioRecord is one /futures/data/takerlongshortRatio entry.
type TakerRatioRecord struct {
	BuySellRatio Number `json:"buySellRatio"`
	BuyVol       Number `json:"buyVol"`
	SellVol      Number `json:"sellVol"`
	Timestamp    int64  `json:"timestamp"`
}

// SymbolInfo is the subset of exchangeInfo symbol fields the services need.
type SymbolInfo struct {
	Symbol       string `json:"symbol"`
	Status       string `json:"status"`
	BaseAsset    string `json:"baseAsset"`
	QuoteAsset   string `json:"quoteAsset"`
	ContractType string `json:"contractType"`
}

// ExchangeInfo is /exchangeInfo.
type ExchangeInfo struct {
	Symbols []SymbolInfo `json:"symbols"`
}

// FuturesTradingSet returns the perpetual USDT/USDC contracts currently
// trading. A missing contract type counts as perpetual.
func (e ExchangeInfo) FuturesTradingSet() map[string]struct{} {
	set := make(map[string]struct{})
	for _, s := range e.Symbols {
		if s.Status != "TRADING" {
			continue
		}
		if s.QuoteAsset != "USDT" && s.QuoteAsset != "USDC" {
			continue
		}
		if s.ContractType != "" && s.ContractType != "PERPETUAL" {
			continue
		}
		set[s.Symbol] = struct{}{}
	}
	return set
}

// AlphaToken is one entry of the Alpha token list.
type AlphaToken struct {
	AlphaID          string `json:"alphaId"`
	Symbol           string `json:"symbol"`
	Name             string `json:"name"`
	ChainName        string `json:"chainName"`
	ContractAddress  string `json:"contractAddress"`
	Price            Number `json:"price"`
	PercentChange24h Number `json:"percentChange24h"`
	Volume24h        Number `json:"volume24h"`
	PriceHigh24h     Number `json:"priceHigh24h"`
	PriceLow24h      Number `json:"priceLow24h"`
	MarketCap        Number `json:"marketCap"`
	Holders          Number `json:"holders"`
}

// alphaEnvelope wraps every bapi response.
type alphaEnvelope[T any] struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Success bool   `json:"success"`
	Data    T      `json:"data"`
}

func (e alphaEnvelope[T]) ok() bool {
	return e.Success || e.Code == "000000"
}
