package coingecko

import "encoding/json"

// Quote is one coin's entry in a /simple/price answer.
type Quote struct {
	USD           float64           `json:"usd"`
	USDMarketCap  float64           `json:"usd_market_cap"`
	USD24hVol     float64           `json:"usd_24h_vol"`
	USD24hChange  float64           `json:"usd_24h_change"`
	LastUpdatedAt int64             `json:"last_updated_at"`
	TrendAnalysis *TrendProbability `json:"trend_analysis,omitempty"`
}

// CoinSummary is the reduced /coins/{id} view.
type CoinSummary struct {
	ID                       string  `json:"id"`
	Symbol                   string  `json:"symbol"`
	Name                     string  `json:"name"`
	CurrentPrice             float64 `json:"current_price"`
	MarketCap                float64 `json:"market_cap"`
	TotalVolume              float64 `json:"total_volume"`
	PriceChange24h           float64 `json:"price_change_24h"`
	PriceChangePercentage24h float64 `json:"price_change_percentage_24h"`
	High24h                  float64 `json:"high_24h"`
	Low24h                   float64 `json:"low_24h"`
	ATH                      float64 `json:"ath"`
	ATHDate                  string  `json:"ath_date"`
	ATL                      float64 `json:"atl"`
	ATLDate                  string  `json:"atl_date"`
}

type coinResponse struct {
	ID         string `json:"id"`
	Symbol     string `json:"symbol"`
	Name       string `json:"name"`
	MarketData struct {
		CurrentPrice             map[string]float64 `json:"current_price"`
		MarketCap                map[string]float64 `json:"market_cap"`
		TotalVolume              map[string]float64 `json:"total_volume"`
		High24h                  map[string]float64 `json:"high_24h"`
		Low24h                   map[string]float64 `json:"low_24h"`
		ATH                      map[string]float64 `json:"ath"`
		ATHDate                  map[string]string  `json:"ath_date"`
		ATL                      map[string]float64 `json:"atl"`
		ATLDate                  map[string]string  `json:"atl_date"`
		PriceChange24h           float64            `json:"price_change_24h"`
		PriceChangePercentage24h float64            `json:"price_change_percentage_24h"`
	} `json:"market_data"`
}

func (r coinResponse) summary() CoinSummary {
	md := r.MarketData
	return CoinSummary{
		ID:                       r.ID,
		Symbol:                   r.Symbol,
		Name:                     r.Name,
		CurrentPrice:             md.CurrentPrice["usd"],
		MarketCap:                md.MarketCap["usd"],
		TotalVolume:              md.TotalVolume["usd"],
		PriceChange24h:           md.PriceChange24h,
		PriceChangePercentage24h: md.PriceChangePercentage24h,
		High24h:                  md.High24h["usd"],
		Low24h:                   md.Low24h["usd"],
		ATH:                      md.ATH["usd"],
		ATHDate:                  md.ATHDate["usd"],
		ATL:                      md.ATL["usd"],
		ATLDate:                  md.ATLDate["usd"],
	}
}

// SearchCoin is a coin hit from /search.
type SearchCoin struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	APISymbol     string `json:"api_symbol"`
	Symbol        string `json:"symbol"`
	MarketCapRank int    `json:"market_cap_rank"`
	Thumb         string `json:"thumb"`
	Large         string `json:"large"`
}

// SearchResult is /search. Non-coin sections are passed through untouched.
type SearchResult struct {
	Coins      []SearchCoin    `json:"coins"`
	Exchanges  json.RawMessage `json:"exchanges,omitempty"`
	Categories json.RawMessage `json:"categories,omitempty"`
	NFTs       json.RawMessage `json:"nfts,omitempty"`
}

// TrendingCoin is one item of /search/trending.
type TrendingCoin struct {
	ID            string          `json:"id"`
	CoinID        int             `json:"coin_id"`
	Name          string          `json:"name"`
	Symbol        string          `json:"symbol"`
	MarketCapRank int             `json:"market_cap_rank"`
	Thumb         string          `json:"thumb"`
	Slug          string          `json:"slug"`
	PriceBTC      float64         `json:"price_btc"`
	Score         int             `json:"score"`
	Data          json.RawMessage `json:"data,omitempty"`
}

// TrendingEntry wraps a trending coin the way the API does.
type TrendingEntry struct {
	Item TrendingCoin `json:"item"`
}

// TrendingResult is /search/trending.
type TrendingResult struct {
	Coins      []TrendingEntry `json:"coins"`
	NFTs       json.RawMessage `json:"nfts,omitempty"`
	Categories json.RawMessage `json:"categories,omitempty"`
}

// MarketChart is /coins/{id}/market_chart. Each point is [unix_ms, value].
type MarketChart struct {
	Prices       [][]float64 `json:"prices"`
	MarketCaps   [][]float64 `json:"market_caps"`
	TotalVolumes [][]float64 `json:"total_volumes"`
}

// PriceSeries returns the price values without timestamps.
func (m MarketChart) PriceSeries() []float64 {
	out := make([]float64, 0, len(m.Prices))
	for _, p := range m.Prices {
		if len(p) >= 2 {
			out = append(out, p[1])
		}
	}
	return out
}
