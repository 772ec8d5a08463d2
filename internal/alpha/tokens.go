package alpha

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/namelens/coinbridge/internal/core/store"
	"github.com/namelens/coinbridge/internal/indicators"
	"github.com/namelens/coinbridge/internal/market"
)

// ErrNoData is returned when neither Binance nor CoinGecko know a token.
var ErrNoData = errors.New("no market data")

// TokenEntry is one priced airdrop.
type TokenEntry struct {
	Symbol            string  `json:"symbol"`
	Name              string  `json:"name"`
	LaunchDate        string  `json:"launch_date"`
	MinPointsRequired int64   `json:"min_points_required"`
	AirdropAmount     float64 `json:"airdrop_amount"`
	CurrentPrice      string  `json:"current_price"`
	AirdropValue      string  `json:"airdrop_value"`
	Change24h         string  `json:"change_24h,omitempty"`
	DataSource        string  `json:"data_source,omitempty"`
	Status            string  `json:"status"`
}

// TokenList is the priced airdrop registry.
type TokenList struct {
	AlphaAirdrops []TokenEntry `json:"alpha_airdrops"`
	TotalCount    int          `json:"total_count"`
	Note          string       `json:"note"`
}

// TokenMarketData is the price block of a token analysis.
type TokenMarketData struct {
	Price     string `json:"price"`
	Change24h string `json:"change_24h"`
	Volume24h string `json:"volume_24h"`
	High24h   string `json:"high_24h"`
	Low24h    string `json:"low_24h"`
	MarketCap string `json:"market_cap,omitempty"`
	ATH       string `json:"ath,omitempty"`
	ATL       string `json:"atl,omitempty"`
}

// ValueAnalysis is reward quantities and their value at the current price.
type ValueAnalysis struct {
	PerUserReward string `json:"per_user_reward"`
	PerUserValue  string `json:"per_user_value"`
	TotalReward   string `json:"total_reward"`
	TotalValue    string `json:"total_value"`
}

// CompetitionBrief summarizes the competition attached to a token.
type CompetitionBrief struct {
	Name          string `json:"name"`
	EndTime       string `json:"end_time"`
	TimeRemaining string `json:"time_remaining"`
	Status        string `json:"status"`
}

// TokenAnalysis is the market and reward view of one Alpha token.
type TokenAnalysis struct {
	Symbol            string                      `json:"symbol"`
	DataSource        string                      `json:"data_source"`
	MarketData        TokenMarketData             `json:"market_data"`
	ValueAnalysis     *ValueAnalysis              `json:"value_analysis,omitempty"`
	CompetitionInfo   *CompetitionBrief           `json:"competition_info"`
	PerUserReward     string                      `json:"per_user_reward,omitempty"`
	RewardValue       string                      `json:"reward_value,omitempty"`
	TechnicalAnalysis *market.TechnicalIndicators `json:"technical_analysis,omitempty"`
	Trend             *indicators.TrendPattern    `json:"trend,omitempty"`
	Prediction        *indicators.Probability     `json:"prediction,omitempty"`
	Summary           string                      `json:"summary,omitempty"`
	Note              string                      `json:"note,omitempty"`
}

// TokensList prices every registered airdrop token.
func (s *Service) TokensList(ctx context.Context) (*TokenList, error) {
	airdrops, err := s.store.ListAirdrops(ctx)
	if err != nil {
		return nil, fmt.Errorf("list airdrops: %w", err)
	}
	ids := s.geckoIDs(ctx)

	entries := make([]TokenEntry, len(airdrops))
	s.fanOut(ctx, len(airdrops), func(ctx context.Context, i int) {
		a := airdrops[i]
		entry := TokenEntry{
			Symbol:            a.Symbol,
			Name:              a.Name,
			LaunchDate:        a.LaunchDate,
			MinPointsRequired: a.MinPoints,
			AirdropAmount:     a.AirdropAmount,
			CurrentPrice:      "N/A (not listed or renamed)",
			AirdropValue:      "N/A",
			Status:            a.Status,
		}
		if q, err := s.Price(ctx, a.Symbol, ids); err == nil {
			entry.CurrentPrice = market.Money(q.Price, 6)
			entry.AirdropValue = market.Money(q.Price*a.AirdropAmount, 2)
			entry.Change24h = market.Percent(q.Change24h)
			entry.DataSource = q.Source
		}
		entries[i] = entry
	})

	return &TokenList{
		AlphaAirdrops: entries,
		TotalCount:    len(entries),
		Note:          "airdrops are maintained by hand; follow Binance announcements for new ones",
	}, nil
}

// AnalyzeToken reports price, reward value and, when Binance trades the
// token, the full technical analysis. Tokens unknown to Binance fall back to
// CoinGecko coin data.
func (s *Service) AnalyzeToken(ctx context.Context, symbol string) (*TokenAnalysis, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", ErrInvalidInput)
	}

	comp, err := s.store.GetCompetition(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("load competition %s: %w", symbol, err)
	}
	airdrop, err := s.findAirdrop(ctx, symbol)
	if err != nil {
		return nil, err
	}
	ids := s.geckoIDs(ctx)

	perUser, total := 0.0, 0.0
	if comp != nil {
		perUser, total = deref(comp.PerUserReward), deref(comp.TotalReward)
	}
	if perUser == 0 && airdrop != nil {
		perUser = airdrop.AirdropAmount
	}

	ticker, tickerErr := s.market.Ticker24h(ctx, symbol)
	var quote Quote
	if tickerErr == nil {
		quote = Quote{Price: ticker.Price, Change24h: ticker.PriceChangePercent, Volume24h: ticker.QuoteVolume24h, Source: SourceBinance}
	} else {
		var priceErr error
		quote, priceErr = s.geckoPrice(ctx, symbol, ids)
		if priceErr != nil {
			if res, err := s.geckoAnalysis(ctx, symbol, ids[symbol], comp, perUser); err == nil {
				return res, nil
			}
			return nil, fmt.Errorf("%w for %s, it may be unlisted or renamed", ErrNoData, symbol)
		}
	}

	price := quote.Price
	res := &TokenAnalysis{
		Symbol:     symbol,
		DataSource: quote.Source,
		MarketData: TokenMarketData{
			Price:     market.Money(price, 6),
			Change24h: market.Percent(quote.Change24h),
			Volume24h: "N/A",
			High24h:   "N/A",
			Low24h:    "N/A",
		},
		ValueAnalysis: &ValueAnalysis{
			PerUserReward: "N/A",
			PerUserValue:  "N/A",
			TotalReward:   "N/A",
			TotalValue:    "N/A",
		},
	}
	if tickerErr == nil {
		res.MarketData.Change24h = ticker.PriceChangeDisplay
		res.MarketData.Volume24h = ticker.QuoteVolumeFormatted
		res.MarketData.High24h = market.Money(ticker.High24h, 6)
		res.MarketData.Low24h = market.Money(ticker.Low24h, 6)
	}
	if perUser != 0 {
		res.ValueAnalysis.PerUserReward = amount(perUser)
		if price != 0 {
			res.ValueAnalysis.PerUserValue = market.Money(price*perUser, 2)
		}
	}
	if total != 0 {
		res.ValueAnalysis.TotalReward = amount(total)
		if price != 0 {
			res.ValueAnalysis.TotalValue = market.Money(price*total, 2)
		}
	}
	if comp != nil {
		res.CompetitionInfo = s.brief(*comp)
	}

	if tickerErr == nil {
		if a, err := s.market.ComprehensiveAnalysis(ctx, symbol); err == nil {
			res.TechnicalAnalysis = &a.TechnicalIndicators
			res.Trend = &a.TrendAnalysis
			res.Prediction = &a.Prediction
			res.Summary = a.Summary
		}
	}
	return res, nil
}

func (s *Service) geckoAnalysis(ctx context.Context, symbol, id string, comp *store.Competition, perUser float64) (*TokenAnalysis, error) {
	if id == "" || s.gecko == nil {
		return nil, ErrNoData
	}
	coin, err := s.gecko.Coin(ctx, id)
	if err != nil {
		return nil, err
	}
	res := &TokenAnalysis{
		Symbol:     symbol,
		DataSource: SourceCoinGecko,
		MarketData: TokenMarketData{
			Price:     market.Money(coin.CurrentPrice, 6),
			Change24h: market.Percent(coin.PriceChangePercentage24h),
			MarketCap: market.Money(coin.MarketCap, 0),
			Volume24h: market.Money(coin.TotalVolume, 0),
			High24h:   market.Money(coin.High24h, 6),
			Low24h:    market.Money(coin.Low24h, 6),
			ATH:       market.Money(coin.ATH, 6),
			ATL:       market.Money(coin.ATL, 6),
		},
		PerUserReward: "N/A",
		RewardValue:   "N/A",
		Note:          "data from CoinGecko; technical analysis needs a Binance listing",
	}
	if comp != nil {
		res.CompetitionInfo = s.brief(*comp)
	}
	if perUser != 0 {
		res.PerUserReward = amount(perUser)
		if v := coin.CurrentPrice * perUser; v != 0 {
			res.RewardValue = market.Money(v, 2)
		}
	}
	return res, nil
}

func (s *Service) brief(c store.Competition) *CompetitionBrief {
	now := s.now()
	return &CompetitionBrief{
		Name:          c.Name,
		EndTime:       c.EndTime,
		TimeRemaining: TimeRemaining(now, c.EndTime, ParseZone(c.Timezone)),
		Status:        EffectiveStatus(c, now),
	}
}

func (s *Service) findAirdrop(ctx context.Context, symbol string) (*store.Airdrop, error) {
	airdrops, err := s.store.ListAirdrops(ctx)
	if err != nil {
		return nil, fmt.Errorf("list airdrops: %w", err)
	}
	for i := range airdrops {
		if airdrops[i].Symbol == symbol {
			return &airdrops[i], nil
		}
	}
	return nil, nil
}
