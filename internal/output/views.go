package output

import (
	"fmt"
	"strings"

	"github.com/namelens/coinbridge/internal/alpha"
	"github.com/namelens/coinbridge/internal/core/coordinator"
	"github.com/namelens/coinbridge/internal/market"
)

// TickerTable lists tickers in the order of symbols. Failed lookups keep
// their row with the error in the last column.
func TickerTable(symbols []string, entries map[string]market.TickerEntry) *Table {
	tbl := &Table{Header: []string{"Symbol", "Market", "Price", "24h", "High", "Low", "Quote Volume"}}
	for _, s := range symbols {
		key := strings.ToUpper(strings.TrimSpace(s))
		entry, ok := entries[key]
		if !ok {
			continue
		}
		if entry.Ticker == nil {
			tbl.Rows = append(tbl.Rows, []string{key, "-", "-", "-", "-", "-", entry.Error})
			continue
		}
		t := entry.Ticker
		tbl.Rows = append(tbl.Rows, []string{
			t.Symbol,
			t.Market,
			t.PriceFormatted,
			t.PriceChangeDisplay,
			market.Money(t.High24h, 4),
			market.Money(t.Low24h, 4),
			t.QuoteVolumeFormatted,
		})
	}
	return tbl
}

// FundingTable shows the settled rate and its recent history.
func FundingTable(f *market.FundingRate) *Table {
	tbl := &Table{
		Title:  fmt.Sprintf("%s funding (%s)", f.Symbol, f.RateLevel),
		Header: []string{"Settled", "Rate"},
		Footer: fmt.Sprintf("next %s in %s", f.NextFundingTime, f.Countdown),
	}
	tbl.Rows = append(tbl.Rows, []string{"latest", f.HistoricalSettledRateDisplay})
	for _, h := range f.History {
		tbl.Rows = append(tbl.Rows, []string{h.Time, h.Rate})
	}
	return tbl
}

// RealtimeFundingTable shows the current and predicted funding rates.
func RealtimeFundingTable(f *market.RealtimeFunding) *Table {
	return &Table{
		Title:  f.Symbol + " realtime funding",
		Header: []string{"Field", "Value"},
		Rows: [][]string{
			{"mark price", f.MarkPriceDisplay},
			{"index price", f.IndexPriceDisplay},
			{"premium", f.PremiumDisplay},
			{"current rate", f.CurrentRealtimeRateDisplay + " (" + f.CurrentAnnualRate + " annual)"},
			{"predicted rate", f.PredictedNextRateDisplay + " (" + f.PredictedAnnualRate + " annual)"},
			{"last settled", f.HistoricalSettledRateDisplay},
			{"level", f.RateLevel},
		},
		Footer: fmt.Sprintf("next %s in %s", f.NextFundingTime, f.Countdown),
	}
}

// ExtremeFundingTable merges both sides of the scan, negative first.
func ExtremeFundingTable(e *market.ExtremeFunding) *Table {
	tbl := &Table{
		Title:  "Extreme funding beyond " + e.Threshold,
		Header: []string{"Side", "Symbol", "Predicted", "Last", "Annual", "Countdown"},
		Footer: fmt.Sprintf("%d negative, %d positive", e.ExtremeNegative.Count, e.ExtremePositive.Count),
	}
	for _, side := range []struct {
		name  string
		group market.ExtremeGroup
	}{{"negative", e.ExtremeNegative}, {"positive", e.ExtremePositive}} {
		for _, c := range side.group.Contracts {
			tbl.Rows = append(tbl.Rows, []string{side.name, c.Symbol, c.PredictedRateDisplay, c.LastRate, c.AnnualRate, c.Countdown})
		}
	}
	return tbl
}

// CompetitionTable lists active then recently ended competitions.
func CompetitionTable(b *alpha.CompetitionBoard) *Table {
	tbl := &Table{
		Title:  "Alpha competitions",
		Header: []string{"Symbol", "Name", "Status", "Ends", "Remaining", "Per User", "Per User Value"},
		Footer: fmt.Sprintf("%d active", b.ActiveCount),
	}
	for _, list := range [][]alpha.CompetitionView{b.ActiveCompetitions, b.RecentlyEnded} {
		for _, c := range list {
			tbl.Rows = append(tbl.Rows, []string{c.Symbol, c.Name, c.Status, c.EndTime, c.TimeRemaining, c.PerUserReward, c.PerUserValue})
		}
	}
	return tbl
}

// AirdropTable lists upcoming, ongoing and recently ended airdrops.
func AirdropTable(b *alpha.RealtimeBoard) *Table {
	tbl := &Table{
		Title:  "Alpha airdrops",
		Header: []string{"Token", "Status", "When", "Points", "Amount", "Value"},
		Footer: fmt.Sprintf("%d upcoming, %d ongoing", b.Summary.UpcomingCount, b.Summary.OngoingCount),
	}
	for _, list := range [][]alpha.RealtimeDrop{b.OngoingAirdrops, b.UpcomingAirdrops, b.RecentlyEnded} {
		for _, d := range list {
			tbl.Rows = append(tbl.Rows, []string{d.Token, d.Status, d.Datetime, d.PointsRequired, d.Amount, d.TotalValue})
		}
	}
	return tbl
}

// PolicyTable prints a coordinator pool's cache and weight table.
func PolicyTable(pool string, policies []coordinator.Policy) *Table {
	tbl := &Table{
		Title:  pool + " policies",
		Header: []string{"Category", "Endpoint", "TTL", "Weight"},
	}
	for _, p := range policies {
		tbl.Rows = append(tbl.Rows, []string{p.Category, p.Endpoint, p.TTL.String(), fmt.Sprint(p.Weight)})
	}
	return tbl
}
