package alpha

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/namelens/coinbridge/internal/market"
)

const realtimeBucketSize = 10

// RealtimeDrop is one priced alpha123 airdrop.
type RealtimeDrop struct {
	Token          string `json:"token"`
	Name           string `json:"name"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	Datetime       string `json:"datetime"`
	PointsRequired string `json:"points_required"`
	Amount         string `json:"amount"`
	Phase          int64  `json:"phase"`
	Type           string `json:"type"`
	CurrentPrice   string `json:"current_price"`
	TotalValue     string `json:"total_value"`
	Status         string `json:"status"`
}

// RealtimeSummary counts airdrops per bucket before truncation.
type RealtimeSummary struct {
	UpcomingCount int `json:"upcoming_count"`
	OngoingCount  int `json:"ongoing_count"`
	EndedCount    int `json:"ended_count"`
}

// RealtimeBoard is the live airdrop calendar.
type RealtimeBoard struct {
	QueryTime        string          `json:"query_time"`
	DataSource       string          `json:"data_source"`
	Summary          RealtimeSummary `json:"summary"`
	UpcomingAirdrops []RealtimeDrop  `json:"upcoming_airdrops"`
	OngoingAirdrops  []RealtimeDrop  `json:"ongoing_airdrops"`
	RecentlyEnded    []RealtimeDrop  `json:"recently_ended"`
	Note             string          `json:"note"`
}

// Airdrop buckets.
const (
	BucketUpcoming = "upcoming"
	BucketOngoing  = "ongoing"
	BucketEnded    = "ended"
)

// Classify buckets an airdrop against now: completed or past dates are
// ended, today's slots that have started are ongoing, the rest upcoming. A
// slot time that does not parse counts as started.
func Classify(d Drop, now time.Time) string {
	today := now.Format("2006-01-02")
	switch {
	case d.Completed || d.Date < today:
		return BucketEnded
	case d.Date == today:
		slot, err := time.ParseInLocation(slotLayout, d.Date+" "+d.Time, now.Location())
		if err != nil || !slot.After(now) {
			return BucketOngoing
		}
	}
	return BucketUpcoming
}

// RealtimeAirdrops fetches the alpha123 calendar and prices each token there.
func (s *Service) RealtimeAirdrops(ctx context.Context) (*RealtimeBoard, error) {
	if s.a123 == nil {
		return nil, errors.New("realtime airdrops are not configured")
	}
	drops, err := s.a123.Airdrops(ctx)
	if err != nil {
		return nil, fmt.Errorf("realtime airdrops (try https://alpha123.uk directly): %w", err)
	}

	prices := make([]float64, len(drops))
	s.fanOut(ctx, len(drops), func(ctx context.Context, i int) {
		if p, err := s.a123.Price(ctx, drops[i].Token); err == nil {
			prices[i] = p
		}
	})

	now := s.now()
	upcoming, ongoing, ended := []RealtimeDrop{}, []RealtimeDrop{}, []RealtimeDrop{}
	for i, d := range drops {
		view := realtimeView(d, prices[i])
		switch Classify(d, now) {
		case BucketEnded:
			ended = append(ended, view)
		case BucketOngoing:
			ongoing = append(ongoing, view)
		default:
			upcoming = append(upcoming, view)
		}
	}
	byTime := func(list []RealtimeDrop, desc bool) {
		sort.SliceStable(list, func(i, j int) bool {
			if desc {
				return list[i].Datetime > list[j].Datetime
			}
			return list[i].Datetime < list[j].Datetime
		})
	}
	byTime(upcoming, false)
	byTime(ongoing, false)
	byTime(ended, true)

	return &RealtimeBoard{
		QueryTime:  now.Format(market.TimeLayout),
		DataSource: "alpha123.uk (realtime)",
		Summary: RealtimeSummary{
			UpcomingCount: len(upcoming),
			OngoingCount:  len(ongoing),
			EndedCount:    len(ended),
		},
		UpcomingAirdrops: head(upcoming, realtimeBucketSize),
		OngoingAirdrops:  head(ongoing, realtimeBucketSize),
		RecentlyEnded:    head(ended, realtimeBucketSize),
		Note:             "aggregated by a third party for reference; Binance announcements are authoritative",
	}, nil
}

func realtimeView(d Drop, price float64) RealtimeDrop {
	view := RealtimeDrop{
		Token:          d.Token,
		Name:           d.Name,
		Date:           d.Date,
		Time:           d.Time,
		Datetime:       d.Date + " " + d.Time,
		PointsRequired: string(d.Points),
		Amount:         string(d.Amount),
		Phase:          d.PhaseNumber(),
		Type:           d.Type,
		CurrentPrice:   "fetching",
		TotalValue:     pending,
		Status:         d.Status,
	}
	if d.Completed {
		view.Status = "completed"
	}
	if price != 0 {
		view.CurrentPrice = fmt.Sprintf("$%.6f", price)
	}
	if v := price * float64(d.Amount.Int()); v != 0 {
		view.TotalValue = fmt.Sprintf("$%.2f", v)
	}
	return view
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
