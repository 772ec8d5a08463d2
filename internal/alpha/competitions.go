package alpha

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/namelens/coinbridge/internal/core/store"
	"github.com/namelens/coinbridge/internal/market"
)

// CompetitionTimeLayout is how competition start and end times are written.
const CompetitionTimeLayout = store.TimeLayout

const (
	pending = "pending"
	tba     = "TBA"
)

// CompetitionView is a competition priced at the current token price.
type CompetitionView struct {
	Symbol         string `json:"symbol"`
	Name           string `json:"name"`
	TokenName      string `json:"token_name"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	Timezone       string `json:"timezone"`
	TimeRemaining  string `json:"time_remaining"`
	TotalReward    string `json:"total_reward"`
	WinnerCount    string `json:"winner_count"`
	PerUserReward  string `json:"per_user_reward"`
	CurrentPrice   string `json:"current_price"`
	PriceChange24h string `json:"price_change_24h"`
	TotalValue     string `json:"total_value"`
	PerUserValue   string `json:"per_user_value"`
	DataSource     string `json:"data_source"`
	Status         string `json:"status"`
	Note           string `json:"note"`
}

// CompetitionBoard lists running competitions and the latest ended ones.
type CompetitionBoard struct {
	QueryTime            string            `json:"query_time"`
	ActiveCount          int               `json:"active_count"`
	ActiveCompetitions   []CompetitionView `json:"active_competitions"`
	RecentlyEnded        []CompetitionView `json:"recently_ended"`
	ValueCalculationNote string            `json:"value_calculation_note"`
	UpdateReminder       string            `json:"update_reminder"`
}

// CompetitionInput is a competition to add or replace.
type CompetitionInput struct {
	Symbol        string   `json:"symbol"`
	Name          string   `json:"name"`
	StartTime     string   `json:"start_time"`
	EndTime       string   `json:"end_time"`
	TotalReward   *float64 `json:"total_reward,omitempty"`
	WinnerCount   *int64   `json:"winner_count,omitempty"`
	PerUserReward *float64 `json:"per_user_reward,omitempty"`
	Note          string   `json:"note,omitempty"`
}

// AddResult reports an AddCompetition outcome.
type AddResult struct {
	Success     bool              `json:"success"`
	Created     bool              `json:"created"`
	Message     string            `json:"message"`
	Competition store.Competition `json:"competition"`
}

// ParseZone reads offsets written as UTC, UTC+8 or UTC-5:30. Anything else
// is UTC+8.
func ParseZone(tz string) *time.Location {
	tz = strings.ToUpper(strings.TrimSpace(tz))
	if tz == "UTC" || tz == "GMT" {
		return time.UTC
	}
	rest, ok := strings.CutPrefix(tz, "UTC")
	if !ok || rest == "" {
		return defaultZone
	}
	sign := 1
	switch rest[0] {
	case '+':
	case '-':
		sign = -1
	default:
		return defaultZone
	}
	hours, minutes, _ := strings.Cut(rest[1:], ":")
	h, err := strconv.Atoi(hours)
	if err != nil || h > 14 {
		return defaultZone
	}
	m := 0
	if minutes != "" {
		if m, err = strconv.Atoi(minutes); err != nil || m >= 60 {
			return defaultZone
		}
	}
	return time.FixedZone(tz, sign*(h*3600+m*60))
}

var defaultZone = time.FixedZone(store.DefaultTimezone, 8*3600)

// EndTime parses a competition's end time in its timezone.
func EndTime(c store.Competition) (time.Time, error) {
	return parseWallClock(c.EndTime, ParseZone(c.Timezone))
}

// parseWallClock reads s as a wall-clock time in loc. RFC3339 input keeps its
// clock reading; its zone is replaced by loc.
func parseWallClock(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.ParseInLocation(CompetitionTimeLayout, s, loc)
	if err == nil {
		return t, nil
	}
	if r, rerr := time.Parse(time.RFC3339, s); rerr == nil {
		return time.Date(r.Year(), r.Month(), r.Day(), r.Hour(), r.Minute(), r.Second(), 0, loc), nil
	}
	return time.Time{}, err
}

// EffectiveStatus is the stored status, except that an active competition
// whose end time has passed is ended.
func EffectiveStatus(c store.Competition, now time.Time) string {
	if c.Status != store.StatusActive {
		return c.Status
	}
	end, err := EndTime(c)
	if err == nil && end.Before(now) {
		return store.StatusEnded
	}
	return c.Status
}

// TimeRemaining renders the time left until end as "2d 5h", "5h 12m" or
// "12m". It returns "ended" once end has passed and "unknown" when end does
// not parse.
func TimeRemaining(now time.Time, end string, loc *time.Location) string {
	if loc == nil {
		loc = defaultZone
	}
	deadline, err := parseWallClock(end, loc)
	if err != nil {
		return "unknown"
	}
	if deadline.Before(now) {
		return "ended"
	}
	left := deadline.Sub(now)
	days := int(left / (24 * time.Hour))
	hours := int(left%(24*time.Hour)) / int(time.Hour)
	minutes := int(left%time.Hour) / int(time.Minute)
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// ActiveCompetitions prices every registered competition. Active ones are
// sorted by end time; at most three ended ones are returned, latest first.
func (s *Service) ActiveCompetitions(ctx context.Context) (*CompetitionBoard, error) {
	comps, err := s.store.ListCompetitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list competitions: %w", err)
	}
	ids := s.geckoIDs(ctx)
	now := s.now()

	views := make([]CompetitionView, len(comps))
	s.fanOut(ctx, len(comps), func(ctx context.Context, i int) {
		quote, err := s.Price(ctx, comps[i].Symbol, ids)
		if err != nil {
			quote = Quote{Source: "N/A"}
		}
		views[i] = competitionView(comps[i], quote, now)
	})

	active := []CompetitionView{}
	ended := []CompetitionView{}
	for _, v := range views {
		if v.Status == store.StatusActive {
			active = append(active, v)
		} else {
			ended = append(ended, v)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].EndTime < active[j].EndTime })
	sort.SliceStable(ended, func(i, j int) bool { return ended[i].EndTime > ended[j].EndTime })
	if len(ended) > 3 {
		ended = ended[:3]
	}

	return &CompetitionBoard{
		QueryTime:            now.Format(market.TimeLayout),
		ActiveCount:          len(active),
		ActiveCompetitions:   active,
		RecentlyEnded:        ended,
		ValueCalculationNote: "total value = total reward x current price | per user value = per user reward x current price",
		UpdateReminder:       "⚠️ competitions are maintained by hand; use add_alpha_competition to register new ones",
	}, nil
}

func competitionView(c store.Competition, q Quote, now time.Time) CompetitionView {
	total, perUser := deref(c.TotalReward), deref(c.PerUserReward)

	view := CompetitionView{
		Symbol:         c.Symbol,
		Name:           c.Name,
		TokenName:      c.TokenName,
		StartTime:      c.StartTime,
		EndTime:        c.EndTime,
		Timezone:       c.Timezone,
		TimeRemaining:  TimeRemaining(now, c.EndTime, ParseZone(c.Timezone)),
		TotalReward:    tba,
		WinnerCount:    tba,
		PerUserReward:  tba,
		CurrentPrice:   "fetching",
		PriceChange24h: "N/A",
		TotalValue:     pending,
		PerUserValue:   pending,
		DataSource:     q.Source,
		Status:         EffectiveStatus(c, now),
		Note:           c.Note,
	}
	if total != 0 {
		view.TotalReward = amount(total)
	}
	if c.WinnerCount != nil && *c.WinnerCount != 0 {
		view.WinnerCount = market.Grouped(float64(*c.WinnerCount), 0)
	}
	if perUser != 0 {
		view.PerUserReward = amount(perUser)
	}
	if q.Price != 0 {
		view.CurrentPrice = market.Money(q.Price, 6)
	}
	if q.Change24h != 0 {
		view.PriceChange24h = market.Percent(q.Change24h)
	}
	if v := total * q.Price; v != 0 {
		view.TotalValue = market.Money(v, 2)
	}
	if v := perUser * q.Price; v != 0 {
		view.PerUserValue = market.Money(v, 2)
	}
	return view
}

// AddCompetition registers a competition as active, replacing any existing
// entry for the symbol.
func (s *Service) AddCompetition(ctx context.Context, in CompetitionInput) (*AddResult, error) {
	symbol := strings.ToUpper(strings.TrimSpace(in.Symbol))
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	start, err := time.Parse(CompetitionTimeLayout, in.StartTime)
	if err != nil {
		return nil, fmt.Errorf("%w: start_time must look like %s", ErrInvalidInput, CompetitionTimeLayout)
	}
	end, err := time.Parse(CompetitionTimeLayout, in.EndTime)
	if err != nil {
		return nil, fmt.Errorf("%w: end_time must look like %s", ErrInvalidInput, CompetitionTimeLayout)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("%w: end_time must be after start_time", ErrInvalidInput)
	}

	comp := store.Competition{
		Symbol:        symbol,
		Name:          strings.TrimSpace(in.Name),
		TokenName:     symbol,
		StartTime:     in.StartTime,
		EndTime:       in.EndTime,
		Timezone:      store.DefaultTimezone,
		TotalReward:   in.TotalReward,
		WinnerCount:   in.WinnerCount,
		PerUserReward: in.PerUserReward,
		Status:        store.StatusActive,
		Note:          in.Note,
	}
	created, err := s.store.UpsertCompetition(ctx, comp, s.now())
	if err != nil {
		return nil, fmt.Errorf("save competition %s: %w", symbol, err)
	}

	verb := "updated"
	if created {
		verb = "added"
	}
	return &AddResult{
		Success:     true,
		Created:     created,
		Message:     fmt.Sprintf("%s competition: %s", verb, comp.Name),
		Competition: comp,
	}, nil
}

// Import loads a registry seed file into the store.
func (s *Service) Import(ctx context.Context, path string) (store.SeedResult, error) {
	return s.store.ImportSeedFile(ctx, path)
}
