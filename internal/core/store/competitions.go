package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Competition statuses.
const (
	StatusActive = "active"
	StatusEnded  = "ended"
)

// DefaultTimezone is the zone competition and airdrop times are written in.
const DefaultTimezone = "UTC+8"

// Competition is one Alpha trading competition.
type Competition struct {
	Symbol        string    `json:"symbol" yaml:"symbol"`
	Name          string    `json:"name" yaml:"name"`
	TokenName     string    `json:"token_name" yaml:"token_name"`
	StartTime     string    `json:"start_time" yaml:"start_time"`
	EndTime       string    `json:"end_time" yaml:"end_time"`
	Timezone      string    `json:"timezone" yaml:"timezone"`
	TotalReward   *float64  `json:"total_reward" yaml:"total_reward"`
	WinnerCount   *int64    `json:"winner_count" yaml:"winner_count"`
	PerUserReward *float64  `json:"per_user_reward" yaml:"per_user_reward"`
	Status        string    `json:"status" yaml:"status"`
	Note          string    `json:"note" yaml:"note"`
	UpdatedAt     time.Time `json:"-" yaml:"-"`
}

func (c *Competition) normalize() error {
	c.Symbol = strings.ToUpper(strings.TrimSpace(c.Symbol))
	if c.Symbol == "" {
		return errors.New("competition symbol is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		c.Name = c.Symbol + " Alpha Trading Competition"
	}
	if strings.TrimSpace(c.TokenName) == "" {
		c.TokenName = c.Symbol
	}
	if strings.TrimSpace(c.Timezone) == "" {
		c.Timezone = DefaultTimezone
	}
	if c.Status != StatusEnded {
		c.Status = StatusActive
	}
	return nil
}

// UpsertCompetition creates or replaces the competition keyed by symbol. It
// reports whether the row was new.
func (s *Store) UpsertCompetition(ctx context.Context, comp Competition, updatedAt time.Time) (bool, error) {
	if s == nil || s.DB == nil {
		return false, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if err := comp.normalize(); err != nil {
		return false, err
	}

	existing, err := s.GetCompetition(ctx, comp.Symbol)
	if err != nil {
		return false, err
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO alpha_competitions (
			symbol, name, token_name, start_time, end_time, timezone,
			total_reward, winner_count, per_user_reward, status, note, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			name = excluded.name,
			token_name = excluded.token_name,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			timezone = excluded.timezone,
			total_reward = excluded.total_reward,
			winner_count = excluded.winner_count,
			per_user_reward = excluded.per_user_reward,
			status = excluded.status,
			note = excluded.note,
			updated_at = excluded.updated_at
	`, comp.Symbol, comp.Name, comp.TokenName, comp.StartTime, comp.EndTime, comp.Timezone,
		nullFloat(comp.TotalReward), nullInt(comp.WinnerCount), nullFloat(comp.PerUserReward),
		comp.Status, comp.Note, updatedAt.UTC().Unix())
	if err != nil {
		return false, fmt.Errorf("store competition: %w", err)
	}

	return existing == nil, nil
}

// GetCompetition returns a competition by symbol, or nil when absent.
func (s *Store) GetCompetition(ctx context.Context, symbol string) (*Competition, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, errors.New("competition symbol is required")
	}

	row := s.DB.QueryRowContext(ctx, competitionSelect+` WHERE symbol = ?`, symbol)
	comp, err := scanCompetition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch competition: %w", err)
	}
	return &comp, nil
}

// ListCompetitions returns every competition ordered by end time.
func (s *Store) ListCompetitions(ctx context.Context) ([]Competition, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, competitionSelect+` ORDER BY end_time ASC, symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("list competitions: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var out []Competition
	for rows.Next() {
		comp, err := scanCompetition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan competition: %w", err)
		}
		out = append(out, comp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list competitions: %w", err)
	}

	return out, nil
}

// DeleteCompetition removes a competition and reports whether it existed.
func (s *Store) DeleteCompetition(ctx context.Context, symbol string) (bool, error) {
	if s == nil || s.DB == nil {
		return false, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM alpha_competitions WHERE symbol = ?`, strings.ToUpper(strings.TrimSpace(symbol)))
	if err != nil {
		return false, fmt.Errorf("delete competition: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete competition: %w", err)
	}
	return n > 0, nil
}

const competitionSelect = `
	SELECT symbol, name, token_name, start_time, end_time, timezone,
		total_reward, winner_count, per_user_reward, status, note, updated_at
	FROM alpha_competitions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompetition(row rowScanner) (Competition, error) {
	var (
		comp          Competition
		totalReward   sql.NullFloat64
		winnerCount   sql.NullInt64
		perUserReward sql.NullFloat64
		updatedAt     int64
		start         = wallClock{layout: TimeLayout}
		end           = wallClock{layout: TimeLayout}
	)
	if err := row.Scan(&comp.Symbol, &comp.Name, &comp.TokenName, &start, &end,
		&comp.Timezone, &totalReward, &winnerCount, &perUserReward, &comp.Status, &comp.Note, &updatedAt); err != nil {
		return Competition{}, err
	}
	comp.StartTime = start.value
	comp.EndTime = end.value
	if totalReward.Valid {
		comp.TotalReward = &totalReward.Float64
	}
	if winnerCount.Valid {
		comp.WinnerCount = &winnerCount.Int64
	}
	if perUserReward.Valid {
		comp.PerUserReward = &perUserReward.Float64
	}
	comp.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return comp, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
