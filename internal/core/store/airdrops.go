package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Airdrop is one configured Alpha airdrop.
type Airdrop struct {
	Symbol        string    `json:"symbol" yaml:"symbol"`
	Name          string    `json:"name" yaml:"name"`
	LaunchDate    string    `json:"launch_date" yaml:"launch_date"`
	MinPoints     int64     `json:"min_points" yaml:"min_points"`
	AirdropAmount float64   `json:"airdrop_amount" yaml:"airdrop_amount"`
	Status        string    `json:"status" yaml:"status"`
	UpdatedAt     time.Time `json:"-" yaml:"-"`
}

// UpsertAirdrop creates or replaces the airdrop keyed by symbol.
func (s *Store) UpsertAirdrop(ctx context.Context, airdrop Airdrop, updatedAt time.Time) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	airdrop.Symbol = strings.ToUpper(strings.TrimSpace(airdrop.Symbol))
	if airdrop.Symbol == "" {
		return errors.New("airdrop symbol is required")
	}
	if strings.TrimSpace(airdrop.Name) == "" {
		airdrop.Name = airdrop.Symbol
	}
	if strings.TrimSpace(airdrop.Status) == "" {
		airdrop.Status = StatusEnded
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO alpha_airdrops (symbol, name, launch_date, min_points, airdrop_amount, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			name = excluded.name,
			launch_date = excluded.launch_date,
			min_points = excluded.min_points,
			airdrop_amount = excluded.airdrop_amount,
			status = excluded.status,
			updated_at = excluded.updated_at
	`, airdrop.Symbol, airdrop.Name, airdrop.LaunchDate, airdrop.MinPoints, airdrop.AirdropAmount,
		airdrop.Status, updatedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("store airdrop: %w", err)
	}

	return nil
}

// ListAirdrops returns every airdrop, newest launch first.
func (s *Store) ListAirdrops(ctx context.Context) ([]Airdrop, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT symbol, name, launch_date, min_points, airdrop_amount, status, updated_at
		FROM alpha_airdrops
		ORDER BY launch_date DESC, symbol ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list airdrops: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var out []Airdrop
	for rows.Next() {
		var (
			airdrop   Airdrop
			updatedAt int64
			launch    = wallClock{layout: DateLayout}
		)
		if err := rows.Scan(&airdrop.Symbol, &airdrop.Name, &launch, &airdrop.MinPoints,
			&airdrop.AirdropAmount, &airdrop.Status, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan airdrop: %w", err)
		}
		airdrop.LaunchDate = launch.value
		airdrop.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		out = append(out, airdrop)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list airdrops: %w", err)
	}

	return out, nil
}

// SetCoinGeckoID maps an Alpha symbol to a CoinGecko coin id.
func (s *Store) SetCoinGeckoID(ctx context.Context, symbol, coinID string) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	coinID = strings.TrimSpace(coinID)
	if symbol == "" || coinID == "" {
		return errors.New("symbol and coin id are required")
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO coingecko_ids (symbol, coin_id)
		VALUES (?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			coin_id = excluded.coin_id
	`, symbol, coinID)
	if err != nil {
		return fmt.Errorf("store coingecko id: %w", err)
	}

	return nil
}

// CoinGeckoIDs returns the symbol to CoinGecko id mapping.
func (s *Store) CoinGeckoIDs(ctx context.Context) (map[string]string, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT symbol, coin_id FROM coingecko_ids`)
	if err != nil {
		return nil, fmt.Errorf("list coingecko ids: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	out := make(map[string]string)
	for rows.Next() {
		var symbol, coinID string
		if err := rows.Scan(&symbol, &coinID); err != nil {
			return nil, fmt.Errorf("scan coingecko id: %w", err)
		}
		out[symbol] = coinID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list coingecko ids: %w", err)
	}

	return out, nil
}
