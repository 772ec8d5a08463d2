package store

import (
	"context"
	"errors"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS store_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS alpha_competitions (
		symbol TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		token_name TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		timezone TEXT NOT NULL DEFAULT 'UTC+8',
		total_reward REAL,
		winner_count INTEGER,
		per_user_reward REAL,
		status TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_alpha_competitions_end ON alpha_competitions(end_time);`,
	`CREATE TABLE IF NOT EXISTS alpha_airdrops (
		symbol TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		launch_date TEXT NOT NULL,
		min_points INTEGER NOT NULL DEFAULT 0,
		airdrop_amount REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS coingecko_ids (
		symbol TEXT PRIMARY KEY,
		coin_id TEXT NOT NULL
	);`,
}

// Migrate ensures the required database tables exist.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}

	return s.seedDefaults(ctx)
}
