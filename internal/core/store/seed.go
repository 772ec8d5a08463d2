package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const metaSeeded = "alpha_defaults_seeded"

// Seed is the Alpha registry file format. JSON files decode too, since JSON
// is valid YAML.
type Seed struct {
	LastUpdated        string            `yaml:"last_updated"`
	ActiveCompetitions []Competition     `yaml:"active_competitions"`
	EndedCompetitions  []Competition     `yaml:"ended_competitions"`
	Airdrops           []Airdrop         `yaml:"alpha_airdrops"`
	CoinGeckoIDs       map[string]string `yaml:"coingecko_id_mapping"`
}

// SeedResult counts what an import wrote.
type SeedResult struct {
	Competitions int `json:"competitions"`
	Airdrops     int `json:"airdrops"`
	CoinGeckoIDs int `json:"coingecko_ids"`
}

func ptr[T any](v T) *T { return &v }

// DefaultSeed is the registry written on first migration.
func DefaultSeed() Seed {
	return Seed{
		ActiveCompetitions: []Competition{
			{
				Symbol:    "H",
				Name:      "H Alpha Trading Competition",
				TokenName: "H",
				StartTime: "2026-01-09 21:00:00",
				EndTime:   "2026-01-16 21:00:00",
				Note:      "first H competition",
			},
			{
				Symbol:        "TIMI",
				Name:          "2nd TIMI Alpha Trading Competition",
				TokenName:     "MetaArena (TIMI)",
				StartTime:     "2026-01-05 21:00:00",
				EndTime:       "2026-01-12 21:00:00",
				TotalReward:   ptr(7178800.0),
				WinnerCount:   ptr(int64(5240)),
				PerUserReward: ptr(1370.0),
				Note:          "second TIMI competition",
			},
		},
		Airdrops: []Airdrop{
			{Symbol: "BLUAI", Name: "Bluwhale", LaunchDate: "2025-10-21", MinPoints: 220, AirdropAmount: 1600, Status: StatusEnded},
			{Symbol: "OOOO", Name: "oooo Protocol", LaunchDate: "2025-12-30", MinPoints: 200, AirdropAmount: 1000, Status: StatusEnded},
		},
		CoinGeckoIDs: map[string]string{
			"TIMI": "metaarena",
			"ARB":  "arbitrum",
		},
	}
}

// ParseSeed decodes a YAML or JSON registry document.
func ParseSeed(data []byte) (Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("decode alpha seed: %w", err)
	}
	return seed, nil
}

// ImportSeedFile reads path and imports it with ImportSeed.
func (s *Store) ImportSeedFile(ctx context.Context, path string) (SeedResult, error) {
	// #nosec G304 -- operator-supplied seed file path
	data, err := os.ReadFile(path)
	if err != nil {
		return SeedResult{}, fmt.Errorf("read alpha seed: %w", err)
	}
	seed, err := ParseSeed(data)
	if err != nil {
		return SeedResult{}, err
	}
	return s.ImportSeed(ctx, seed)
}

// ImportSeed upserts every record in seed. Entries listed as ended are stored
// with status ended regardless of their own status field. An ended entry does
// not override an active entry with the same symbol.
func (s *Store) ImportSeed(ctx context.Context, seed Seed) (SeedResult, error) {
	if s == nil || s.DB == nil {
		return SeedResult{}, errors.New("store is not initialized")
	}

	var result SeedResult
	now := time.Now()

	active := make(map[string]struct{}, len(seed.ActiveCompetitions))
	for _, comp := range seed.ActiveCompetitions {
		if comp.Status == "" {
			comp.Status = StatusActive
		}
		if _, err := s.UpsertCompetition(ctx, comp, now); err != nil {
			return result, err
		}
		active[strings.ToUpper(strings.TrimSpace(comp.Symbol))] = struct{}{}
		result.Competitions++
	}
	for _, comp := range seed.EndedCompetitions {
		if _, ok := active[strings.ToUpper(strings.TrimSpace(comp.Symbol))]; ok {
			continue
		}
		comp.Status = StatusEnded
		if _, err := s.UpsertCompetition(ctx, comp, now); err != nil {
			return result, err
		}
		result.Competitions++
	}
	for _, airdrop := range seed.Airdrops {
		if err := s.UpsertAirdrop(ctx, airdrop, now); err != nil {
			return result, err
		}
		result.Airdrops++
	}
	for symbol, coinID := range seed.CoinGeckoIDs {
		if err := s.SetCoinGeckoID(ctx, symbol, coinID); err != nil {
			return result, err
		}
		result.CoinGeckoIDs++
	}

	return result, nil
}

// seedDefaults writes DefaultSeed once per database, so records removed
// later stay removed.
func (s *Store) seedDefaults(ctx context.Context) error {
	seeded, err := s.GetMeta(ctx, metaSeeded)
	if err != nil {
		return err
	}
	if seeded != "" {
		return nil
	}
	if _, err := s.ImportSeed(ctx, DefaultSeed()); err != nil {
		return fmt.Errorf("seed alpha defaults: %w", err)
	}
	return s.SetMeta(ctx, metaSeeded, time.Now().UTC().Format(time.RFC3339))
}
