package bots

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// SeedEntry is one bot definition in the YAML seed file.
type SeedEntry struct {
	ID              string         `yaml:"id"`
	Name            string         `yaml:"name"`
	Type            Type           `yaml:"type"`
	Pair            string         `yaml:"pair"`
	Timeframe       string         `yaml:"timeframe"`
	Mode            Mode           `yaml:"mode"`
	Enabled         bool           `yaml:"enabled"`
	OrderQty        float64        `yaml:"order_qty"`
	Leverage        float64        `yaml:"leverage"`
	MarketType      string         `yaml:"market_type"`
	CooldownSeconds int            `yaml:"cooldown_seconds"`
	MaxTradesPerDay int            `yaml:"max_trades_per_day"`
	OneTradeAtATime bool           `yaml:"one_trade_at_a_time"`
	Params          map[string]any `yaml:"params"`
}

type seedFile struct {
	Bots []SeedEntry `yaml:"bots"`
}

// SeedFromFile upserts bot definitions from a YAML file into the
// repository. Existing ids keep their counters and runtime state.
func SeedFromFile(ctx context.Context, repo *Repository, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read bots file: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse bots file: %w", err)
	}

	for _, entry := range file.Bots {
		params, err := json.Marshal(entry.Params)
		if err != nil {
			return fmt.Errorf("bot %q params: %w", entry.Name, err)
		}

		b := Bot{
			ID:              entry.ID,
			Name:            entry.Name,
			Type:            entry.Type,
			Pair:            entry.Pair,
			Timeframe:       entry.Timeframe,
			Mode:            entry.Mode,
			Params:          params,
			OrderQty:        entry.OrderQty,
			Leverage:        entry.Leverage,
			MarketType:      entry.MarketType,
			CooldownSeconds: entry.CooldownSeconds,
			MaxTradesPerDay: entry.MaxTradesPerDay,
			OneTradeAtATime: entry.OneTradeAtATime,
		}
		if b.ID == "" {
			b.ID = uuid.NewString()
		}
		if b.Mode == "" {
			b.Mode = ModePaper
		}
		if b.MarketType == "" {
			b.MarketType = "SPOT"
		}
		if !entry.Enabled {
			b.Status = StatusStopped
		}

		if existing, ok := repo.Get(b.ID); ok {
			// keep runtime fields across re-seeds
			b.Status = existing.Status
			b.State = existing.State
			b.LastTriggerTime = existing.LastTriggerTime
			b.LastOrderTime = existing.LastOrderTime
			b.DailyTradeCount = existing.DailyTradeCount
			b.LastResetDate = existing.LastResetDate
			b.ActiveOrdersCount = existing.ActiveOrdersCount
			b.CreatedAt = existing.CreatedAt
			b.UpdatedAt = time.Now()
			if err := repo.Update(ctx, b); err != nil {
				return fmt.Errorf("update seeded bot %q: %w", b.Name, err)
			}
			continue
		}
		if err := repo.Add(ctx, b); err != nil {
			return fmt.Errorf("add seeded bot %q: %w", b.Name, err)
		}
	}
	return nil
}
