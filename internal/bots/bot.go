// Package bots defines the strategy-instance record and its lock-guarded
// repository. Each bot is an independent state machine owned by exactly one
// monitor loop during an evaluation cycle.
package bots

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Type tags the strategy variant a bot runs.
type Type string

const (
	TypeRSI           Type = "rsi"
	TypeMomentum      Type = "momentum"
	TypeCandleStreak  Type = "candle_streak"
	TypeDCA           Type = "dca"
	TypeGrid          Type = "grid"
	TypePriceMovement Type = "price_movement"
)

// Types lists every known bot type in stable order.
func Types() []Type {
	return []Type{TypeRSI, TypeMomentum, TypeCandleStreak, TypeDCA, TypeGrid, TypePriceMovement}
}

// Status is the bot lifecycle state.
type Status string

const (
	StatusStopped Status = "STOPPED"
	StatusWaiting Status = "WAITING"
	StatusActive  Status = "ACTIVE" // fired at least once, still monitored
	StatusPaused  Status = "PAUSED" // safety-triggered or manual
)

// Mode selects real or simulated execution.
type Mode string

const (
	ModeLive  Mode = "LIVE"
	ModePaper Mode = "PAPER"
)

// ErrInvalidConfig rejects a bot at creation time, before it ever reaches a
// monitor loop.
var ErrInvalidConfig = errors.New("invalid bot config")

// Bot is one configured, independently scheduled strategy instance.
type Bot struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      Type   `json:"type"`
	Pair      string `json:"pair"`
	Timeframe string `json:"timeframe"`
	Status    Status `json:"status"`
	Mode      Mode   `json:"mode"`

	UserID    string `json:"user_id"`
	AccountID string `json:"account_id"`

	// Strategy parameters, decoded per Type by its evaluator.
	Params json.RawMessage `json:"params"`

	// Evaluator working state (previous readings, ladder fills, ...),
	// opaque to everything but the evaluator that owns it.
	State json.RawMessage `json:"state,omitempty"`

	// Order sizing
	OrderQty   float64 `json:"order_qty"`
	Leverage   float64 `json:"leverage"`
	TakeProfit float64 `json:"take_profit,omitempty"`
	StopLoss   float64 `json:"stop_loss,omitempty"`
	MarketType string  `json:"market_type"` // SPOT or FUTURES

	// Safety limits
	CooldownSeconds int  `json:"cooldown_seconds"`
	MaxTradesPerDay int  `json:"max_trades_per_day"`
	OneTradeAtATime bool `json:"one_trade_at_a_time"`

	// Counters maintained by the engine
	LastTriggerTime   time.Time `json:"last_trigger_time,omitempty"`
	LastOrderTime     time.Time `json:"last_order_time,omitempty"`
	DailyTradeCount   int       `json:"daily_trade_count"`
	LastResetDate     string    `json:"last_reset_date,omitempty"` // YYYY-MM-DD
	ActiveOrdersCount int       `json:"active_orders_count"`

	// Flagged marks a bot force-stopped after an invariant violation.
	Flagged    bool   `json:"flagged,omitempty"`
	FlagReason string `json:"flag_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate rejects configuration errors before a bot enters a monitor loop.
func (b *Bot) Validate() error {
	if b.Pair == "" {
		return fmt.Errorf("%w: pair is required", ErrInvalidConfig)
	}
	if b.Timeframe == "" {
		return fmt.Errorf("%w: timeframe is required", ErrInvalidConfig)
	}
	if !knownType(b.Type) {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidConfig, b.Type)
	}
	if b.OrderQty <= 0 {
		return fmt.Errorf("%w: order_qty must be > 0", ErrInvalidConfig)
	}
	if b.Mode != ModeLive && b.Mode != ModePaper {
		return fmt.Errorf("%w: mode must be LIVE or PAPER", ErrInvalidConfig)
	}
	return nil
}

func knownType(t Type) bool {
	for _, k := range Types() {
		if k == t {
			return true
		}
	}
	return false
}

// Eligible reports whether a bot should be evaluated this cycle.
func (b *Bot) Eligible() bool {
	return b.Status == StatusWaiting || b.Status == StatusActive
}

// allowed transitions of the bot state machine.
var transitions = map[Status][]Status{
	StatusStopped: {StatusWaiting},
	StatusWaiting: {StatusActive, StatusPaused, StatusStopped},
	StatusActive:  {StatusPaused, StatusStopped},
	StatusPaused:  {StatusWaiting, StatusStopped},
}

// Transition moves the bot to a new status, enforcing the state machine.
func (b *Bot) Transition(to Status) error {
	if b.Status == to {
		return nil
	}
	for _, ok := range transitions[b.Status] {
		if ok == to {
			b.Status = to
			b.UpdatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("bot %s: illegal transition %s -> %s", b.ID, b.Status, to)
}
