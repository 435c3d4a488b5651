// Package strategy holds one pure evaluator per bot type. Evaluators never
// perform I/O: they read a bot record plus market state and return a fire
// decision (or nil) together with their updated working state, which the
// monitor loop persists on the bot.
package strategy

import (
	"encoding/json"
	"time"

	"botfarm-core/internal/bots"
	"botfarm-core/pkg/feed"
)

// Market is the read-only market state for one evaluation.
type Market struct {
	Candles []feed.Candle // cached window for the bot's pair+timeframe
	Price   float64       // last traded price
	Now     time.Time
}

// Closed returns the candles whose buckets are final. The last cached candle
// is usually still forming and is excluded unless flagged final.
func (m Market) Closed() []feed.Candle {
	if n := len(m.Candles); n > 0 && !m.Candles[n-1].IsFinal {
		return m.Candles[:n-1]
	}
	return m.Candles
}

// Closes extracts closing prices from a candle slice.
func Closes(candles []feed.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Fire is an evaluator's decision that entry/exit conditions are met.
type Fire struct {
	Side   string  // BUY or SELL
	Qty    float64 // base quantity; 0 means use the bot's configured size
	Price  float64 // limit price; 0 means market
	Reason string
}

// Evaluator is a pure decision function for one bot type.
type Evaluator interface {
	// Evaluate returns a fire (or nil), the bot's updated working state and
	// an error only for corrupted config/state, which the caller treats as
	// fatal for that bot instance alone.
	Evaluate(b bots.Bot, m Market) (*Fire, json.RawMessage, error)
}

// table maps each bot type to its evaluator; the single dispatch point for
// type-specific behavior.
var table = map[bots.Type]Evaluator{
	bots.TypeRSI:           rsiEvaluator{},
	bots.TypeMomentum:      momentumEvaluator{},
	bots.TypeCandleStreak:  streakEvaluator{},
	bots.TypeDCA:           dcaEvaluator{},
	bots.TypeGrid:          gridEvaluator{},
	bots.TypePriceMovement: priceMoveEvaluator{},
}

// ForType returns the evaluator for a bot type.
func ForType(t bots.Type) (Evaluator, bool) {
	e, ok := table[t]
	return e, ok
}
