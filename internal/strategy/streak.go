package strategy

import (
	"encoding/json"
	"fmt"

	"botfarm-core/internal/bots"
)

// StreakParams configures a candle-streak bot: fire when `count` consecutive
// candles of `color` have closed.
type StreakParams struct {
	Count int    `json:"count"`
	Color string `json:"color"` // "green" or "red"
	Side  string `json:"side"`  // BUY or SELL on trigger
}

type streakState struct {
	LastFiredOpen int64 `json:"last_fired_open"` // OpenTime of the closed candle last fired on
}

type streakEvaluator struct{}

// Evaluate counts consecutive same-colored candles ending at the most recent
// closed candle. It fires at most once per closed candle, so repeated ticks
// inside the next forming bucket cannot duplicate the trigger.
func (streakEvaluator) Evaluate(b bots.Bot, m Market) (*Fire, json.RawMessage, error) {
	var p StreakParams
	if err := json.Unmarshal(b.Params, &p); err != nil {
		return nil, b.State, fmt.Errorf("streak params: %w", err)
	}
	if p.Count <= 0 || (p.Color != "green" && p.Color != "red") {
		return nil, b.State, fmt.Errorf("streak: count and color are required")
	}
	if p.Side == "" {
		// default: fade the streak (buy after a red run, sell after green)
		if p.Color == "red" {
			p.Side = "BUY"
		} else {
			p.Side = "SELL"
		}
	}

	closed := m.Closed()
	if len(closed) == 0 {
		return nil, b.State, nil
	}
	last := closed[len(closed)-1]

	var st streakState
	if len(b.State) > 0 {
		if err := json.Unmarshal(b.State, &st); err != nil {
			return nil, b.State, fmt.Errorf("streak state: %w", err)
		}
	}
	if st.LastFiredOpen == last.OpenTime {
		return nil, b.State, nil
	}

	streak := 0
	for i := len(closed) - 1; i >= 0; i-- {
		c := closed[i]
		green := c.Close > c.Open
		if (p.Color == "green") != green || c.Close == c.Open {
			break
		}
		streak++
	}
	if streak < p.Count {
		return nil, b.State, nil
	}

	ns, _ := json.Marshal(streakState{LastFiredOpen: last.OpenTime})
	return &Fire{
		Side:   p.Side,
		Reason: fmt.Sprintf("%d consecutive %s candles", streak, p.Color),
	}, ns, nil
}
