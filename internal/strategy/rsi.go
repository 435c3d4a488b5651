package strategy

import (
	"encoding/json"
	"fmt"

	"botfarm-core/internal/bots"
	"botfarm-core/internal/indicators"
)

// RSIParams configures an RSI threshold bot.
type RSIParams struct {
	Period      int     `json:"period"`
	Threshold   float64 `json:"threshold"`
	Direction   string  `json:"direction"`    // "below" buys, "above" sells
	TriggerMode string  `json:"trigger_mode"` // "Touches" or "Crosses"
}

type rsiState struct {
	Prev    float64 `json:"prev"`
	HasPrev bool    `json:"has_prev"`
}

type rsiEvaluator struct{}

// Evaluate compares the current RSI reading against the previous tick's
// reading so a bot cannot re-fire while RSI sits beyond the threshold:
//   - Touches: fires when the current reading is at-or-beyond the threshold
//     and the previous one was not.
//   - Crosses: fires only when the previous reading was strictly on the
//     opposite side and the current one is strictly beyond.
func (rsiEvaluator) Evaluate(b bots.Bot, m Market) (*Fire, json.RawMessage, error) {
	var p RSIParams
	if err := json.Unmarshal(b.Params, &p); err != nil {
		return nil, b.State, fmt.Errorf("rsi params: %w", err)
	}
	if p.Period <= 0 {
		p.Period = 14
	}
	if p.Direction == "" {
		p.Direction = "below"
	}
	if p.TriggerMode == "" {
		p.TriggerMode = "Touches"
	}

	series := indicators.RSI(Closes(m.Candles), p.Period)
	if len(series) == 0 {
		return nil, b.State, nil
	}
	cur := series[len(series)-1]

	var st rsiState
	if len(b.State) > 0 {
		if err := json.Unmarshal(b.State, &st); err != nil {
			return nil, b.State, fmt.Errorf("rsi state: %w", err)
		}
	}
	newState, _ := json.Marshal(rsiState{Prev: cur, HasPrev: true})

	if !st.HasPrev {
		return nil, newState, nil
	}

	fired := false
	switch p.TriggerMode {
	case "Crosses":
		if p.Direction == "below" {
			fired = cur < p.Threshold && st.Prev > p.Threshold
		} else {
			fired = cur > p.Threshold && st.Prev < p.Threshold
		}
	default: // Touches
		if p.Direction == "below" {
			fired = cur <= p.Threshold && st.Prev > p.Threshold
		} else {
			fired = cur >= p.Threshold && st.Prev < p.Threshold
		}
	}
	if !fired {
		return nil, newState, nil
	}

	side := "BUY"
	if p.Direction == "above" {
		side = "SELL"
	}
	return &Fire{
		Side:   side,
		Reason: fmt.Sprintf("rsi %s %.2f (prev %.2f, threshold %.2f)", p.TriggerMode, cur, st.Prev, p.Threshold),
	}, newState, nil
}
