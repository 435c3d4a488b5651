package strategy

import (
	"encoding/json"
	"fmt"
	"math"

	"botfarm-core/internal/bots"
)

// MomentumParams configures a momentum bot: fire when price has moved by a
// configured amount from a reference price.
type MomentumParams struct {
	Threshold float64 `json:"threshold"`
	Percent   bool    `json:"percent"` // threshold is % of reference, else absolute
}

type momentumState struct {
	RefPrice float64 `json:"ref_price"`
}

type momentumEvaluator struct{}

// Evaluate follows the move direction: an up move past the threshold buys,
// a down move sells. The reference price resets after each fire.
func (momentumEvaluator) Evaluate(b bots.Bot, m Market) (*Fire, json.RawMessage, error) {
	var p MomentumParams
	if err := json.Unmarshal(b.Params, &p); err != nil {
		return nil, b.State, fmt.Errorf("momentum params: %w", err)
	}
	if p.Threshold <= 0 {
		return nil, b.State, fmt.Errorf("momentum: threshold must be > 0")
	}
	if m.Price <= 0 {
		return nil, b.State, nil
	}

	var st momentumState
	if len(b.State) > 0 {
		if err := json.Unmarshal(b.State, &st); err != nil {
			return nil, b.State, fmt.Errorf("momentum state: %w", err)
		}
	}
	if st.RefPrice <= 0 {
		ns, _ := json.Marshal(momentumState{RefPrice: m.Price})
		return nil, ns, nil
	}

	move := m.Price - st.RefPrice
	magnitude := math.Abs(move)
	if p.Percent {
		magnitude = magnitude / st.RefPrice * 100
	}
	if magnitude < p.Threshold {
		return nil, b.State, nil
	}

	side := "BUY"
	if move < 0 {
		side = "SELL"
	}
	ns, _ := json.Marshal(momentumState{RefPrice: m.Price}) // reset after fire
	unit := ""
	if p.Percent {
		unit = "%"
	}
	return &Fire{
		Side:   side,
		Reason: fmt.Sprintf("momentum %.4f%s from ref %.4f", magnitude, unit, st.RefPrice),
	}, ns, nil
}
