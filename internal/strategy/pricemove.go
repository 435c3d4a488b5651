package strategy

import (
	"encoding/json"
	"fmt"

	"botfarm-core/internal/bots"
)

// PriceMoveParams configures a price-movement bot: a move past the threshold
// must persist for a number of closed bars before the bot fires, so a single
// tick spike cannot trigger it.
type PriceMoveParams struct {
	ThresholdPercent float64 `json:"threshold_percent"`
	ConfirmBars      int     `json:"confirm_bars"`
}

type priceMoveState struct {
	RefPrice    float64 `json:"ref_price"`
	Confirmed   int     `json:"confirmed"`
	Direction   int     `json:"direction"` // +1 up, -1 down, 0 none
	LastBarOpen int64   `json:"last_bar_open"`
}

type priceMoveEvaluator struct{}

// Evaluate counts closed bars that hold beyond the threshold relative to the
// reference price. A bar back inside the band resets the count; a direction
// flip restarts it. After a fire the reference resets to the firing close.
func (priceMoveEvaluator) Evaluate(b bots.Bot, m Market) (*Fire, json.RawMessage, error) {
	var p PriceMoveParams
	if err := json.Unmarshal(b.Params, &p); err != nil {
		return nil, b.State, fmt.Errorf("price_movement params: %w", err)
	}
	if p.ThresholdPercent <= 0 {
		return nil, b.State, fmt.Errorf("price_movement: threshold_percent must be > 0")
	}
	if p.ConfirmBars <= 0 {
		p.ConfirmBars = 1
	}

	closed := m.Closed()
	if len(closed) == 0 {
		return nil, b.State, nil
	}
	bar := closed[len(closed)-1]

	var st priceMoveState
	if len(b.State) > 0 {
		if err := json.Unmarshal(b.State, &st); err != nil {
			return nil, b.State, fmt.Errorf("price_movement state: %w", err)
		}
	}
	if st.RefPrice <= 0 {
		ns, _ := json.Marshal(priceMoveState{RefPrice: bar.Close, LastBarOpen: bar.OpenTime})
		return nil, ns, nil
	}
	// only closed bars advance the confirmation count
	if st.LastBarOpen == bar.OpenTime {
		return nil, b.State, nil
	}

	movePct := (bar.Close - st.RefPrice) / st.RefPrice * 100
	dir := 0
	if movePct >= p.ThresholdPercent {
		dir = 1
	} else if movePct <= -p.ThresholdPercent {
		dir = -1
	}

	ns := st
	ns.LastBarOpen = bar.OpenTime
	switch {
	case dir == 0:
		ns.Confirmed = 0
		ns.Direction = 0
	case dir == st.Direction:
		ns.Confirmed = st.Confirmed + 1
	default:
		ns.Confirmed = 1
		ns.Direction = dir
	}

	if dir != 0 && ns.Confirmed >= p.ConfirmBars {
		side := "BUY"
		if dir < 0 {
			side = "SELL"
		}
		out, _ := json.Marshal(priceMoveState{RefPrice: bar.Close, LastBarOpen: bar.OpenTime})
		return &Fire{
			Side:   side,
			Reason: fmt.Sprintf("%.2f%% move held for %d bars", movePct, ns.Confirmed),
		}, out, nil
	}

	raw, _ := json.Marshal(ns)
	return nil, raw, nil
}
