package strategy

import (
	"encoding/json"
	"fmt"

	"botfarm-core/internal/bots"
)

// DCAParams configures an averaging-ladder bot: a base entry plus safety
// orders at increasing deviation below the entry price, exiting on take
// profit measured against the volume-weighted average entry.
type DCAParams struct {
	BaseQty          float64 `json:"base_qty"`
	SafetyQty        float64 `json:"safety_qty"`
	SafetyOrders     int     `json:"safety_orders"`
	DeviationPercent float64 `json:"deviation_percent"`   // per ladder step
	TakeProfitPct    float64 `json:"take_profit_percent"` // vs average entry
}

// DCAState is the ladder's working state.
type DCAState struct {
	EntryPrice  float64 `json:"entry_price"` // price of the base order
	AvgEntry    float64 `json:"avg_entry"`
	TotalQty    float64 `json:"total_qty"`
	FilledSteps int     `json:"filled_steps"`
}

type dcaEvaluator struct{}

// Evaluate emits at most one order per cycle, in priority order: take-profit
// exit, next unfilled safety level, then the base entry when flat.
func (dcaEvaluator) Evaluate(b bots.Bot, m Market) (*Fire, json.RawMessage, error) {
	var p DCAParams
	if err := json.Unmarshal(b.Params, &p); err != nil {
		return nil, b.State, fmt.Errorf("dca params: %w", err)
	}
	if p.BaseQty <= 0 || p.DeviationPercent <= 0 || p.TakeProfitPct <= 0 {
		return nil, b.State, fmt.Errorf("dca: base_qty, deviation_percent and take_profit_percent are required")
	}
	if p.SafetyQty <= 0 {
		p.SafetyQty = p.BaseQty
	}
	if m.Price <= 0 {
		return nil, b.State, nil
	}

	var st DCAState
	if len(b.State) > 0 {
		if err := json.Unmarshal(b.State, &st); err != nil {
			return nil, b.State, fmt.Errorf("dca state: %w", err)
		}
	}

	// Flat: open the base position.
	if st.TotalQty == 0 {
		ns, _ := json.Marshal(DCAState{
			EntryPrice: m.Price,
			AvgEntry:   m.Price,
			TotalQty:   p.BaseQty,
		})
		return &Fire{
			Side:   "BUY",
			Qty:    p.BaseQty,
			Reason: fmt.Sprintf("dca base entry at %.4f", m.Price),
		}, ns, nil
	}

	// Exit against the current average entry.
	target := st.AvgEntry * (1 + p.TakeProfitPct/100)
	if m.Price >= target {
		ns, _ := json.Marshal(DCAState{}) // ladder resets after the exit
		return &Fire{
			Side:   "SELL",
			Qty:    st.TotalQty,
			Reason: fmt.Sprintf("dca take profit at %.4f (avg %.4f)", m.Price, st.AvgEntry),
		}, ns, nil
	}

	// Next unfilled safety level, measured from the base entry.
	if st.FilledSteps < p.SafetyOrders {
		level := st.EntryPrice * (1 - float64(st.FilledSteps+1)*p.DeviationPercent/100)
		if m.Price <= level {
			newQty := st.TotalQty + p.SafetyQty
			newAvg := (st.AvgEntry*st.TotalQty + m.Price*p.SafetyQty) / newQty
			ns, _ := json.Marshal(DCAState{
				EntryPrice:  st.EntryPrice,
				AvgEntry:    newAvg,
				TotalQty:    newQty,
				FilledSteps: st.FilledSteps + 1,
			})
			return &Fire{
				Side: "BUY",
				Qty:  p.SafetyQty,
				Reason: fmt.Sprintf("dca safety order %d at %.4f (new avg %.4f)",
					st.FilledSteps+1, m.Price, newAvg),
			}, ns, nil
		}
	}

	return nil, b.State, nil
}
