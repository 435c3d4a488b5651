package strategy

import (
	"encoding/json"
	"fmt"
	"math"

	"botfarm-core/internal/bots"
)

// GridParams configures a grid bot over evenly spaced lines between bounds.
type GridParams struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Lines int     `json:"lines"`
}

type gridState struct {
	LastLine int `json:"last_line"` // index of the nearest grid line, -1 = unset
}

type gridEvaluator struct{}

// Levels precomputes the evenly spaced line sequence between the bounds.
func (p GridParams) Levels() []float64 {
	step := (p.Upper - p.Lower) / float64(p.Lines-1)
	out := make([]float64, p.Lines)
	for i := range out {
		out[i] = p.Lower + float64(i)*step
	}
	return out
}

// Evaluate tracks which grid line the price is nearest to. Moving down to a
// lower line buys at the adjacent line below; moving up sells at the one
// above. A move spanning several lines is worked off one line per
// evaluation, so every crossed line gets its counter order over successive
// cycles. The first evaluation only records the starting line.
func (gridEvaluator) Evaluate(b bots.Bot, m Market) (*Fire, json.RawMessage, error) {
	var p GridParams
	if err := json.Unmarshal(b.Params, &p); err != nil {
		return nil, b.State, fmt.Errorf("grid params: %w", err)
	}
	if p.Lines < 2 || p.Upper <= p.Lower {
		return nil, b.State, fmt.Errorf("grid: need upper > lower and at least 2 lines")
	}
	if m.Price <= 0 {
		return nil, b.State, nil
	}

	st := gridState{LastLine: -1}
	if len(b.State) > 0 {
		if err := json.Unmarshal(b.State, &st); err != nil {
			return nil, b.State, fmt.Errorf("grid state: %w", err)
		}
	}

	step := (p.Upper - p.Lower) / float64(p.Lines-1)
	line := int(math.Round((m.Price - p.Lower) / step))
	if line < 0 {
		line = 0
	}
	if line > p.Lines-1 {
		line = p.Lines - 1
	}

	if st.LastLine == -1 || line == st.LastLine {
		ns, _ := json.Marshal(gridState{LastLine: line})
		return nil, ns, nil
	}

	levels := p.Levels()
	if line < st.LastLine {
		next := st.LastLine - 1
		ns, _ := json.Marshal(gridState{LastLine: next})
		return &Fire{
			Side:   "BUY",
			Price:  levels[next],
			Reason: fmt.Sprintf("grid crossed down to line %d (%.4f)", next, levels[next]),
		}, ns, nil
	}
	next := st.LastLine + 1
	ns, _ := json.Marshal(gridState{LastLine: next})
	return &Fire{
		Side:   "SELL",
		Price:  levels[next],
		Reason: fmt.Sprintf("grid crossed up to line %d (%.4f)", next, levels[next]),
	}, ns, nil
}
