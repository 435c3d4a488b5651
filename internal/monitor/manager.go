package monitor

import (
	"context"
	"log"
	"time"

	"botfarm-core/internal/bots"
	"botfarm-core/internal/events"
	"botfarm-core/internal/gate"
	"botfarm-core/internal/market"
)

// Default cadence per bot type. Price-reactive strategies tick fast;
// candle-based ones gain nothing from sub-second polling.
var defaultIntervals = map[bots.Type]time.Duration{
	bots.TypeRSI:           2 * time.Second,
	bots.TypeMomentum:      time.Second,
	bots.TypeCandleStreak:  5 * time.Second,
	bots.TypeDCA:           2 * time.Second,
	bots.TypeGrid:          time.Second,
	bots.TypePriceMovement: time.Second,
}

// Manager owns one loop per bot type and runs them independently. No
// ordering is guaranteed across loops; within a loop bots run in stable
// collection order.
type Manager struct {
	loops []*Loop
}

func NewManager(repo *bots.Repository, cache *market.Cache, fd Subscriber, g *gate.Gate, router Dispatcher, bus *events.Bus, intervals map[bots.Type]time.Duration) *Manager {
	m := &Manager{}
	for _, typ := range bots.Types() {
		iv := intervals[typ]
		if iv <= 0 {
			iv = defaultIntervals[typ]
		}
		m.loops = append(m.loops, NewLoop(typ, iv, repo, cache, fd, g, router, bus))
	}
	return m
}

// Start launches every loop; they stop when ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	for _, l := range m.loops {
		go l.Run(ctx)
		log.Printf("monitor: %s loop started (every %s)", l.typ, l.interval)
	}
}
