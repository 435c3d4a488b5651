package exchange

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PaperConfig tunes the fill simulation.
type PaperConfig struct {
	FeeRate     float64 // decimal, e.g. 0.0004 = 4 bps
	SlippageBps float64 // basis points applied against the taker
	LatencyMin  time.Duration
	LatencyMax  time.Duration
}

// PaperConnector simulates a venue in memory: instant fills, cash
// accounting, simple average-entry positions. It lets the engine run
// end-to-end without credentials.
type PaperConnector struct {
	cfg       PaperConfig
	rng       *rand.Rand
	mu        sync.RWMutex
	balance   float64
	positions map[string]*paperPosition
	fills     int

	// simulated request-weight accounting, reported like a venue header
	weightUsed int
	weightAt   time.Time
}

type paperPosition struct {
	Symbol     string
	Side       Side
	Qty        float64
	EntryPrice float64
}

func NewPaperConnector(initialBalance float64, cfg PaperConfig) *PaperConnector {
	if cfg.LatencyMax > 0 && cfg.LatencyMin > cfg.LatencyMax {
		cfg.LatencyMin, cfg.LatencyMax = cfg.LatencyMax, cfg.LatencyMin
	}
	return &PaperConnector{
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		balance:   initialBalance,
		positions: make(map[string]*paperPosition),
		weightAt:  time.Now(),
	}
}

// ValidateKeys always succeeds: paper trading needs no credentials.
func (p *PaperConnector) ValidateKeys(_ context.Context) (KeyCheck, error) {
	return KeyCheck{Valid: true}, nil
}

func (p *PaperConnector) GetBalance(_ context.Context, asset string) (Balance, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Balance{Asset: asset, Available: p.balance}, nil
}

func (p *PaperConnector) PlaceOrder(ctx context.Context, req OrderRequest) (OrderAck, error) {
	if req.Qty <= 0 {
		return OrderAck{Status: StatusRejected}, fmt.Errorf("qty must be positive, got %v", req.Qty)
	}

	if delay := p.latency(); delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return OrderAck{}, ctx.Err()
		}
	}

	price := p.fillPrice(req)

	p.mu.Lock()
	defer p.mu.Unlock()
	usedWeight := p.chargeWeight()

	orderValue := req.Qty * price
	fee := orderValue * p.cfg.FeeRate
	if price > 0 && req.Side == SideBuy && orderValue+fee > p.balance {
		return OrderAck{Status: StatusRejected, UsedWeight: usedWeight},
			fmt.Errorf("insufficient balance: need %.2f, have %.2f", orderValue+fee, p.balance)
	}

	p.applyFill(req, price)
	if price > 0 {
		switch req.Side {
		case SideBuy:
			p.balance -= orderValue + fee
		case SideSell:
			p.balance += orderValue - fee
		}
	}
	p.fills++

	id := uuid.NewString()
	log.Printf("paper fill: %s %s qty=%.4f price=%.4f balance=%.2f",
		req.Side, req.Symbol, req.Qty, price, p.balance)
	return OrderAck{OrderID: id, Status: StatusFilled, UsedWeight: usedWeight}, nil
}

// chargeWeight mimics the venue's per-order request weight and returns
// the cumulative figure a response header would carry. Callers hold p.mu.
func (p *PaperConnector) chargeWeight() string {
	if time.Since(p.weightAt) >= time.Minute {
		p.weightUsed = 0
		p.weightAt = time.Now()
	}
	p.weightUsed++
	return strconv.Itoa(p.weightUsed)
}

// latency draws a simulated gateway delay from the configured range.
func (p *PaperConnector) latency() time.Duration {
	if p.cfg.LatencyMax <= 0 {
		return 0
	}
	span := p.cfg.LatencyMax - p.cfg.LatencyMin
	if span <= 0 {
		return p.cfg.LatencyMin
	}
	return p.cfg.LatencyMin + time.Duration(p.rng.Int63n(int64(span)+1))
}

// fillPrice applies random slippage against the taker.
func (p *PaperConnector) fillPrice(req OrderRequest) float64 {
	price := req.Price
	if price <= 0 {
		return price
	}
	frac := p.cfg.SlippageBps / 10000.0
	if frac <= 0 {
		return price
	}
	noise := p.rng.Float64() * frac
	if req.Side == SideBuy {
		return price * (1 + noise)
	}
	return price * (1 - noise)
}

func (p *PaperConnector) applyFill(req OrderRequest, price float64) {
	pos, ok := p.positions[req.Symbol]
	if !ok {
		p.positions[req.Symbol] = &paperPosition{
			Symbol:     req.Symbol,
			Side:       req.Side,
			Qty:        req.Qty,
			EntryPrice: price,
		}
		return
	}

	if req.Side == pos.Side {
		totalValue := pos.Qty*pos.EntryPrice + req.Qty*price
		pos.Qty += req.Qty
		if pos.Qty != 0 {
			pos.EntryPrice = totalValue / pos.Qty
		}
		return
	}
	pos.Qty -= req.Qty
	if pos.Qty <= 0 {
		delete(p.positions, req.Symbol)
	}
}

// Snapshot returns a printable view of the simulated account.
func (p *PaperConnector) Snapshot() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var b strings.Builder
	fmt.Fprintf(&b, "paper account: balance=%.2f fills=%d\n", p.balance, p.fills)
	for sym, pos := range p.positions {
		fmt.Fprintf(&b, "  pos %s side=%s qty=%.4f entry=%.4f\n", sym, pos.Side, pos.Qty, pos.EntryPrice)
	}
	if len(p.positions) == 0 {
		b.WriteString("  (no open positions)\n")
	}
	return b.String()
}
