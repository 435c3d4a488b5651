package order

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"botfarm-core/internal/bots"
	"botfarm-core/internal/events"
	"botfarm-core/pkg/exchange"
	"botfarm-core/pkg/store"
)

// Intent is the transient order request built from a strategy fire. It
// is never persisted as-is; Execute maps it into a store.Order.
type Intent struct {
	UserID     string
	AccountID  string
	Symbol     string
	Side       string
	OrderType  string
	Qty        float64
	Price      float64
	Leverage   float64
	TakeProfit float64
	StopLoss   float64
	MarketType string
	Reason     string
}

// Result reports one dispatch outcome. Err is data, not a thrown
// failure: callers aggregate partial success across symbols.
type Result struct {
	Success bool
	Symbol  string
	Order   *store.Order
	Err     error
}

// Persister is the slice of the store the router needs.
type Persister interface {
	CreateOrder(ctx context.Context, o store.Order) error
	CreateActiveOrder(ctx context.Context, o store.Order) error
	AppendTrade(ctx context.Context, t store.Trade) error
}

// Router normalizes fire decisions into venue orders and persisted
// records. It performs no retries; a failed dispatch is returned to the
// caller as a Result with Err set.
type Router struct {
	connector exchange.Connector
	db        Persister
	bus       *events.Bus
	timeout   time.Duration
	limiter   *exchange.WeightLimiter
}

func NewRouter(connector exchange.Connector, db Persister, bus *events.Bus, timeout time.Duration) *Router {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Router{connector: connector, db: db, bus: bus, timeout: timeout}
}

// SetWeightLimiter installs a venue weight limiter. When the venue reports
// usage near its budget, dispatches back off briefly instead of risking a
// ban.
func (r *Router) SetWeightLimiter(wl *exchange.WeightLimiter) {
	r.limiter = wl
}

// Execute validates the intent, places it through the connector with a
// bounded timeout, persists the resulting order and trade, and bumps
// the bot's trade counters. Exactly one order record is written per
// successful call.
func (r *Router) Execute(ctx context.Context, b *bots.Bot, in Intent, prices map[string]float64) Result {
	res := Result{Symbol: in.Symbol}

	if err := validate(in); err != nil {
		res.Err = err
		r.publishRejected(b, in, err)
		return res
	}

	price := in.Price
	if price <= 0 {
		price = prices[in.Symbol]
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if r.limiter != nil && r.limiter.ShouldDelay() {
		log.Printf("venue weight near budget, delaying dispatch for %s", in.Symbol)
		select {
		case <-time.After(time.Second):
		case <-callCtx.Done():
			res.Err = callCtx.Err()
			return res
		}
	}

	ack, err := r.connector.PlaceOrder(callCtx, exchange.OrderRequest{
		Symbol:     in.Symbol,
		Side:       exchange.Side(in.Side),
		Type:       exchange.OrderType(in.OrderType),
		Qty:        in.Qty,
		Price:      price,
		Leverage:   int(in.Leverage),
		TakeProfit: in.TakeProfit,
		StopLoss:   in.StopLoss,
		Market:     exchange.MarketType(in.MarketType),
		ClientID:   uuid.NewString(),
	})
	if r.limiter != nil && ack.UsedWeight != "" {
		r.limiter.UpdateFromHeader(ack.UsedWeight)
	}
	if err != nil {
		res.Err = fmt.Errorf("place order %s %s: %w", in.Side, in.Symbol, err)
		r.publishRejected(b, in, err)
		return res
	}

	now := time.Now()
	rec := store.Order{
		ID:         ack.OrderID,
		BotID:      botID(b),
		Symbol:     in.Symbol,
		Side:       in.Side,
		OrderType:  in.OrderType,
		Qty:        in.Qty,
		Price:      price,
		Leverage:   in.Leverage,
		TakeProfit: in.TakeProfit,
		StopLoss:   in.StopLoss,
		MarketType: in.MarketType,
		Status:     string(ack.Status),
		Mode:       botMode(b),
		CreatedAt:  now,
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	if err := r.db.CreateOrder(ctx, rec); err != nil {
		// The venue accepted the order; losing the record is worse
		// than a dispatch failure, so surface it loudly.
		log.Printf("order persisted to venue but not to store: %v", err)
		res.Err = fmt.Errorf("persist order %s: %w", rec.ID, err)
		return res
	}
	// Only orders the venue leaves open are tracked as active; instant
	// fills go straight to trade history.
	stillOpen := ack.Status != exchange.StatusFilled
	if stillOpen {
		if err := r.db.CreateActiveOrder(ctx, rec); err != nil {
			log.Printf("active order record failed for %s: %v", rec.ID, err)
		}
	}
	if ack.Status == exchange.StatusFilled {
		trade := store.Trade{
			ID:        uuid.NewString(),
			OrderID:   rec.ID,
			BotID:     rec.BotID,
			Symbol:    rec.Symbol,
			Side:      rec.Side,
			Qty:       rec.Qty,
			Price:     rec.Price,
			CreatedAt: now,
		}
		if err := r.db.AppendTrade(ctx, trade); err != nil {
			log.Printf("trade history append failed for %s: %v", rec.ID, err)
		}
	}

	if b != nil {
		b.LastTriggerTime = now
		b.LastOrderTime = now
		b.DailyTradeCount++
		if stillOpen {
			b.ActiveOrdersCount++
		}
	}

	if r.bus != nil {
		r.bus.Publish(events.EventOrderPlaced, rec)
	}
	res.Success = true
	res.Order = &rec
	return res
}

// ExecuteBatch dispatches several intents and returns every outcome.
// A failure on one symbol never halts the rest.
func (r *Router) ExecuteBatch(ctx context.Context, b *bots.Bot, ins []Intent, prices map[string]float64) []Result {
	out := make([]Result, 0, len(ins))
	for _, in := range ins {
		out = append(out, r.Execute(ctx, b, in, prices))
	}
	return out
}

func validate(in Intent) error {
	if in.AccountID == "" {
		return fmt.Errorf("intent missing account")
	}
	if in.Symbol == "" {
		return fmt.Errorf("intent missing symbol")
	}
	if in.Qty <= 0 {
		return fmt.Errorf("intent quantity must be positive, got %v", in.Qty)
	}
	return nil
}

func (r *Router) publishRejected(b *bots.Bot, in Intent, err error) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(events.EventOrderRejected, struct {
		BotID  string
		Symbol string
		Side   string
		Reason string
	}{botID(b), in.Symbol, in.Side, err.Error()})
}

func botID(b *bots.Bot) string {
	if b == nil {
		return ""
	}
	return b.ID
}

func botMode(b *bots.Bot) string {
	if b == nil {
		return string(bots.ModePaper)
	}
	return string(b.Mode)
}
