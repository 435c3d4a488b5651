// Package monitor runs one scheduling loop per strategy type. A loop owns
// its cadence, stream subscription reconciliation and the
// evaluate-gate-dispatch sequence for every bot of its type.
package monitor

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"botfarm-core/internal/bots"
	"botfarm-core/internal/events"
	"botfarm-core/internal/gate"
	"botfarm-core/internal/market"
	"botfarm-core/internal/order"
	"botfarm-core/internal/strategy"
	"botfarm-core/pkg/feed"
)

// Subscriber is the slice of the feed multiplexer a loop needs for
// reconciling its stream subscriptions.
type Subscriber interface {
	Subscribe(streams []string)
}

// Dispatcher places one normalized order; the production implementation
// is order.Router.
type Dispatcher interface {
	Execute(ctx context.Context, b *bots.Bot, in order.Intent, prices map[string]float64) order.Result
}

// Loop is the scheduler for one bot type.
type Loop struct {
	typ      bots.Type
	interval time.Duration
	repo     *bots.Repository
	cache    *market.Cache
	feed     Subscriber
	gate     *gate.Gate
	router   Dispatcher
	bus      *events.Bus

	// running guards against overlapping cycles: a cycle still running
	// when the next tick fires is skipped, never queued.
	running atomic.Bool

	// inFlight marks bots with a dispatch outstanding; they are not
	// evaluated again until the dispatch completes and its counters land.
	mu       sync.Mutex
	inFlight map[string]bool

	// streams this loop has subscribed; stale entries are deliberately
	// left on the wire, cleanup on bot deletion belongs to the deleter.
	subscribed map[string]bool

	now func() time.Time
}

func NewLoop(typ bots.Type, interval time.Duration, repo *bots.Repository, cache *market.Cache, fd Subscriber, g *gate.Gate, router Dispatcher, bus *events.Bus) *Loop {
	if interval <= 0 {
		interval = time.Second
	}
	return &Loop{
		typ:        typ,
		interval:   interval,
		repo:       repo,
		cache:      cache,
		feed:       fd,
		gate:       g,
		router:     router,
		bus:        bus,
		inFlight:   make(map[string]bool),
		subscribed: make(map[string]bool),
		now:        time.Now,
	}
}

// Run ticks the loop until the context is cancelled.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cycle(ctx)
		}
	}
}

// Cycle runs one evaluation pass: reconcile subscriptions, evaluate every
// eligible bot in stable order, gate fires, start async dispatches, and
// persist the batch. Overlapping invocations are skipped.
func (l *Loop) Cycle(ctx context.Context) {
	if !l.running.CompareAndSwap(false, true) {
		log.Printf("%s loop: previous cycle still running, skipping", l.typ)
		return
	}
	defer l.running.Store(false)

	list := l.repo.List(l.typ)
	l.reconcile(list)

	now := l.now()
	prices := l.cache.Prices()

	var updated []bots.Bot
	var pending []dispatch

	for i := range list {
		b := list[i]
		if !b.Eligible() || l.dispatchPending(b.ID) {
			continue
		}

		ev, ok := strategy.ForType(b.Type)
		if !ok {
			continue
		}

		m := strategy.Market{
			Candles: l.cache.Candles(b.Pair, b.Timeframe),
			Price:   l.cache.LastPrice(b.Pair),
			Now:     now,
		}
		if len(m.Candles) == 0 && m.Price == 0 {
			continue // no market data yet for this pair
		}

		fire, state, err := ev.Evaluate(b, m)
		if err != nil {
			// Corrupted config/state is fatal for this bot alone.
			if ferr := l.repo.ForceStop(ctx, b.ID, err.Error()); ferr != nil {
				log.Printf("%s loop: force stop %s: %v", l.typ, b.ID, ferr)
			}
			continue
		}
		b.State = state
		updated = append(updated, b)

		if fire == nil {
			continue
		}
		if v := l.gate.Check(&b, now); !v.Allowed {
			updated[len(updated)-1] = b // daily counter may have been reset
			continue
		}
		updated[len(updated)-1] = b
		if l.bus != nil {
			l.bus.Publish(events.EventBotFired, struct {
				BotID  string
				Type   bots.Type
				Symbol string
				Side   string
				Reason string
			}{b.ID, b.Type, b.Pair, fire.Side, fire.Reason})
		}
		pending = append(pending, dispatch{bot: b, fire: *fire})
	}

	if len(updated) > 0 {
		if err := l.repo.CommitCycle(ctx, l.typ, updated); err != nil {
			log.Printf("%s loop: commit cycle: %v", l.typ, err)
		}
	}

	// Dispatches run after the batch commit so their counter updates are
	// never overwritten by this cycle's write-back.
	for _, d := range pending {
		l.startDispatch(ctx, d, prices)
	}
}

type dispatch struct {
	bot  bots.Bot
	fire strategy.Fire
}

func (l *Loop) dispatchPending(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight[id]
}

// startDispatch hands one fire to the router on a goroutine so a slow or
// stalled venue call never holds up the cycle guard.
func (l *Loop) startDispatch(ctx context.Context, d dispatch, prices map[string]float64) {
	l.mu.Lock()
	l.inFlight[d.bot.ID] = true
	l.mu.Unlock()

	go func() {
		defer func() {
			l.mu.Lock()
			delete(l.inFlight, d.bot.ID)
			l.mu.Unlock()
		}()

		b := d.bot
		in := intentFor(b, d.fire)
		res := l.router.Execute(ctx, &b, in, prices)
		if !res.Success {
			log.Printf("%s loop: dispatch %s %s for bot %s failed: %v",
				l.typ, in.Side, in.Symbol, b.ID, res.Err)
			return
		}

		if b.Status == bots.StatusWaiting {
			_ = b.Transition(bots.StatusActive)
		}
		if err := l.repo.Update(ctx, b); err != nil {
			log.Printf("%s loop: persist counters for %s: %v", l.typ, b.ID, err)
		}
	}()
}

// intentFor maps a fire decision onto the bot's configured sizing.
func intentFor(b bots.Bot, f strategy.Fire) order.Intent {
	qty := f.Qty
	if qty <= 0 {
		qty = b.OrderQty
	}
	orderType := "MARKET"
	if f.Price > 0 {
		orderType = "LIMIT"
	}
	account := b.AccountID
	if account == "" {
		account = "default"
	}
	return order.Intent{
		UserID:     b.UserID,
		AccountID:  account,
		Symbol:     b.Pair,
		Side:       f.Side,
		OrderType:  orderType,
		Qty:        qty,
		Price:      f.Price,
		Leverage:   b.Leverage,
		TakeProfit: b.TakeProfit,
		StopLoss:   b.StopLoss,
		MarketType: b.MarketType,
		Reason:     f.Reason,
	}
}

// reconcile subscribes any streams newly needed by eligible bots. The
// multiplexer refcounts, so repeated subscribes are cheap; this loop only
// wires each stream once.
func (l *Loop) reconcile(list []bots.Bot) {
	var need []string
	for _, b := range list {
		if !b.Eligible() {
			continue
		}
		for _, s := range []string{feed.KlineStream(b.Pair, b.Timeframe), feed.TickerStream(b.Pair)} {
			if !l.subscribed[s] {
				need = append(need, s)
				l.subscribed[s] = true
			}
		}
	}
	if len(need) > 0 {
		l.feed.Subscribe(need)
	}
}
