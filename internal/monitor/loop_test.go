package monitor

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"botfarm-core/internal/bots"
	"botfarm-core/internal/gate"
	"botfarm-core/internal/market"
	"botfarm-core/internal/order"
	"botfarm-core/pkg/feed"
)

type memStore struct {
	mu   sync.Mutex
	data map[bots.Type][]bots.Bot
}

func newMemStore() *memStore { return &memStore{data: make(map[bots.Type][]bots.Bot)} }

func (s *memStore) GetBots(_ context.Context, typ bots.Type) ([]bots.Bot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bots.Bot(nil), s.data[typ]...), nil
}

func (s *memStore) SaveBots(_ context.Context, typ bots.Type, list []bots.Bot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[typ] = append([]bots.Bot(nil), list...)
	return nil
}

type recordSub struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *recordSub) Subscribe(streams []string) {
	r.mu.Lock()
	r.calls = append(r.calls, streams)
	r.mu.Unlock()
}

type recordDispatch struct {
	mu      sync.Mutex
	intents []order.Intent
	done    chan struct{}
}

func (r *recordDispatch) Execute(_ context.Context, b *bots.Bot, in order.Intent, _ map[string]float64) order.Result {
	r.mu.Lock()
	r.intents = append(r.intents, in)
	r.mu.Unlock()
	b.LastOrderTime = time.Now()
	b.DailyTradeCount++
	b.ActiveOrdersCount++
	if r.done != nil {
		r.done <- struct{}{}
	}
	return order.Result{Success: true, Symbol: in.Symbol}
}

func (r *recordDispatch) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.intents)
}

// momentumBot fires a BUY as soon as price rises 1.0 above the seeded
// reference.
func momentumBot(id string) bots.Bot {
	return bots.Bot{
		ID: id, Type: bots.TypeMomentum, Pair: "BTCUSDT", Timeframe: "1m",
		Mode: bots.ModePaper, Status: bots.StatusWaiting, OrderQty: 1,
		Params: json.RawMessage(`{"threshold":1}`),
		State:  json.RawMessage(`{"ref_price":100}`),
	}
}

func newTestLoop(t *testing.T, store *memStore, seed ...bots.Bot) (*Loop, *bots.Repository, *market.Cache, *recordDispatch) {
	t.Helper()
	ctx := context.Background()
	repo := bots.NewRepository(store, nil)
	if err := repo.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, b := range seed {
		if err := repo.Add(ctx, b); err != nil {
			t.Fatalf("add %s: %v", b.ID, err)
		}
	}
	cache := market.NewCache(0)
	disp := &recordDispatch{done: make(chan struct{}, 8)}
	l := NewLoop(bots.TypeMomentum, time.Second, repo, cache, &recordSub{}, gate.New(true, nil, 0), disp, nil)
	return l, repo, cache, disp
}

func TestCycleFiresGatesAndPersists(t *testing.T) {
	l, repo, cache, disp := newTestLoop(t, newMemStore(), momentumBot("m1"))
	cache.ApplyTicker(feed.Ticker{Symbol: "BTCUSDT", Price: 102})

	l.Cycle(context.Background())

	select {
	case <-disp.done:
	case <-time.After(time.Second):
		t.Fatal("dispatch never ran")
	}
	// the async dispatch persists via repo.Update; give it a moment
	deadline := time.Now().Add(time.Second)
	for {
		b, ok := repo.Get("m1")
		if ok && b.Status == bots.StatusActive && b.DailyTradeCount == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("bot not updated after dispatch: %+v", b)
		}
		time.Sleep(5 * time.Millisecond)
	}

	in := disp.intents[0]
	if in.Side != "BUY" || in.Symbol != "BTCUSDT" || in.Qty != 1 || in.OrderType != "MARKET" {
		t.Fatalf("intent = %+v", in)
	}
}

func TestCycleSkipsWhenPreviousStillRunning(t *testing.T) {
	l, _, cache, disp := newTestLoop(t, newMemStore(), momentumBot("m1"))
	cache.ApplyTicker(feed.Ticker{Symbol: "BTCUSDT", Price: 102})

	l.running.Store(true) // simulate a cycle in progress
	l.Cycle(context.Background())
	if disp.count() != 0 {
		t.Fatal("overlapping cycle was not skipped")
	}

	l.running.Store(false)
	l.Cycle(context.Background())
	if disp.count() != 1 {
		t.Fatalf("dispatches = %d, want 1", disp.count())
	}
}

func TestInFlightBotIsNotReevaluated(t *testing.T) {
	l, _, cache, disp := newTestLoop(t, newMemStore(), momentumBot("m1"))
	cache.ApplyTicker(feed.Ticker{Symbol: "BTCUSDT", Price: 102})

	l.mu.Lock()
	l.inFlight["m1"] = true
	l.mu.Unlock()

	l.Cycle(context.Background())
	if disp.count() != 0 {
		t.Fatal("bot with outstanding dispatch was evaluated")
	}
}

func TestCorruptedParamsForceStopsBotOnly(t *testing.T) {
	bad := momentumBot("bad")
	bad.Params = json.RawMessage(`{"broken`)
	l, repo, cache, disp := newTestLoop(t, newMemStore(), bad, momentumBot("good"))
	cache.ApplyTicker(feed.Ticker{Symbol: "BTCUSDT", Price: 102})

	l.Cycle(context.Background())

	b, _ := repo.Get("bad")
	if b.Status != bots.StatusStopped || !b.Flagged {
		t.Fatalf("corrupted bot not force-stopped: %+v", b)
	}
	select {
	case <-disp.done:
	case <-time.After(time.Second):
		t.Fatal("healthy bot was not dispatched")
	}
	if disp.intents[0].Symbol != "BTCUSDT" {
		t.Fatalf("wrong dispatch: %+v", disp.intents[0])
	}
}

func TestGateSuppressionBlocksDispatch(t *testing.T) {
	b := momentumBot("m1")
	b.OneTradeAtATime = true
	b.ActiveOrdersCount = 1
	l, _, cache, disp := newTestLoop(t, newMemStore(), b)
	cache.ApplyTicker(feed.Ticker{Symbol: "BTCUSDT", Price: 102})

	l.Cycle(context.Background())
	if disp.count() != 0 {
		t.Fatal("suppressed fire was dispatched")
	}
}

func TestReconcileSubscribesEachStreamOnce(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	repo := bots.NewRepository(store, nil)
	_ = repo.Load(ctx)
	if err := repo.Add(ctx, momentumBot("m1")); err != nil {
		t.Fatalf("add: %v", err)
	}

	sub := &recordSub{}
	cache := market.NewCache(0)
	l := NewLoop(bots.TypeMomentum, time.Second, repo, cache, sub, gate.New(true, nil, 0), &recordDispatch{}, nil)

	l.Cycle(ctx)
	l.Cycle(ctx)

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if len(sub.calls) != 1 {
		t.Fatalf("subscribe calls = %d, want 1", len(sub.calls))
	}
	want := map[string]bool{
		feed.KlineStream("BTCUSDT", "1m"): true,
		feed.TickerStream("BTCUSDT"):      true,
	}
	for _, s := range sub.calls[0] {
		if !want[s] {
			t.Fatalf("unexpected stream %q", s)
		}
		delete(want, s)
	}
	if len(want) != 0 {
		t.Fatalf("streams never subscribed: %v", want)
	}
}

func TestPanicStopLeavesNoLiveBotRunning(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	repo := bots.NewRepository(store, nil)
	_ = repo.Load(ctx)

	live := momentumBot("live1")
	live.Mode = bots.ModeLive
	live2 := momentumBot("live2")
	live2.Mode = bots.ModeLive
	paper := momentumBot("paper1")
	for _, b := range []bots.Bot{live, live2, paper} {
		if err := repo.Add(ctx, b); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	if n := repo.PanicStop(ctx); n != 2 {
		t.Fatalf("paused %d bots, want 2", n)
	}

	cache := market.NewCache(0)
	cache.ApplyTicker(feed.Ticker{Symbol: "BTCUSDT", Price: 102})
	disp := &recordDispatch{}
	l := NewLoop(bots.TypeMomentum, time.Second, repo, cache, &recordSub{}, gate.New(true, nil, 0), disp, nil)
	l.Cycle(ctx)

	// only the paper bot is still eligible
	deadline := time.Now().Add(time.Second)
	for disp.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if disp.count() != 1 {
		t.Fatalf("dispatches = %d, want 1 (paper bot only)", disp.count())
	}
	for _, id := range []string{"live1", "live2"} {
		b, _ := repo.Get(id)
		if b.Status != bots.StatusPaused {
			t.Fatalf("%s status = %s, want PAUSED", id, b.Status)
		}
	}
}
