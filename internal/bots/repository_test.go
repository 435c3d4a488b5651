package bots

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
)

// memStore keeps collections in memory for repository tests.
type memStore struct {
	mu   sync.Mutex
	data map[Type][]Bot
}

func newMemStore() *memStore { return &memStore{data: make(map[Type][]Bot)} }

func (s *memStore) GetBots(_ context.Context, typ Type) ([]Bot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Bot, len(s.data[typ]))
	copy(out, s.data[typ])
	return out, nil
}

func (s *memStore) SaveBots(_ context.Context, typ Type, list []Bot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Bot, len(list))
	copy(out, list)
	s.data[typ] = out
	return nil
}

func testBot(id string, typ Type, mode Mode) Bot {
	return Bot{
		ID:        id,
		Name:      "bot-" + id,
		Type:      typ,
		Pair:      "BTCUSDT",
		Timeframe: "1m",
		Mode:      mode,
		OrderQty:  0.01,
		Params:    json.RawMessage(`{}`),
	}
}

func TestAddStartsWaiting(t *testing.T) {
	repo := NewRepository(newMemStore(), nil)
	ctx := context.Background()

	if err := repo.Add(ctx, testBot("a", TypeRSI, ModePaper)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	b, ok := repo.Get("a")
	if !ok || b.Status != StatusWaiting {
		t.Fatalf("new bot status = %v, want WAITING", b.Status)
	}

	disabled := testBot("b", TypeRSI, ModePaper)
	disabled.Status = StatusStopped
	if err := repo.Add(ctx, disabled); err != nil {
		t.Fatalf("Add disabled: %v", err)
	}
	b, _ = repo.Get("b")
	if b.Status != StatusStopped {
		t.Fatalf("disabled bot status = %v, want STOPPED", b.Status)
	}
}

func TestAddRejectsInvalidConfig(t *testing.T) {
	repo := NewRepository(newMemStore(), nil)
	bad := testBot("x", TypeRSI, ModePaper)
	bad.OrderQty = 0
	if err := repo.Add(context.Background(), bad); err == nil {
		t.Fatal("invalid config must be rejected at creation time")
	}
}

func TestPanicStopPausesOnlyLiveBots(t *testing.T) {
	repo := NewRepository(newMemStore(), nil)
	ctx := context.Background()

	live := testBot("live", TypeRSI, ModeLive)
	liveActive := testBot("live-active", TypeGrid, ModeLive)
	paper := testBot("paper", TypeDCA, ModePaper)
	stoppedLive := testBot("stopped", TypeMomentum, ModeLive)
	stoppedLive.Status = StatusStopped

	for _, b := range []Bot{live, liveActive, paper, stoppedLive} {
		if err := repo.Add(ctx, b); err != nil {
			t.Fatalf("Add %s: %v", b.ID, err)
		}
	}
	// promote one live bot to ACTIVE first
	b, _ := repo.Get("live-active")
	if err := b.Transition(StatusActive); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := repo.Update(ctx, b); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if n := repo.PanicStop(ctx); n != 2 {
		t.Fatalf("PanicStop paused %d bots, want 2", n)
	}

	for _, id := range []string{"live", "live-active"} {
		b, _ := repo.Get(id)
		if b.Status != StatusPaused {
			t.Fatalf("live bot %s status = %v, want PAUSED", id, b.Status)
		}
	}
	if b, _ := repo.Get("paper"); b.Status != StatusWaiting {
		t.Fatalf("paper bot must keep running, status = %v", b.Status)
	}
	if b, _ := repo.Get("stopped"); b.Status != StatusStopped {
		t.Fatalf("stopped bot must stay stopped, status = %v", b.Status)
	}
}

func TestDeleteRequiresStopped(t *testing.T) {
	repo := NewRepository(newMemStore(), nil)
	ctx := context.Background()

	if err := repo.Add(ctx, testBot("a", TypeRSI, ModePaper)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := repo.Delete(ctx, "a"); err == nil {
		t.Fatal("deleting a WAITING bot must fail")
	}
	if _, err := repo.Toggle(ctx, "a"); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if err := repo.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete after stop: %v", err)
	}
	if _, ok := repo.Get("a"); ok {
		t.Fatal("bot still present after delete")
	}
}

func TestForceStopFlagsBot(t *testing.T) {
	repo := NewRepository(newMemStore(), nil)
	ctx := context.Background()

	if err := repo.Add(ctx, testBot("a", TypeGrid, ModeLive)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := repo.ForceStop(ctx, "a", "negative ladder index"); err != nil {
		t.Fatalf("ForceStop: %v", err)
	}
	b, _ := repo.Get("a")
	if b.Status != StatusStopped || !b.Flagged || b.FlagReason == "" {
		t.Fatalf("force-stopped bot = %+v", b)
	}
}

func TestTransitionTable(t *testing.T) {
	b := testBot("a", TypeRSI, ModePaper)
	b.Status = StatusStopped
	if err := b.Transition(StatusActive); err == nil {
		t.Fatal("STOPPED -> ACTIVE must be illegal")
	}
	steps := []Status{StatusWaiting, StatusActive, StatusPaused, StatusWaiting, StatusStopped}
	for _, s := range steps {
		if err := b.Transition(s); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}
}
