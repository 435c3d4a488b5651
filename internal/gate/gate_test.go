package gate

import (
	"testing"
	"time"

	"botfarm-core/internal/bots"
	"botfarm-core/internal/events"
)

func gateBot() bots.Bot {
	return bots.Bot{
		ID:              "g1",
		Type:            bots.TypeRSI,
		Pair:            "BTCUSDT",
		Timeframe:       "1m",
		Mode:            bots.ModeLive,
		OrderQty:        1,
		CooldownSeconds: 60,
		MaxTradesPerDay: 3,
		OneTradeAtATime: true,
	}
}

func TestGlobalSwitchBlocksEverything(t *testing.T) {
	g := New(false, nil, 0)
	b := gateBot()
	v := g.Check(&b, time.Now())
	if v.Allowed || v.Check != CheckGlobalSwitch {
		t.Fatalf("verdict = %+v, want global_switch suppression", v)
	}

	g.SetEnabled(true)
	if v := g.Check(&b, time.Now()); !v.Allowed {
		t.Fatalf("expected pass after enabling, got %+v", v)
	}
}

func TestCooldown(t *testing.T) {
	g := New(true, nil, 0)
	b := gateBot()
	now := time.Now()

	b.LastOrderTime = now.Add(-30 * time.Second)
	if v := g.Check(&b, now); v.Allowed || v.Check != CheckCooldown {
		t.Fatalf("verdict = %+v, want cooldown suppression", v)
	}

	b.LastOrderTime = now.Add(-61 * time.Second)
	if v := g.Check(&b, now); !v.Allowed {
		t.Fatalf("verdict = %+v, want pass after cooldown elapsed", v)
	}
}

func TestOneTradeAtATime(t *testing.T) {
	g := New(true, nil, 0)
	b := gateBot()
	b.ActiveOrdersCount = 1

	if v := g.Check(&b, time.Now()); v.Allowed || v.Check != CheckExclusivity {
		t.Fatalf("verdict = %+v, want exclusivity suppression", v)
	}

	b.OneTradeAtATime = false
	if v := g.Check(&b, time.Now()); !v.Allowed {
		t.Fatalf("exclusivity must be skippable, got %+v", v)
	}
}

func TestDailyCapLazyReset(t *testing.T) {
	g := New(true, nil, 0)
	b := gateBot()

	day1 := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	b.DailyTradeCount = 3
	b.LastResetDate = day1.Format("2006-01-02")

	if v := g.Check(&b, day1); v.Allowed || v.Check != CheckDailyCap {
		t.Fatalf("verdict = %+v, want daily_cap suppression", v)
	}

	// First observation of the next day resets the counter exactly once,
	// regardless of how many checks ran before the first trigger.
	day2 := day1.Add(2 * time.Hour)
	for i := 0; i < 5; i++ {
		if v := g.Check(&b, day2); !v.Allowed {
			t.Fatalf("check %d on new day: %+v", i, v)
		}
	}
	if b.DailyTradeCount != 0 || b.LastResetDate != day2.Format("2006-01-02") {
		t.Fatalf("counter after reset = %d (%s)", b.DailyTradeCount, b.LastResetDate)
	}

	b.DailyTradeCount = 2
	if v := g.Check(&b, day2); !v.Allowed {
		t.Fatalf("under-cap check must pass, got %+v", v)
	}
	if b.DailyTradeCount != 2 {
		t.Fatal("same-day check must not reset the counter again")
	}
}

func TestSuppressionDiagnosticsAreThrottled(t *testing.T) {
	bus := events.NewBus()
	ch, unsub := bus.Subscribe(events.EventGateSuppressed, 16)
	defer unsub()

	g := New(false, bus, time.Minute)
	b := gateBot()
	now := time.Now()
	for i := 0; i < 10; i++ {
		g.Check(&b, now)
	}

	count := 0
	for {
		select {
		case <-ch:
			count++
			continue
		default:
		}
		break
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 throttled diagnostic, got %d", count)
	}
}

func TestCheckOrder(t *testing.T) {
	// cooldown outranks daily cap: a bot failing both reports cooldown.
	g := New(true, nil, 0)
	b := gateBot()
	now := time.Now()
	b.LastOrderTime = now
	b.DailyTradeCount = 99
	b.LastResetDate = now.Format("2006-01-02")

	if v := g.Check(&b, now); v.Check != CheckCooldown {
		t.Fatalf("check order violated: %+v", v)
	}
}

func TestForgetEvictsThrottleState(t *testing.T) {
	bus := events.NewBus()
	g := New(true, bus, time.Minute)
	b := gateBot()
	b.ActiveOrdersCount = 1

	g.Check(&b, time.Now()) // suppressed, allocates a throttle entry
	g.mu.Lock()
	_, present := g.throttle[b.ID]
	g.mu.Unlock()
	if !present {
		t.Fatal("suppression did not allocate throttle state")
	}

	g.Forget(b.ID)
	g.mu.Lock()
	_, present = g.throttle[b.ID]
	g.mu.Unlock()
	if present {
		t.Fatal("throttle state survived Forget")
	}
}
