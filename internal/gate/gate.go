// Package gate implements the cross-cutting safety checks consulted between
// an evaluator's fire decision and order dispatch. A failing check is not an
// error: it suppresses the fire for the current cycle only.
package gate

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"botfarm-core/internal/bots"
	"botfarm-core/internal/events"
)

// Verdict is the gate's outcome for one fire.
type Verdict struct {
	Allowed bool
	Check   string // name of the failing check, empty when allowed
	Reason  string
}

const (
	CheckGlobalSwitch = "global_switch"
	CheckCooldown     = "cooldown"
	CheckExclusivity  = "one_trade_at_a_time"
	CheckDailyCap     = "daily_cap"
)

// Gate evaluates the safety checks in a fixed order. Suppression
// diagnostics are published on the event bus at a throttled rate, at most
// once per interval per bot, so a bot hammering the gate cannot flood the
// log.
type Gate struct {
	mu       sync.Mutex
	enabled  bool
	bus      *events.Bus
	interval time.Duration
	throttle map[string]*rate.Limiter
}

// New creates a gate. interval throttles per-bot suppression diagnostics;
// zero disables them entirely.
func New(enabled bool, bus *events.Bus, interval time.Duration) *Gate {
	return &Gate{
		enabled:  enabled,
		bus:      bus,
		interval: interval,
		throttle: make(map[string]*rate.Limiter),
	}
}

// SetEnabled flips the global switch.
func (g *Gate) SetEnabled(v bool) {
	g.mu.Lock()
	g.enabled = v
	g.mu.Unlock()
}

// Enabled reports the global switch.
func (g *Gate) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled
}

// Check runs the safety checks against a bot about to dispatch. It mutates
// the bot's daily counter in place when a new calendar day is first
// observed (lazy reset); the caller persists the record either way.
func (g *Gate) Check(b *bots.Bot, now time.Time) Verdict {
	if !g.Enabled() {
		return g.suppress(b, CheckGlobalSwitch, "trading globally disabled")
	}

	if b.CooldownSeconds > 0 && !b.LastOrderTime.IsZero() {
		elapsed := now.Sub(b.LastOrderTime)
		if elapsed < time.Duration(b.CooldownSeconds)*time.Second {
			return g.suppress(b, CheckCooldown,
				fmt.Sprintf("cooldown %ds, %.0fs elapsed", b.CooldownSeconds, elapsed.Seconds()))
		}
	}

	if b.OneTradeAtATime && b.ActiveOrdersCount > 0 {
		return g.suppress(b, CheckExclusivity,
			fmt.Sprintf("%d active orders", b.ActiveOrdersCount))
	}

	// Lazy daily reset: the first check on a new calendar day zeroes the
	// counter, however many cycles ran before it.
	today := now.Format("2006-01-02")
	if b.LastResetDate != today {
		b.DailyTradeCount = 0
		b.LastResetDate = today
	}
	if b.MaxTradesPerDay > 0 && b.DailyTradeCount >= b.MaxTradesPerDay {
		return g.suppress(b, CheckDailyCap,
			fmt.Sprintf("daily cap %d reached", b.MaxTradesPerDay))
	}

	return Verdict{Allowed: true}
}

// Forget drops a deleted bot's throttle state so the map does not grow
// for the lifetime of the engine.
func (g *Gate) Forget(botID string) {
	g.mu.Lock()
	delete(g.throttle, botID)
	g.mu.Unlock()
}

func (g *Gate) suppress(b *bots.Bot, check, reason string) Verdict {
	v := Verdict{Check: check, Reason: reason}
	if g.bus == nil || g.interval <= 0 {
		return v
	}

	g.mu.Lock()
	lim, ok := g.throttle[b.ID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(g.interval), 1)
		g.throttle[b.ID] = lim
	}
	g.mu.Unlock()

	if lim.Allow() {
		g.bus.Publish(events.EventGateSuppressed, events.Suppression{
			BotID:  b.ID,
			Check:  check,
			Reason: reason,
		})
	}
	return v
}
