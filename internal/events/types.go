package events

// Event enumerates high-level topics inside the bot engine.
type Event string

const (
	EventCandle         Event = "market.candle"
	EventTicker         Event = "market.ticker"
	EventBotFired       Event = "bot.fired"
	EventBotStateChange Event = "bot.state_change"
	EventGateSuppressed Event = "gate.suppressed"
	EventPanicStop      Event = "engine.panic_stop"
	EventOrderPlaced    Event = "order.placed"
	EventOrderRejected  Event = "order.rejected"
)

// Suppression describes a fire blocked by the safety gate. Published on
// EventGateSuppressed at a throttled rate so slow consumers can still
// observe why a bot is not trading.
type Suppression struct {
	BotID  string `json:"bot_id"`
	Check  string `json:"check"`
	Reason string `json:"reason"`
}
