package exchange

import "context"

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType denotes basic order types.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderStatus normalizes venue status into a small set.
type OrderStatus string

const (
	StatusNew      OrderStatus = "NEW"
	StatusFilled   OrderStatus = "FILLED"
	StatusRejected OrderStatus = "REJECTED"
)

// MarketType distinguishes spot vs futures venues.
type MarketType string

const (
	MarketSpot    MarketType = "SPOT"
	MarketFutures MarketType = "FUTURES"
)

// OrderRequest captures an order intent to be sent to a venue.
type OrderRequest struct {
	Symbol     string
	Side       Side
	Type       OrderType
	Qty        float64
	Price      float64 // required for LIMIT; hint for paper fills
	Leverage   int
	TakeProfit float64
	StopLoss   float64
	Market     MarketType
	ClientID   string
}

// OrderAck returns the venue ack. UsedWeight carries the venue's
// cumulative request-weight header for the current window; empty when
// the venue does not report one.
type OrderAck struct {
	OrderID    string
	Status     OrderStatus
	UsedWeight string
}

// KeyCheck reports whether stored credentials are usable.
type KeyCheck struct {
	Valid  bool
	Reason string
}

// Balance reports the free amount of one asset.
type Balance struct {
	Asset     string
	Available float64
}

// Connector abstracts a trading venue. Implementations must be safe for
// concurrent use; every bot loop in the engine shares one connector.
type Connector interface {
	ValidateKeys(ctx context.Context) (KeyCheck, error)
	GetBalance(ctx context.Context, asset string) (Balance, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderAck, error)
}
