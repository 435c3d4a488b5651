package store

import "time"

// Order is a persisted, normalized order record.
type Order struct {
	ID         string    `json:"id"`
	BotID      string    `json:"bot_id"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	OrderType  string    `json:"order_type"` // MARKET or LIMIT
	Qty        float64   `json:"qty"`
	Price      float64   `json:"price"`
	Leverage   float64   `json:"leverage"`
	TakeProfit float64   `json:"take_profit"`
	StopLoss   float64   `json:"stop_loss"`
	MarketType string    `json:"market_type"` // SPOT or FUTURES
	Status     string    `json:"status"`
	Mode       string    `json:"mode"` // LIVE or PAPER
	CreatedAt  time.Time `json:"created_at"`
}

// Trade is one append-only trade history row.
type Trade struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	BotID     string    `json:"bot_id"`
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side"`
	Qty       float64   `json:"qty"`
	Price     float64   `json:"price"`
	Fee       float64   `json:"fee"`
	CreatedAt time.Time `json:"created_at"`
}
