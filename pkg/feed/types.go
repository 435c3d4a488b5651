package feed

import (
	"fmt"
	"strings"
)

// Candle represents a single candlestick update from the feed.
type Candle struct {
	Symbol    string
	Interval  string
	OpenTime  int64 // ms
	CloseTime int64 // ms
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	IsFinal   bool // true once the bucket is closed
}

// Ticker holds rolling 24h stats for a symbol; last value wins.
type Ticker struct {
	Symbol  string
	Price   float64
	Change  float64
	Percent float64
	High    float64
	Low     float64
	Volume  float64
	Bid     float64
	Ask     float64
}

// KlineStream returns the stream name for a symbol+interval kline channel.
func KlineStream(symbol, interval string) string {
	return fmt.Sprintf("%s@kline_%s", strings.ToLower(symbol), interval)
}

// TickerStream returns the stream name for a symbol 24h ticker channel.
func TickerStream(symbol string) string {
	return strings.ToLower(symbol) + "@ticker"
}
