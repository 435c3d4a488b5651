// Package market keeps the shared in-memory view of live market data: a
// bounded candle window per (symbol, interval) plus last-value-wins tickers.
// The feed callbacks are the only writers; monitor loops read snapshots.
package market

import (
	"sync"

	"botfarm-core/pkg/feed"
)

// DefaultWindow bounds how many candles are kept per stream.
const DefaultWindow = 500

type key struct {
	symbol   string
	interval string
}

// Cache is the candle/ticker store shared between the feed and the loops.
type Cache struct {
	mu      sync.RWMutex
	window  int
	candles map[key][]feed.Candle
	tickers map[string]feed.Ticker
}

// NewCache creates a cache with the given per-stream window (0 = default).
func NewCache(window int) *Cache {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Cache{
		window:  window,
		candles: make(map[key][]feed.Candle),
		tickers: make(map[string]feed.Ticker),
	}
}

// ApplyCandle merges a feed update: same OpenTime replaces the last candle,
// a later OpenTime appends, and anything older is dropped so replays cannot
// duplicate entries. Times within a window stay strictly increasing.
func (c *Cache) ApplyCandle(upd feed.Candle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key{upd.Symbol, upd.Interval}
	win := c.candles[k]

	if n := len(win); n > 0 {
		last := win[n-1]
		switch {
		case upd.OpenTime == last.OpenTime:
			win[n-1] = upd
			c.candles[k] = win
			return
		case upd.OpenTime < last.OpenTime:
			return
		}
	}

	win = append(win, upd)
	if len(win) > c.window {
		win = win[len(win)-c.window:]
	}
	c.candles[k] = win
}

// ApplyTicker records the latest ticker for a symbol.
func (c *Cache) ApplyTicker(t feed.Ticker) {
	c.mu.Lock()
	c.tickers[t.Symbol] = t
	c.mu.Unlock()
}

// Candles returns a copy of the current window for symbol+interval.
func (c *Cache) Candles(symbol, interval string) []feed.Candle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	win := c.candles[key{symbol, interval}]
	out := make([]feed.Candle, len(win))
	copy(out, win)
	return out
}

// Closes returns the closing prices of the current window.
func (c *Cache) Closes(symbol, interval string) []float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	win := c.candles[key{symbol, interval}]
	out := make([]float64, len(win))
	for i, k := range win {
		out[i] = k.Close
	}
	return out
}

// Ticker returns the last ticker for a symbol and whether one was seen.
func (c *Cache) Ticker(symbol string) (feed.Ticker, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tickers[symbol]
	return t, ok
}

// LastPrice returns the most recent price for a symbol, preferring the
// ticker and falling back to the latest cached candle close.
func (c *Cache) LastPrice(symbol string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if t, ok := c.tickers[symbol]; ok && t.Price > 0 {
		return t.Price
	}
	var best feed.Candle
	for k, win := range c.candles {
		if k.symbol != symbol || len(win) == 0 {
			continue
		}
		last := win[len(win)-1]
		if last.CloseTime > best.CloseTime {
			best = last
		}
	}
	return best.Close
}

// Prices returns the last known price per symbol for every tracked symbol.
func (c *Cache) Prices() map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]float64, len(c.tickers))
	for sym, t := range c.tickers {
		out[sym] = t.Price
	}
	return out
}
