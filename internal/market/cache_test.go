package market

import (
	"testing"

	"botfarm-core/pkg/feed"
)

func candle(openTime int64, close float64, final bool) feed.Candle {
	return feed.Candle{
		Symbol:    "BTCUSDT",
		Interval:  "1m",
		OpenTime:  openTime,
		CloseTime: openTime + 59_999,
		Close:     close,
		IsFinal:   final,
	}
}

func TestApplyCandleReplaceOrAppend(t *testing.T) {
	c := NewCache(10)

	c.ApplyCandle(candle(1000, 100, false))
	c.ApplyCandle(candle(1000, 101, true))  // same bucket: replace
	c.ApplyCandle(candle(2000, 102, false)) // new bucket: append

	win := c.Candles("BTCUSDT", "1m")
	if len(win) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(win))
	}
	if win[0].Close != 101 || !win[0].IsFinal {
		t.Fatalf("same-bucket update must replace in place: %+v", win[0])
	}
	if win[1].Close != 102 {
		t.Fatalf("unexpected tail candle: %+v", win[1])
	}
}

func TestApplyCandleIdempotentReplay(t *testing.T) {
	c := NewCache(10)

	upd := candle(1000, 100, true)
	c.ApplyCandle(upd)
	c.ApplyCandle(upd) // replayed frame, identical OpenTime

	if got := len(c.Candles("BTCUSDT", "1m")); got != 1 {
		t.Fatalf("replay duplicated the candle: %d entries", got)
	}

	// Out-of-order older frame is dropped entirely.
	c.ApplyCandle(candle(2000, 102, false))
	c.ApplyCandle(candle(1000, 99, true))
	win := c.Candles("BTCUSDT", "1m")
	if len(win) != 2 || win[1].Close != 102 {
		t.Fatalf("stale frame must be dropped, got %+v", win)
	}
}

func TestWindowBound(t *testing.T) {
	c := NewCache(3)
	for i := int64(0); i < 5; i++ {
		c.ApplyCandle(candle(i*1000, float64(i), true))
	}
	win := c.Candles("BTCUSDT", "1m")
	if len(win) != 3 || win[0].Close != 2 {
		t.Fatalf("window not trimmed to oldest-out: %+v", win)
	}
	for i := 1; i < len(win); i++ {
		if win[i].OpenTime <= win[i-1].OpenTime {
			t.Fatal("open times must stay strictly increasing")
		}
	}
}

func TestLastPricePrefersTicker(t *testing.T) {
	c := NewCache(10)
	c.ApplyCandle(candle(1000, 100, true))
	if got := c.LastPrice("BTCUSDT"); got != 100 {
		t.Fatalf("candle fallback price = %v, want 100", got)
	}
	c.ApplyTicker(feed.Ticker{Symbol: "BTCUSDT", Price: 105})
	if got := c.LastPrice("BTCUSDT"); got != 105 {
		t.Fatalf("ticker price = %v, want 105", got)
	}
}
