package exchange

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestPaperFillAdjustsBalanceAndPosition(t *testing.T) {
	p := NewPaperConnector(1000, PaperConfig{})
	ctx := context.Background()

	ack, err := p.PlaceOrder(ctx, OrderRequest{Symbol: "BTCUSDT", Side: SideBuy, Type: OrderTypeMarket, Qty: 2, Price: 100})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if ack.Status != StatusFilled || ack.OrderID == "" {
		t.Fatalf("ack = %+v", ack)
	}

	bal, _ := p.GetBalance(ctx, "USDT")
	if bal.Available != 800 {
		t.Fatalf("balance after buy = %v, want 800", bal.Available)
	}

	// selling the position back restores the balance
	if _, err := p.PlaceOrder(ctx, OrderRequest{Symbol: "BTCUSDT", Side: SideSell, Type: OrderTypeMarket, Qty: 2, Price: 100}); err != nil {
		t.Fatalf("sell: %v", err)
	}
	bal, _ = p.GetBalance(ctx, "USDT")
	if bal.Available != 1000 {
		t.Fatalf("balance after round trip = %v, want 1000", bal.Available)
	}
	if !strings.Contains(p.Snapshot(), "no open positions") {
		t.Fatalf("position not closed: %s", p.Snapshot())
	}
}

func TestPaperRejectsOverdraftAndBadQty(t *testing.T) {
	p := NewPaperConnector(50, PaperConfig{})
	ctx := context.Background()

	ack, err := p.PlaceOrder(ctx, OrderRequest{Symbol: "BTCUSDT", Side: SideBuy, Qty: 1, Price: 100})
	if err == nil || ack.Status != StatusRejected {
		t.Fatalf("overdraft not rejected: ack=%+v err=%v", ack, err)
	}

	ack, err = p.PlaceOrder(ctx, OrderRequest{Symbol: "BTCUSDT", Side: SideBuy, Qty: 0, Price: 100})
	if err == nil || ack.Status != StatusRejected {
		t.Fatalf("zero qty not rejected: ack=%+v err=%v", ack, err)
	}
}

func TestPaperAveragesEntryOnAdd(t *testing.T) {
	p := NewPaperConnector(10000, PaperConfig{})
	ctx := context.Background()

	_, _ = p.PlaceOrder(ctx, OrderRequest{Symbol: "ETHUSDT", Side: SideBuy, Qty: 1, Price: 100})
	_, _ = p.PlaceOrder(ctx, OrderRequest{Symbol: "ETHUSDT", Side: SideBuy, Qty: 1, Price: 90})

	if !strings.Contains(p.Snapshot(), "entry=95.0000") {
		t.Fatalf("entry not averaged: %s", p.Snapshot())
	}
}

func TestPaperHonorsContextDuringLatency(t *testing.T) {
	p := NewPaperConnector(1000, PaperConfig{LatencyMin: time.Second, LatencyMax: 2 * time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.PlaceOrder(ctx, OrderRequest{Symbol: "BTCUSDT", Side: SideBuy, Qty: 1, Price: 10})
	if err != context.DeadlineExceeded {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestWeightLimiterThresholds(t *testing.T) {
	wl := NewWeightLimiter(1000, time.Minute)

	wl.UpdateFromHeader("500")
	if wl.ShouldDelay() {
		t.Fatal("should not delay at 50%")
	}
	wl.UpdateFromHeader("950")
	if !wl.ShouldDelay() {
		t.Fatal("should delay at 95%")
	}
	wl.UpdateFromHeader("not-a-number")
	used, _, _ := wl.Usage()
	if used != 950 {
		t.Fatalf("garbage header changed usage: %d", used)
	}
}

func TestPaperReportsCumulativeUsedWeight(t *testing.T) {
	p := NewPaperConnector(1000, PaperConfig{})
	ctx := context.Background()

	ack, _ := p.PlaceOrder(ctx, OrderRequest{Symbol: "BTCUSDT", Side: SideBuy, Qty: 1, Price: 10})
	if ack.UsedWeight != "1" {
		t.Fatalf("first ack weight = %q, want 1", ack.UsedWeight)
	}
	// rejected requests still burn weight, as on a real venue
	ack, _ = p.PlaceOrder(ctx, OrderRequest{Symbol: "BTCUSDT", Side: SideBuy, Qty: 1000, Price: 100})
	if ack.Status != StatusRejected || ack.UsedWeight != "2" {
		t.Fatalf("rejected ack = %+v, want weight 2", ack)
	}

	wl := NewWeightLimiter(1000, time.Minute)
	wl.UpdateFromHeader(ack.UsedWeight)
	if used, _, _ := wl.Usage(); used != 2 {
		t.Fatalf("limiter usage = %d, want 2", used)
	}
}
