package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"botfarm-core/internal/api"
	"botfarm-core/internal/bots"
	"botfarm-core/internal/events"
	"botfarm-core/internal/gate"
	"botfarm-core/internal/market"
	"botfarm-core/internal/monitor"
	"botfarm-core/internal/order"
	"botfarm-core/pkg/config"
	"botfarm-core/pkg/exchange"
	"botfarm-core/pkg/feed"
	"botfarm-core/pkg/store"
)

const buildVersion = "0.3.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	log.Printf("botfarm-core %s starting on port %s", buildVersion, cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core services
	bus := events.NewBus()

	db, err := store.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	defer db.Close()

	// In-memory bot collections seeded from the store
	repo := bots.NewRepository(db, bus)
	if err := repo.Load(ctx); err != nil {
		log.Fatalf("bot load failed: %v", err)
	}
	if cfg.BotsFile != "" {
		if err := bots.SeedFromFile(ctx, repo, cfg.BotsFile); err != nil {
			log.Fatalf("bot seed from %s failed: %v", cfg.BotsFile, err)
		}
	}
	log.Printf("loaded %d bots", len(repo.All()))

	// Market data: one websocket, shared candle/ticker cache
	mux := feed.NewMultiplexer(cfg.FeedURL, cfg.FeedMaxReconnect)
	cache := market.NewCache(0)
	mux.OnKline(cache.ApplyCandle)
	mux.OnTicker(cache.ApplyTicker)
	mux.OnKline(func(c feed.Candle) {
		if c.IsFinal {
			bus.Publish(events.EventCandle, c)
		}
	})
	mux.OnTicker(func(t feed.Ticker) { bus.Publish(events.EventTicker, t) })
	if err := mux.Connect(); err != nil {
		// The multiplexer reconnects on its own; a failed first dial is
		// not fatal, the engine just starts without data.
		log.Printf("feed connect: %v (will retry)", err)
	}
	defer mux.Disconnect()

	// Baseline streams for the configured symbols; bot loops subscribe
	// their own pairs on top of these.
	var streams []string
	for _, sym := range cfg.Symbols {
		streams = append(streams, feed.KlineStream(sym, cfg.DefaultInterval), feed.TickerStream(sym))
	}
	mux.Subscribe(streams)

	// Execution path
	connector := exchange.NewPaperConnector(10000, exchange.PaperConfig{
		FeeRate:     0.0004,
		SlippageBps: 2,
	})
	if !cfg.PaperTrading {
		// Live connectors plug in here; until one is configured the
		// engine refuses to start rather than silently paper-trade.
		log.Fatal("live trading requested but no venue connector is configured")
	}
	if check, err := connector.ValidateKeys(ctx); err != nil || !check.Valid {
		log.Fatalf("connector key check failed: %v %s", err, check.Reason)
	}

	// Recent-activity window served by the API
	eventLog := events.NewLog(bus, 200,
		events.EventBotFired,
		events.EventBotStateChange,
		events.EventGateSuppressed,
		events.EventPanicStop,
		events.EventOrderPlaced,
		events.EventOrderRejected,
	)
	defer eventLog.Close()

	router := order.NewRouter(connector, db, bus, cfg.OrderTimeout)
	router.SetWeightLimiter(exchange.NewWeightLimiter(cfg.ConnectorWeight, time.Minute))
	safety := gate.New(cfg.TradingEnabled, bus, 30*time.Second)

	// One monitor loop per strategy type
	mgr := monitor.NewManager(repo, cache, mux, safety, router, bus, nil)
	mgr.Start(ctx)

	// Management API
	server := api.NewServer(repo, db, safety, bus, mux, api.SystemMeta{
		PaperTrading: cfg.PaperTrading,
		Symbols:      cfg.Symbols,
		Version:      buildVersion,
	})
	server.Events = eventLog
	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("api server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("shutting down")
}
