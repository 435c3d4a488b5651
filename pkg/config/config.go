package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the bot engine.
type Config struct {
	Port string

	// Market data feed
	FeedURL          string
	FeedMaxReconnect int
	Symbols          []string
	DefaultInterval  string

	// Execution
	PaperTrading    bool
	ConnectorWeight int // request weight budget per minute for live connectors
	OrderTimeout    time.Duration

	// Safety
	TradingEnabled bool // global switch consulted by the safety gate

	// Database
	DBPath string

	// Bot seeding
	BotsFile string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:             getEnv("PORT", "8080"),
		FeedURL:          getEnv("FEED_URL", "wss://stream.binance.com:9443/stream"),
		FeedMaxReconnect: getEnvInt("FEED_MAX_RECONNECT", 10),
		Symbols:          splitAndTrim(getEnv("SYMBOLS", "BTCUSDT,ETHUSDT")),
		DefaultInterval:  getEnv("DEFAULT_INTERVAL", "1m"),
		PaperTrading:     getEnv("PAPER_TRADING", "true") == "true",
		ConnectorWeight:  getEnvInt("CONNECTOR_WEIGHT_PER_MIN", 1200),
		OrderTimeout:     time.Duration(getEnvInt("ORDER_TIMEOUT_MS", 5000)) * time.Millisecond,
		TradingEnabled:   getEnv("TRADING_ENABLED", "true") == "true",
		DBPath:           getEnv("DB_PATH", "./data/botfarm.db"),
		BotsFile:         getEnv("BOTS_FILE", ""),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
