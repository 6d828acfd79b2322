package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Exchange credentials
	KucoinAPIKey     string
	KucoinAPISecret  string
	KucoinPassphrase string
	KucoinBaseURL    string

	// Universe selection
	Market        string
	QuoteCurrency string
	StatsMaxAge   time.Duration
	AllowList     []string
	DenyList      []string
	ForceList     []string

	// Agent admission thresholds
	MinVolumeQuote decimal.Decimal
	MinPrice       decimal.Decimal
	MinChangeRate  decimal.Decimal

	// Trading
	Timeframe    string
	TickInterval time.Duration
	TradeFunds   decimal.Decimal

	// Oscillator / confirmation windows
	FastPeriod        int
	SlowPeriod        int
	SignalPeriod      int
	UpConfirmations   int
	DownConfirmations int

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	GatewayAddr   string

	// Bot command surface
	TelegramToken      string
	TelegramChatID     string
	TelegramTOTPSecret string

	LogLevel string
}

// Load reads configuration from a .env file (if present) and environment
// variables with sensible defaults. Missing exchange credentials are a
// fatal startup error.
func Load() *Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	return &Config{
		KucoinAPIKey:     mustEnv("KUCOIN_API_KEY"),
		KucoinAPISecret:  mustEnv("KUCOIN_API_SECRET"),
		KucoinPassphrase: mustEnv("KUCOIN_PASSPHRASE"),
		KucoinBaseURL:    getEnv("KUCOIN_BASE_URL", "https://api.kucoin.com"),

		Market:        getEnv("MARKET", "USDS"),
		QuoteCurrency: getEnv("QUOTE_CURRENCY", "USDT"),
		StatsMaxAge:   getDuration("STATS_MAX_AGE", 60*time.Minute),
		AllowList:     getList("ALLOW_LIST"),
		DenyList:      getList("DENY_LIST"),
		ForceList:     getList("FORCE_LIST"),

		MinVolumeQuote: getDecimal("MIN_VOLUME_QUOTE", "100000"),
		MinPrice:       getDecimal("MIN_PRICE", "0.000001"),
		MinChangeRate:  getDecimal("MIN_CHANGE_RATE", "0.05"),

		Timeframe:    getEnv("TIMEFRAME", "15min"),
		TickInterval: getDuration("TICK_INTERVAL", time.Minute),
		TradeFunds:   getDecimal("TRADE_FUNDS", "25"),

		FastPeriod:        getInt("FAST_PERIOD", 12),
		SlowPeriod:        getInt("SLOW_PERIOD", 26),
		SignalPeriod:      getInt("SIGNAL_PERIOD", 9),
		UpConfirmations:   getInt("UP_CONFIRMATIONS", 2),
		DownConfirmations: getInt("DOWN_CONFIRMATIONS", 2),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/orders.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		GatewayAddr:   getEnv("GATEWAY_ADDR", ":8080"),

		TelegramToken:      getEnv("TELEGRAM_TOKEN", ""),
		TelegramChatID:     getEnv("TELEGRAM_CHAT_ID", ""),
		TelegramTOTPSecret: getEnv("TELEGRAM_TOTP_SECRET", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid int for %s: %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("[config] invalid duration for %s: %q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func getDecimal(key, fallback string) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		v = fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		log.Printf("[config] invalid decimal for %s: %q, using %s", key, v, fallback)
		d, _ = decimal.NewFromString(fallback)
	}
	return d
}

// getList parses a comma-separated env var into a slice, skipping empty
// entries.
func getList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
