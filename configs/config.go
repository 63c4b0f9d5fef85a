package configs

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Trading   TradingConfig
	Scheduler SchedulerConfig
	Telegram  TelegramConfig
	Oracle    OracleConfig
	Log       LogConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL      string
	MaxConns int32
}

// RedisConfig holds Redis configuration. An empty URL disables Redis.
type RedisConfig struct {
	URL string
}

// AuthConfig holds token settings
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// TradingConfig holds trade placement limits
type TradingConfig struct {
	PayoutPercent   decimal.Decimal
	MinDuration     time.Duration
	MaxDuration     time.Duration
	StartingBalance decimal.Decimal
	Pairs           []string
}

// SchedulerConfig holds background job intervals
type SchedulerConfig struct {
	SettlementInterval time.Duration
	ArbitrageInterval  time.Duration
}

// TelegramConfig holds the notification bot settings
type TelegramConfig struct {
	BotToken string
	ChatID   int64
	Timezone string
}

// OracleConfig holds price feed settings
type OracleConfig struct {
	FeedURL       string
	FallbackPrice decimal.Decimal
	CacheTTL      time.Duration
	JitterPercent float64
}

// LogConfig holds logger settings
type LogConfig struct {
	Level string
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Load loads configuration from a .env file (if present) and environment variables.
// envLoaded is false when no .env file was found.
func Load() (cfg *Config, envLoaded bool) {
	envLoaded = godotenv.Load() == nil
	return FromViper(newViper()), envLoaded
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("GO_ENV", "development")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DATABASE_MAX_CONNS", 10)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("JWT_SECRET", "default-secret-change-in-production")
	v.SetDefault("JWT_TTL", 24*time.Hour)
	v.SetDefault("TRADE_PAYOUT_PERCENT", "85")
	v.SetDefault("TRADE_MIN_DURATION", 60*time.Second)
	v.SetDefault("TRADE_MAX_DURATION", 3600*time.Second)
	v.SetDefault("STARTING_BALANCE", "0")
	v.SetDefault("TRADING_PAIRS", "BTC/USDT,ETH/USDT,BNB/USDT,SOL/USDT,XRP/USDT,ADA/USDT,DOGE/USDT")
	v.SetDefault("SETTLEMENT_INTERVAL", 10*time.Second)
	v.SetDefault("ARBITRAGE_INTERVAL", 30*time.Second)
	v.SetDefault("TELEGRAM_BOT_TOKEN", "")
	v.SetDefault("TELEGRAM_CHAT_ID", 0)
	v.SetDefault("TZ", "UTC")
	v.SetDefault("PRICE_FEED_URL", "")
	v.SetDefault("FALLBACK_PRICE", "100")
	v.SetDefault("PRICE_CACHE_TTL", 5*time.Second)
	v.SetDefault("PRICE_JITTER_PERCENT", 0.5)
	v.SetDefault("LOG_LEVEL", "info")

	return v
}

// FromViper builds a Config from v. Exposed for tests.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port: v.GetString("PORT"),
			Env:  v.GetString("GO_ENV"),
		},
		Database: DatabaseConfig{
			URL:      v.GetString("DATABASE_URL"),
			MaxConns: v.GetInt32("DATABASE_MAX_CONNS"),
		},
		Redis: RedisConfig{
			URL: v.GetString("REDIS_URL"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("JWT_SECRET"),
			TokenTTL:  v.GetDuration("JWT_TTL"),
		},
		Trading: TradingConfig{
			PayoutPercent:   getDecimal(v, "TRADE_PAYOUT_PERCENT", decimal.NewFromInt(85)),
			MinDuration:     v.GetDuration("TRADE_MIN_DURATION"),
			MaxDuration:     v.GetDuration("TRADE_MAX_DURATION"),
			StartingBalance: getDecimal(v, "STARTING_BALANCE", decimal.Zero),
			Pairs:           splitList(v.GetString("TRADING_PAIRS")),
		},
		Scheduler: SchedulerConfig{
			SettlementInterval: v.GetDuration("SETTLEMENT_INTERVAL"),
			ArbitrageInterval:  v.GetDuration("ARBITRAGE_INTERVAL"),
		},
		Telegram: TelegramConfig{
			BotToken: v.GetString("TELEGRAM_BOT_TOKEN"),
			ChatID:   v.GetInt64("TELEGRAM_CHAT_ID"),
			Timezone: v.GetString("TZ"),
		},
		Oracle: OracleConfig{
			FeedURL:       v.GetString("PRICE_FEED_URL"),
			FallbackPrice: getDecimal(v, "FALLBACK_PRICE", decimal.NewFromInt(100)),
			CacheTTL:      v.GetDuration("PRICE_CACHE_TTL"),
			JitterPercent: v.GetFloat64("PRICE_JITTER_PERCENT"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
	}
}

func getDecimal(v *viper.Viper, key string, def decimal.Decimal) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}
