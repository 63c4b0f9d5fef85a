package configs

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViper_Defaults(t *testing.T) {
	cfg := FromViper(newViper())

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.False(t, cfg.IsProduction())
	assert.True(t, decimal.NewFromInt(85).Equal(cfg.Trading.PayoutPercent))
	assert.Equal(t, 60*time.Second, cfg.Trading.MinDuration)
	assert.Equal(t, time.Hour, cfg.Trading.MaxDuration)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.SettlementInterval)
	assert.Contains(t, cfg.Trading.Pairs, "BTC/USDT")
	assert.True(t, decimal.NewFromInt(100).Equal(cfg.Oracle.FallbackPrice))
}

func TestFromViper_Overrides(t *testing.T) {
	v := newViper()
	v.Set("GO_ENV", "production")
	v.Set("TRADE_PAYOUT_PERCENT", "90.5")
	v.Set("SETTLEMENT_INTERVAL", "3s")
	v.Set("TRADING_PAIRS", " btc/usdt , ,eth/usdt")
	v.Set("STARTING_BALANCE", "not-a-number")

	cfg := FromViper(v)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "90.5", cfg.Trading.PayoutPercent.String())
	assert.Equal(t, 3*time.Second, cfg.Scheduler.SettlementInterval)
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, cfg.Trading.Pairs)
	assert.True(t, cfg.Trading.StartingBalance.IsZero())
}

func TestFromViper_EmptyViper(t *testing.T) {
	cfg := FromViper(viper.New())

	assert.True(t, decimal.NewFromInt(85).Equal(cfg.Trading.PayoutPercent))
	assert.Empty(t, cfg.Trading.Pairs)
}
