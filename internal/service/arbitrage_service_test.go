package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"tradedesk/internal/domain"
	"tradedesk/internal/repository/memory"
)

func newArbitrage(t *testing.T) (*ArbitrageService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := NewArbitrageService(store.Arbitrage(), NewSimulatedOracle(dec("100"), 0), zaptest.NewLogger(t))
	return svc, store
}

func validSetting() *domain.ArbitrageSetting {
	return &domain.ArbitrageSetting{
		Name:             "majors",
		MinProfitPercent: dec("0.5"),
		MaxTradeAmount:   dec("1000"),
		Pairs:            []string{"btcusdt", "ETH-USDT"},
		IntervalSeconds:  30,
		IsActive:         true,
	}
}

func TestArbitrage_CreateSettingValidates(t *testing.T) {
	svc, _ := newArbitrage(t)

	bad := validSetting()
	bad.Pairs = nil
	_, err := svc.CreateSetting(context.Background(), bad)
	assert.ErrorIs(t, err, domain.ErrValidation)

	created, err := svc.CreateSetting(context.Background(), validSetting())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, created.Pairs)

	_, err = svc.CreateSetting(context.Background(), validSetting())
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestArbitrage_UpdateSetting(t *testing.T) {
	svc, _ := newArbitrage(t)
	created, err := svc.CreateSetting(context.Background(), validSetting())
	require.NoError(t, err)

	update := validSetting()
	update.IsActive = false
	update.IntervalSeconds = 60
	updated, err := svc.UpdateSetting(context.Background(), created.ID, update)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, 60, updated.IntervalSeconds)

	_, err = svc.UpdateSetting(context.Background(), uuid.New(), update)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestArbitrage_GenerateOpportunities(t *testing.T) {
	svc, _ := newArbitrage(t)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	setting, err := svc.CreateSetting(context.Background(), validSetting())
	require.NoError(t, err)

	inactive := validSetting()
	inactive.Name = "paused"
	inactive.IsActive = false
	_, err = svc.CreateSetting(context.Background(), inactive)
	require.NoError(t, err)

	n, err := svc.GenerateOpportunities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	trades, err := svc.ListTrades(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	for _, tr := range trades {
		assert.Equal(t, setting.ID, tr.SettingID)
		assert.Equal(t, domain.ArbitragePending, tr.Status)
		assert.NotEqual(t, tr.BuyExchange, tr.SellExchange)
		assert.True(t, tr.ProfitPercent.GreaterThanOrEqual(dec("0.5")))
		assert.True(t, tr.ProfitPercent.LessThanOrEqual(dec("2.5")))
		assert.True(t, tr.SellPrice.GreaterThan(tr.BuyPrice))
		assert.True(t, tr.Amount.LessThanOrEqual(dec("1000")))
	}

	// still inside the setting's 30s interval
	now = now.Add(10 * time.Second)
	n, err = svc.GenerateOpportunities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	now = now.Add(30 * time.Second)
	n, err = svc.GenerateOpportunities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestArbitrage_SettleTradeOnce(t *testing.T) {
	svc, _ := newArbitrage(t)
	_, err := svc.CreateSetting(context.Background(), validSetting())
	require.NoError(t, err)
	_, err = svc.GenerateOpportunities(context.Background())
	require.NoError(t, err)

	trades, err := svc.ListTrades(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	id := trades[0].ID

	_, err = svc.SettleTrade(context.Background(), id, "maybe")
	assert.ErrorIs(t, err, domain.ErrValidation)

	settled, err := svc.SettleTrade(context.Background(), id, domain.ArbitrageProfit)
	require.NoError(t, err)
	assert.Equal(t, domain.ArbitrageProfit, settled.Status)
	require.NotNil(t, settled.SettledAt)

	again, err := svc.SettleTrade(context.Background(), id, domain.ArbitrageLoss)
	assert.ErrorIs(t, err, domain.ErrConflict)
	require.NotNil(t, again)
	assert.Equal(t, domain.ArbitrageProfit, again.Status)

	_, err = svc.SettleTrade(context.Background(), uuid.New(), domain.ArbitrageLoss)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
