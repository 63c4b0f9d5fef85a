package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNormalizePair(t *testing.T) {
	tests := map[string]string{
		"BTC/USDT":  "BTC/USDT",
		"btcusdt":   "BTC/USDT",
		"eth-usdt":  "ETH/USDT",
		" sol/usdt": "SOL/USDT",
		"USDT":      "USDT",
		"EURUSD":    "EURUSD",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePair(in), in)
	}
}

func TestSimulatedOracle_KnownPairWithinJitterBand(t *testing.T) {
	oracle := NewSimulatedOracle(dec("100"), 0.5)
	base, ok := oracle.BasePrice("BTC/USDT")
	require.True(t, ok)

	low := base.Mul(dec("0.995"))
	high := base.Mul(dec("1.005"))
	for i := 0; i < 200; i++ {
		p, err := oracle.GetPrice(context.Background(), "BTCUSDT")
		require.NoError(t, err)
		assert.True(t, p.GreaterThanOrEqual(low.Round(8).Sub(dec("0.00000001"))), "price %s below band", p)
		assert.True(t, p.LessThanOrEqual(high.Round(8).Add(dec("0.00000001"))), "price %s above band", p)
	}
}

func TestSimulatedOracle_UnknownPairReturnsFallback(t *testing.T) {
	oracle := NewSimulatedOracle(dec("100"), 0.5)

	p, err := oracle.GetPrice(context.Background(), "FOO/BAR")
	require.NoError(t, err)
	assert.True(t, p.Equal(dec("100")))
}

func TestSimulatedOracle_SetBasePriceWithoutJitter(t *testing.T) {
	oracle := NewSimulatedOracle(dec("100"), 0)
	oracle.SetBasePrice("xyz-usdt", dec("12.5"))

	p, err := oracle.GetPrice(context.Background(), "XYZ/USDT")
	require.NoError(t, err)
	assert.True(t, p.Equal(dec("12.5")))
}

func TestLiveOracle_FetchesTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		assert.Equal(t, "ETHUSDT", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"ETHUSDT","price":"2612.34000000"}`))
	}))
	defer srv.Close()

	fallback := &stubOracle{price: dec("1")}
	oracle := NewLiveOracle(srv.URL+"/", fallback, zaptest.NewLogger(t))

	p, err := oracle.GetPrice(context.Background(), "ETH/USDT")
	require.NoError(t, err)
	assert.True(t, p.Equal(dec("2612.34")))
	assert.Equal(t, 0, fallback.callCount())
}

func TestLiveOracle_FallsBackOnFeedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer srv.Close()

	fallback := NewSimulatedOracle(dec("100"), 0)
	oracle := NewLiveOracle(srv.URL, fallback, zaptest.NewLogger(t))

	p, err := oracle.GetPrice(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.True(t, p.Equal(dec("43250")))

	p, err = oracle.GetPrice(context.Background(), "NOPE/USDT")
	require.NoError(t, err)
	assert.True(t, p.Equal(dec("100")))
}

func TestLiveOracle_RejectsMalformedPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","price":"0"}`))
	}))
	defer srv.Close()

	fallback := &stubOracle{price: dec("42")}
	oracle := NewLiveOracle(srv.URL, fallback, zaptest.NewLogger(t))

	p, err := oracle.GetPrice(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.True(t, p.Equal(dec("42")))
	assert.Equal(t, 1, fallback.callCount())
}
