package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradedesk/internal/domain"
)

// basePrices seeds the simulated feed
var basePrices = map[string]string{
	"BTC/USDT":  "43250",
	"ETH/USDT":  "2580",
	"BNB/USDT":  "315",
	"SOL/USDT":  "98.5",
	"XRP/USDT":  "0.52",
	"ADA/USDT":  "0.48",
	"DOGE/USDT": "0.082",
}

// NormalizePair upper-cases a pair and accepts BTCUSDT, BTC-USDT and BTC/USDT
func NormalizePair(pair string) string {
	p := strings.ToUpper(strings.TrimSpace(pair))
	p = strings.ReplaceAll(p, "-", "/")
	if !strings.Contains(p, "/") && strings.HasSuffix(p, "USDT") && len(p) > 4 {
		p = p[:len(p)-4] + "/USDT"
	}
	return p
}

// SimulatedOracle serves prices from a static table with a bounded random jitter.
// Unknown pairs get the fallback price.
type SimulatedOracle struct {
	mu       sync.Mutex
	base     map[string]decimal.Decimal
	fallback decimal.Decimal
	jitter   float64 // percent, e.g. 0.5 means ±0.5%
	rnd      *rand.Rand
}

// NewSimulatedOracle creates a simulated oracle seeded from the built-in table
func NewSimulatedOracle(fallback decimal.Decimal, jitterPercent float64) *SimulatedOracle {
	base := make(map[string]decimal.Decimal, len(basePrices))
	for pair, p := range basePrices {
		base[pair] = decimal.RequireFromString(p)
	}
	return &SimulatedOracle{
		base:     base,
		fallback: fallback,
		jitter:   jitterPercent,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetBasePrice overrides the base price of a pair
func (o *SimulatedOracle) SetBasePrice(pair string, price decimal.Decimal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.base[NormalizePair(pair)] = price
}

// BasePrice returns the un-jittered price of a pair and whether the pair is known
func (o *SimulatedOracle) BasePrice(pair string) (decimal.Decimal, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.base[NormalizePair(pair)]
	return p, ok
}

// GetPrice returns base × (1 ± jitter)
func (o *SimulatedOracle) GetPrice(_ context.Context, pair string) (decimal.Decimal, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	base, ok := o.base[NormalizePair(pair)]
	if !ok {
		return o.fallback, nil
	}
	if o.jitter <= 0 {
		return base, nil
	}

	factor := 1 + (o.rnd.Float64()*2-1)*o.jitter/100
	return base.Mul(decimal.NewFromFloat(factor)).Round(8), nil
}

// LiveOracle fetches ticker prices from a Binance-compatible REST endpoint
// and defers to a fallback oracle when the feed fails or does not list the pair.
type LiveOracle struct {
	httpClient *http.Client
	baseURL    string
	fallback   domain.PriceOracle
	log        *zap.Logger
}

// NewLiveOracle creates a new LiveOracle
func NewLiveOracle(baseURL string, fallback domain.PriceOracle, log *zap.Logger) *LiveOracle {
	return &LiveOracle{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:  strings.TrimRight(baseURL, "/"),
		fallback: fallback,
		log:      log.Named("live_oracle"),
	}
}

// GetPrice fetches the current price for a pair
func (o *LiveOracle) GetPrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	price, err := o.fetch(ctx, pair)
	if err != nil {
		o.log.Warn("Price feed unavailable, using fallback", zap.String("pair", pair), zap.Error(err))
		return o.fallback.GetPrice(ctx, pair)
	}
	return price, nil
}

func (o *LiveOracle) fetch(ctx context.Context, pair string) (decimal.Decimal, error) {
	symbol := strings.ReplaceAll(NormalizePair(pair), "/", "")
	endpoint := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", o.baseURL, url.QueryEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch price: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("price feed error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	var ticker struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.Unmarshal(body, &ticker); err != nil {
		return decimal.Zero, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	price, err := decimal.NewFromString(ticker.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %q for %s: %w", ticker.Price, symbol, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive price %s for %s", price, symbol)
	}

	return price, nil
}
