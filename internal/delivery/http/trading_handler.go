package http

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"tradedesk/internal/delivery/http/dto"
	"tradedesk/internal/domain"
	"tradedesk/internal/middleware"
	"tradedesk/internal/service"
	"tradedesk/internal/usecase"
)

// TradingHandler handles trade placement and market quotes
type TradingHandler struct {
	trading *usecase.TradingService
	oracle  domain.PriceOracle
	pairs   []string
	log     *zap.Logger
}

// NewTradingHandler creates a new TradingHandler. pairs are the quoted markets.
func NewTradingHandler(trading *usecase.TradingService, oracle domain.PriceOracle, pairs []string, log *zap.Logger) *TradingHandler {
	return &TradingHandler{
		trading: trading,
		oracle:  oracle,
		pairs:   pairs,
		log:     log.Named("trading"),
	}
}

// PlaceTrade opens a binary-options trade
// POST /api/trading/place
func (h *TradingHandler) PlaceTrade(c echo.Context) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return UnauthorizedResponse(c, "User not authenticated")
	}

	var req dto.PlaceTradeRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "Invalid request payload")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	trade, err := h.trading.PlaceTrade(ctx, userID, usecase.PlaceTradeInput{
		Pair:      req.Pair,
		Direction: req.Direction,
		Amount:    req.Amount,
		Duration:  req.Duration,
	})
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	return CreatedResponse(c, trade)
}

// ListTrades returns the user's trades, newest first
// GET /api/trading
func (h *TradingHandler) ListTrades(c echo.Context) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return UnauthorizedResponse(c, "User not authenticated")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	trades, err := h.trading.ListTrades(ctx, userID, queryLimit(c))
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	return SuccessResponse(c, map[string]interface{}{
		"trades": trades,
		"count":  len(trades),
	})
}

// GetPrices returns current quotes for the configured pairs
// GET /api/trading/prices
func (h *TradingHandler) GetPrices(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	return SuccessResponse(c, service.Quotes(ctx, h.oracle, h.pairs))
}
