package http

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"tradedesk/internal/delivery/http/dto"
	"tradedesk/internal/domain"
	"tradedesk/internal/service"
)

// ArbitrageHandler serves the simulated arbitrage feed
type ArbitrageHandler struct {
	arbitrage *service.ArbitrageService
	log       *zap.Logger
}

// NewArbitrageHandler creates a new ArbitrageHandler
func NewArbitrageHandler(arbitrage *service.ArbitrageService, log *zap.Logger) *ArbitrageHandler {
	return &ArbitrageHandler{
		arbitrage: arbitrage,
		log:       log.Named("arbitrage"),
	}
}

func settingFromRequest(r dto.ArbitrageSettingRequest) *domain.ArbitrageSetting {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return &domain.ArbitrageSetting{
		Name:             r.Name,
		MinProfitPercent: r.MinProfitPercent,
		MaxTradeAmount:   r.MaxTradeAmount,
		Pairs:            r.Pairs,
		IntervalSeconds:  r.IntervalSeconds,
		IsActive:         active,
	}
}

// ListTrades returns recent arbitrage opportunities
// GET /api/arbitrage/trades
func (h *ArbitrageHandler) ListTrades(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	trades, err := h.arbitrage.ListTrades(ctx, queryLimit(c))
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	return SuccessResponse(c, map[string]interface{}{
		"trades": trades,
		"count":  len(trades),
	})
}

// ListSettings returns every arbitrage setting
// GET /api/admin/arbitrage/settings
func (h *ArbitrageHandler) ListSettings(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	settings, err := h.arbitrage.ListSettings(ctx)
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	return SuccessResponse(c, map[string]interface{}{
		"settings": settings,
		"count":    len(settings),
	})
}

// CreateSetting adds an arbitrage setting
// POST /api/admin/arbitrage/settings
func (h *ArbitrageHandler) CreateSetting(c echo.Context) error {
	var req dto.ArbitrageSettingRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "Invalid request payload")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	setting, err := h.arbitrage.CreateSetting(ctx, settingFromRequest(req))
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	return CreatedResponse(c, setting)
}

// UpdateSetting replaces an arbitrage setting
// PUT /api/admin/arbitrage/settings/:id
func (h *ArbitrageHandler) UpdateSetting(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	var req dto.ArbitrageSettingRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "Invalid request payload")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	setting, err := h.arbitrage.UpdateSetting(ctx, id, settingFromRequest(req))
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	return SuccessResponse(c, setting)
}

// SettleTrade resolves an arbitrage opportunity as profit or loss
// POST /api/admin/arbitrage/:id/settle
func (h *ArbitrageHandler) SettleTrade(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	var req dto.SettleRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "Invalid request payload")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	trade, err := h.arbitrage.SettleTrade(ctx, id, req.Result)
	if err != nil {
		return DomainErrorResponse(c, h.log, err, trade)
	}

	return SuccessResponse(c, trade)
}
