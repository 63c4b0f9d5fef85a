package http

import (
	"context"
	"errors"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"tradedesk/internal/delivery/http/dto"
	"tradedesk/internal/domain"
	"tradedesk/internal/infra"
	"tradedesk/internal/middleware"
	"tradedesk/internal/service"
	"tradedesk/internal/usecase"
)

// JobRunner is a scheduled job that can also be triggered by hand
type JobRunner interface {
	Name() string
	State() string
	RunNow(ctx context.Context) error
}

// AdminHandler handles the admin console
type AdminHandler struct {
	accounts   *usecase.AccountService
	wallet     *usecase.WalletService
	trading    *usecase.TradingService
	settlement *service.SettlementService
	settings   domain.SettingsRepository
	job        JobRunner
	log        *zap.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(
	accounts *usecase.AccountService,
	wallet *usecase.WalletService,
	trading *usecase.TradingService,
	settlement *service.SettlementService,
	settings domain.SettingsRepository,
	job JobRunner,
	log *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		accounts:   accounts,
		wallet:     wallet,
		trading:    trading,
		settlement: settlement,
		settings:   settings,
		job:        job,
		log:        log.Named("admin"),
	}
}

// ListUsers returns every user
// GET /api/admin/users
func (h *AdminHandler) ListUsers(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	users, err := h.accounts.ListUsers(ctx)
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	return SuccessResponse(c, map[string]interface{}{
		"users": dto.NewUserOutputs(users),
		"count": len(users),
	})
}

// UpdateUserStatus activates, suspends or bans a user
// PUT /api/admin/users/:id/status
func (h *AdminHandler) UpdateUserStatus(c echo.Context) error {
	actor, err := middleware.GetUser(c)
	if err != nil {
		return UnauthorizedResponse(c, "User not authenticated")
	}

	id, err := pathID(c, "id")
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	var req dto.UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "Invalid request payload")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.accounts.SetStatus(ctx, actor, id, req.Status); err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	return SuccessMessageResponse(c, "Status updated", map[string]string{
		"user_id": id.String(),
		"status":  req.Status,
	})
}

// AdjustBalance applies a signed manual balance adjustment
// POST /api/admin/users/:id/balance
func (h *AdminHandler) AdjustBalance(c echo.Context) error {
	adminID, err := middleware.GetUserID(c)
	if err != nil {
		return UnauthorizedResponse(c, "User not authenticated")
	}

	id, err := pathID(c, "id")
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	var req dto.AdjustBalanceRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "Invalid request payload")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	entry, err := h.wallet.AdminAdjust(ctx, adminID, id, req.Amount, req.Description)
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	return SuccessResponse(c, entry)
}

// ListTrades returns trades by result, pending by default
// GET /api/admin/trades?status=pending
func (h *AdminHandler) ListTrades(c echo.Context) error {
	status := c.QueryParam("status")
	if status == "" {
		status = domain.ResultPending
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	trades, err := h.trading.ListByResult(ctx, status, queryLimit(c))
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	return SuccessResponse(c, map[string]interface{}{
		"trades": trades,
		"count":  len(trades),
	})
}

// SettleTrade declares a trade won or lost. Winners are credited profit only.
// POST /api/admin/trades/:id/settle
func (h *AdminHandler) SettleTrade(c echo.Context) error {
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

	trade, err := h.settlement.Settle(ctx, id, service.SettleRequest{
		Source: service.SourceAdmin,
		Result: req.Result,
	})
	if err != nil {
		return DomainErrorResponse(c, h.log, err, trade)
	}

	return SuccessResponse(c, trade)
}

// GetStatistics returns the console summary
// GET /api/admin/statistics
func (h *AdminHandler) GetStatistics(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	stats, err := h.accounts.Statistics(ctx)
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	return SuccessResponse(c, stats)
}

// RunSettlement runs one settlement tick now
// POST /api/admin/settlement/run
func (h *AdminHandler) RunSettlement(c echo.Context) error {
	err := h.job.RunNow(c.Request().Context())
	switch {
	case errors.Is(err, infra.ErrJobBusy):
		return SuccessMessageResponse(c, "Settlement already running", map[string]string{
			"job":   h.job.Name(),
			"state": infra.StateRunning,
		})
	case err != nil:
		return DomainErrorResponse(c, h.log, domain.NewDependencyError("settlement run failed", err), nil)
	}

	return SuccessMessageResponse(c, "Settlement run completed", map[string]string{
		"job":   h.job.Name(),
		"state": h.job.State(),
	})
}

// GetSettings returns every system setting
// GET /api/admin/settings
func (h *AdminHandler) GetSettings(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	settings, err := h.settings.GetAll(ctx)
	if err != nil {
		return DomainErrorResponse(c, h.log, domain.NewDependencyError("failed to load settings", err), nil)
	}

	return SuccessResponse(c, settings)
}

// SetPayout sets the payout percentage for new trades
// PUT /api/admin/settings/payout
func (h *AdminHandler) SetPayout(c echo.Context) error {
	var req dto.PayoutRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "Invalid request payload")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.trading.SetPayoutPercentage(ctx, req.Percentage); err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	return SuccessMessageResponse(c, "Payout updated", map[string]interface{}{
		"percentage": req.Percentage,
	})
}
