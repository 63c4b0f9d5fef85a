package http

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"tradedesk/internal/delivery/http/dto"
	"tradedesk/internal/middleware"
	"tradedesk/internal/usecase"
)

// UserHandler handles the signed-in user's profile and wallet
type UserHandler struct {
	accounts *usecase.AccountService
	wallet   *usecase.WalletService
	log      *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(accounts *usecase.AccountService, wallet *usecase.WalletService, log *zap.Logger) *UserHandler {
	return &UserHandler{
		accounts: accounts,
		wallet:   wallet,
		log:      log.Named("user"),
	}
}

// GetMe returns current user details
// GET /api/user/me
func (h *UserHandler) GetMe(c echo.Context) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return UnauthorizedResponse(c, "User not authenticated")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.accounts.GetUser(ctx, userID)
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	return SuccessResponse(c, dto.NewUserOutput(user))
}

// GetWallet returns the balance and recent ledger entries
// GET /api/wallet
func (h *UserHandler) GetWallet(c echo.Context) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return UnauthorizedResponse(c, "User not authenticated")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	wallet, err := h.wallet.GetWallet(ctx, userID, queryLimit(c))
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	return SuccessResponse(c, wallet)
}

// Transfer moves funds to another user by username
// POST /api/wallet/transfer
func (h *UserHandler) Transfer(c echo.Context) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return UnauthorizedResponse(c, "User not authenticated")
	}

	var req dto.TransferRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "Invalid request payload")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	balance, err := h.wallet.Transfer(ctx, userID, req.ToUsername, req.Amount)
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	return SuccessMessageResponse(c, "Transfer completed", map[string]interface{}{
		"balance": balance,
	})
}

// Reconcile compares the stored balance with the ledger
// GET /api/wallet/reconcile
func (h *UserHandler) Reconcile(c echo.Context) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return UnauthorizedResponse(c, "User not authenticated")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	rec, err := h.wallet.Reconcile(ctx, userID)
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	return SuccessResponse(c, rec)
}
