package http

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"tradedesk/internal/delivery/http/dto"
	"tradedesk/internal/middleware"
	"tradedesk/internal/usecase"
)

// SupportHandler handles support tickets and KYC submissions
type SupportHandler struct {
	support *usecase.SupportService
	kyc     *usecase.KYCService
	log     *zap.Logger
}

// NewSupportHandler creates a new SupportHandler
func NewSupportHandler(support *usecase.SupportService, kyc *usecase.KYCService, log *zap.Logger) *SupportHandler {
	return &SupportHandler{
		support: support,
		kyc:     kyc,
		log:     log.Named("support"),
	}
}

// CreateTicket opens a ticket
// POST /api/tickets
func (h *SupportHandler) CreateTicket(c echo.Context) error {
	user, err := middleware.GetUser(c)
	if err != nil {
		return UnauthorizedResponse(c, "User not authenticated")
	}

	var req dto.CreateTicketRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "Invalid request payload")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	ticket, err := h.support.CreateTicket(ctx, user, req.Subject, req.Message)
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	return CreatedResponse(c, ticket)
}

// ListTickets returns the user's tickets
// GET /api/tickets
func (h *SupportHandler) ListTickets(c echo.Context) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return UnauthorizedResponse(c, "User not authenticated")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	tickets, err := h.support.ListTickets(ctx, userID)
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	return SuccessResponse(c, map[string]interface{}{
		"tickets": tickets,
		"count":   len(tickets),
	})
}

// GetTicket returns a ticket with its thread
// GET /api/tickets/:id
func (h *SupportHandler) GetTicket(c echo.Context) error {
	user, err := middleware.GetUser(c)
	if err != nil {
		return UnauthorizedResponse(c, "User not authenticated")
	}

	id, err := pathID(c, "id")
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	ticket, err := h.support.GetTicket(ctx, user, id)
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	return SuccessResponse(c, ticket)
}

// AddMessage replies on a ticket
// POST /api/tickets/:id/messages
func (h *SupportHandler) AddMessage(c echo.Context) error {
	user, err := middleware.GetUser(c)
	if err != nil {
		return UnauthorizedResponse(c, "User not authenticated")
	}

	id, err := pathID(c, "id")
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	var req dto.TicketMessageRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "Invalid request payload")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	msg, err := h.support.AddMessage(ctx, user, id, req.Message)
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	return CreatedResponse(c, msg)
}

// ListAllTickets returns tickets filtered by status
// GET /api/admin/tickets?status=open
func (h *SupportHandler) ListAllTickets(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	tickets, err := h.support.ListAll(ctx, c.QueryParam("status"), queryLimit(c))
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	return SuccessResponse(c, map[string]interface{}{
		"tickets": tickets,
		"count":   len(tickets),
	})
}

// CloseTicket closes a ticket
// POST /api/admin/tickets/:id/close
func (h *SupportHandler) CloseTicket(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.support.Close(ctx, id); err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	return SuccessMessageResponse(c, "Ticket closed", nil)
}

// SubmitKYC stores an identity submission
// POST /api/kyc
func (h *SupportHandler) SubmitKYC(c echo.Context) error {
	user, err := middleware.GetUser(c)
	if err != nil {
		return UnauthorizedResponse(c, "User not authenticated")
	}

	var req dto.KYCSubmitRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "Invalid request payload")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	sub, err := h.kyc.Submit(ctx, user, usecase.KYCInput{
		FullName:       req.FullName,
		DocumentType:   req.DocumentType,
		DocumentNumber: req.DocumentNumber,
		DocumentURL:    req.DocumentURL,
	})
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	return CreatedResponse(c, sub)
}

// ListKYC returns the user's own submissions
// GET /api/kyc
func (h *SupportHandler) ListKYC(c echo.Context) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return UnauthorizedResponse(c, "User not authenticated")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	subs, err := h.kyc.ListOwn(ctx, userID)
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	return SuccessResponse(c, subs)
}

// ListKYCQueue returns submissions by status, pending by default
// GET /api/admin/kyc?status=pending
func (h *SupportHandler) ListKYCQueue(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	subs, err := h.kyc.ListByStatus(ctx, c.QueryParam("status"), queryLimit(c))
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	return SuccessResponse(c, map[string]interface{}{
		"submissions": subs,
		"count":       len(subs),
	})
}

// ReviewKYC approves or rejects a pending submission
// POST /api/admin/kyc/:id/review
func (h *SupportHandler) ReviewKYC(c echo.Context) error {
	reviewerID, err := middleware.GetUserID(c)
	if err != nil {
		return UnauthorizedResponse(c, "User not authenticated")
	}

	id, err := pathID(c, "id")
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	var req dto.KYCReviewRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "Invalid request payload")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	sub, err := h.kyc.Review(ctx, reviewerID, id, req.Approve, req.Note)
	if err != nil {
		return DomainErrorResponse(c, h.log, err, sub)
	}

	return SuccessResponse(c, sub)
}
