package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tradedesk/internal/domain"
)

const (
	maxSubjectLength = 200
	maxMessageLength = 4000
	notifyTimeout    = 10 * time.Second
)

// SupportService manages support tickets
type SupportService struct {
	ticketRepo domain.TicketRepository
	notifier   domain.NotificationService
	log        *zap.Logger
	now        func() time.Time
}

// NewSupportService creates a new SupportService. notifier may be nil.
func NewSupportService(ticketRepo domain.TicketRepository, notifier domain.NotificationService, log *zap.Logger) *SupportService {
	return &SupportService{
		ticketRepo: ticketRepo,
		notifier:   notifier,
		log:        log.Named("support"),
		now:        time.Now,
	}
}

// notifyAsync runs send detached from the request with its own timeout.
// Errors are logged only.
func notifyAsync(log *zap.Logger, what string, send func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := send(ctx); err != nil {
			log.Warn("Notification failed", zap.String("notification", what), zap.Error(err))
		}
	}()
}

func validBody(field, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", domain.NewValidationError("%s is required", field)
	}
	if len(s) > max {
		return "", domain.NewValidationError("%s must be at most %d characters", field, max)
	}
	return s, nil
}

// CreateTicket opens a ticket with its first message
func (ss *SupportService) CreateTicket(ctx context.Context, user *domain.User, subject, message string) (*domain.Ticket, error) {
	subject, err := validBody("subject", subject, maxSubjectLength)
	if err != nil {
		return nil, err
	}
	message, err = validBody("message", message, maxMessageLength)
	if err != nil {
		return nil, err
	}

	now := ss.now()
	ticket := &domain.Ticket{
		ID:        uuid.New(),
		UserID:    user.ID,
		Subject:   subject,
		Status:    domain.TicketOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	ticket.Messages = []*domain.TicketMessage{{
		ID:        uuid.New(),
		TicketID:  ticket.ID,
		SenderID:  user.ID,
		IsStaff:   false,
		Body:      message,
		CreatedAt: now,
	}}

	if err := ss.ticketRepo.Save(ctx, ticket); err != nil {
		return nil, domain.NewDependencyError("failed to create ticket", err)
	}

	ss.log.Info("Ticket created", zap.String("ticket_id", ticket.ID.String()), zap.String("user_id", user.ID.String()))

	if ss.notifier != nil {
		notifyAsync(ss.log, "ticket_created", func(ctx context.Context) error {
			return ss.notifier.SendTicketCreated(ctx, ticket, user, message)
		})
	}

	return ticket, nil
}

// ListTickets returns the user's tickets, most recently active first
func (ss *SupportService) ListTickets(ctx context.Context, userID uuid.UUID) ([]*domain.Ticket, error) {
	tickets, err := ss.ticketRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, domain.NewDependencyError("failed to list tickets", err)
	}
	return tickets, nil
}

// ListAll returns tickets with status, or all tickets for an empty status
func (ss *SupportService) ListAll(ctx context.Context, status string, limit int) ([]*domain.Ticket, error) {
	switch status {
	case "", domain.TicketOpen, domain.TicketAnswered, domain.TicketClosed:
	default:
		return nil, domain.NewValidationError("status must be open, answered or closed")
	}

	tickets, err := ss.ticketRepo.GetByStatus(ctx, status, limit)
	if err != nil {
		return nil, domain.NewDependencyError("failed to list tickets", err)
	}
	return tickets, nil
}

// GetTicket returns a ticket with its messages if actor owns it or is staff
func (ss *SupportService) GetTicket(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.Ticket, error) {
	ticket, err := ss.ticketRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFoundError("ticket")
		}
		return nil, domain.NewDependencyError("failed to load ticket", err)
	}
	if ticket.UserID != actor.ID && !actor.IsStaff() {
		return nil, domain.NewForbiddenError("not your ticket")
	}
	return ticket, nil
}

// AddMessage appends a reply. Staff replies mark the ticket answered and user
// replies reopen it.
func (ss *SupportService) AddMessage(ctx context.Context, actor *domain.User, ticketID uuid.UUID, body string) (*domain.TicketMessage, error) {
	body, err := validBody("message", body, maxMessageLength)
	if err != nil {
		return nil, err
	}

	ticket, err := ss.GetTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == domain.TicketClosed {
		return nil, domain.NewValidationError("ticket is closed")
	}

	fromStaff := actor.IsStaff() && actor.ID != ticket.UserID
	msg := &domain.TicketMessage{
		ID:        uuid.New(),
		TicketID:  ticket.ID,
		SenderID:  actor.ID,
		IsStaff:   fromStaff,
		Body:      body,
		CreatedAt: ss.now(),
	}
	if err := ss.ticketRepo.AddMessage(ctx, msg); err != nil {
		return nil, domain.NewDependencyError("failed to add message", err)
	}

	status := domain.TicketOpen
	if fromStaff {
		status = domain.TicketAnswered
	}
	if status != ticket.Status {
		if err := ss.ticketRepo.UpdateStatus(ctx, ticket.ID, status); err != nil {
			ss.log.Warn("Failed to update ticket status", zap.String("ticket_id", ticket.ID.String()), zap.Error(err))
		}
		ticket.Status = status
	}

	if !fromStaff && ss.notifier != nil {
		notifyAsync(ss.log, "ticket_message", func(ctx context.Context) error {
			return ss.notifier.SendTicketMessage(ctx, ticket, actor, msg)
		})
	}

	return msg, nil
}

// Close marks a ticket closed
func (ss *SupportService) Close(ctx context.Context, id uuid.UUID) error {
	if err := ss.ticketRepo.UpdateStatus(ctx, id, domain.TicketClosed); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewNotFoundError("ticket")
		}
		return domain.NewDependencyError("failed to close ticket", err)
	}
	ss.log.Info("Ticket closed", zap.String("ticket_id", id.String()))
	return nil
}
