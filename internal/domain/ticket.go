package domain

import (
	"time"

	"github.com/google/uuid"
)

// Ticket is a support conversation opened by a user
type Ticket struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	Subject   string           `json:"subject"`
	Status    string           `json:"status"`
	Messages  []*TicketMessage `json:"messages,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// TicketMessage is one message in a ticket thread
type TicketMessage struct {
	ID        uuid.UUID `json:"id"`
	TicketID  uuid.UUID `json:"ticket_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	IsStaff   bool      `json:"is_staff"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// TicketStatus constants
const (
	TicketOpen     = "open"
	TicketAnswered = "answered"
	TicketClosed   = "closed"
)
