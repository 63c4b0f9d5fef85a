package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tradedesk/internal/domain"
)

// TicketRepositoryImpl implements the TicketRepository interface
type TicketRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewTicketRepository creates a new TicketRepository
func NewTicketRepository(db *pgxpool.Pool) domain.TicketRepository {
	return &TicketRepositoryImpl{db: db}
}

const ticketColumns = `id, user_id, subject, status, created_at, updated_at`

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	t := &domain.Ticket{}
	err := row.Scan(&t.ID, &t.UserID, &t.Subject, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (r *TicketRepositoryImpl) queryTickets(ctx context.Context, query string, args ...interface{}) ([]*domain.Ticket, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickets: %w", err)
	}
	return tickets, nil
}

// Save creates a ticket together with its initial messages
func (r *TicketRepositoryImpl) Save(ctx context.Context, t *domain.Ticket) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO tickets (id, user_id, subject, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, t.ID, t.UserID, t.Subject, t.Status, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return wrapErr(err, "failed to save ticket")
	}

	for _, m := range t.Messages {
		if _, err := tx.Exec(ctx, insertMessageSQL, m.ID, m.TicketID, m.SenderID, m.IsStaff, m.Body, m.CreatedAt); err != nil {
			return wrapErr(err, "failed to save ticket message")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit ticket: %w", err)
	}
	return nil
}

const insertMessageSQL = `
	INSERT INTO ticket_messages (id, ticket_id, sender_id, is_staff, body, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
`

// AddMessage appends a message to a ticket
func (r *TicketRepositoryImpl) AddMessage(ctx context.Context, m *domain.TicketMessage) error {
	if _, err := r.db.Exec(ctx, insertMessageSQL, m.ID, m.TicketID, m.SenderID, m.IsStaff, m.Body, m.CreatedAt); err != nil {
		return wrapErr(err, "failed to add ticket message")
	}
	return nil
}

// GetByID retrieves a ticket and its messages
func (r *TicketRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	t, err := scanTicket(r.db.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr(err, "failed to get ticket")
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, ticket_id, sender_id, is_staff, body, created_at
		FROM ticket_messages
		WHERE ticket_id = $1
		ORDER BY created_at ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticket messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m := &domain.TicketMessage{}
		if err := rows.Scan(&m.ID, &m.TicketID, &m.SenderID, &m.IsStaff, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ticket message: %w", err)
		}
		t.Messages = append(t.Messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ticket messages: %w", err)
	}
	return t, nil
}

// GetByUserID retrieves a user's tickets, most recently updated first
func (r *TicketRepositoryImpl) GetByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Ticket, error) {
	return r.queryTickets(ctx, `SELECT `+ticketColumns+`
		FROM tickets
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`, userID)
}

// GetByStatus retrieves tickets in a status. An empty status returns all.
func (r *TicketRepositoryImpl) GetByStatus(ctx context.Context, status string, limit int) ([]*domain.Ticket, error) {
	return r.queryTickets(ctx, `SELECT `+ticketColumns+`
		FROM tickets
		WHERE ($1 = '' OR status = $1)
		ORDER BY updated_at DESC
		LIMIT $2
	`, status, limit)
}

// UpdateStatus updates a ticket's status
func (r *TicketRepositoryImpl) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE tickets SET status = $1, updated_at = NOW() WHERE id = $2
	`, status, id)
	if err != nil {
		return wrapErr(err, "failed to update ticket status")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to update ticket status: %w", domain.ErrNotFound)
	}
	return nil
}
