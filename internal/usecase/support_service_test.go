package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"tradedesk/internal/domain"
	"tradedesk/internal/repository/memory"
)

func newSupport(t *testing.T) (*SupportService, *recordingNotifier) {
	t.Helper()
	notifier := &recordingNotifier{}
	return NewSupportService(memory.NewStore().Tickets(), notifier, zaptest.NewLogger(t)), notifier
}

func member(role string) *domain.User {
	return &domain.User{ID: uuid.New(), Username: role + "-" + uuid.NewString()[:4], Role: role, Status: domain.UserStatusActive}
}

func TestCreateTicket_NotifiesAfterWrite(t *testing.T) {
	support, notifier := newSupport(t)
	user := member(domain.RoleUser)

	ticket, err := support.CreateTicket(context.Background(), user, " Withdrawal ", "Where is my money?")
	require.NoError(t, err)
	assert.Equal(t, "Withdrawal", ticket.Subject)
	assert.Equal(t, domain.TicketOpen, ticket.Status)

	assert.Eventually(t, func() bool {
		return len(notifier.Events()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"ticket_created"}, notifier.Events())

	got, err := support.GetTicket(context.Background(), user, ticket.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "Where is my money?", got.Messages[0].Body)
}

func TestCreateTicket_Validation(t *testing.T) {
	support, _ := newSupport(t)
	user := member(domain.RoleUser)

	_, err := support.CreateTicket(context.Background(), user, "", "body")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = support.CreateTicket(context.Background(), user, "subject", strings.Repeat("x", maxMessageLength+1))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreateTicket_NotifierFailureIsSwallowed(t *testing.T) {
	support, notifier := newSupport(t)
	notifier.err = errors.New("telegram down")

	_, err := support.CreateTicket(context.Background(), member(domain.RoleUser), "s", "m")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(notifier.Events()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestAddMessage_StatusTransitions(t *testing.T) {
	support, notifier := newSupport(t)
	ctx := context.Background()
	user := member(domain.RoleUser)
	staff := member(domain.RoleAdmin)

	ticket, err := support.CreateTicket(ctx, user, "s", "m")
	require.NoError(t, err)

	reply, err := support.AddMessage(ctx, staff, ticket.ID, "Looking into it")
	require.NoError(t, err)
	assert.True(t, reply.IsStaff)

	got, _ := support.GetTicket(ctx, user, ticket.ID)
	assert.Equal(t, domain.TicketAnswered, got.Status)

	msg, err := support.AddMessage(ctx, user, ticket.ID, "Thanks")
	require.NoError(t, err)
	assert.False(t, msg.IsStaff)

	got, _ = support.GetTicket(ctx, user, ticket.ID)
	assert.Equal(t, domain.TicketOpen, got.Status)
	assert.Len(t, got.Messages, 3)

	assert.Eventually(t, func() bool {
		return len(notifier.Events()) == 2
	}, time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"ticket_created", "ticket_message"}, notifier.Events())
}

func TestTicketAccess(t *testing.T) {
	support, _ := newSupport(t)
	ctx := context.Background()
	owner := member(domain.RoleUser)
	stranger := member(domain.RoleUser)

	ticket, err := support.CreateTicket(ctx, owner, "s", "m")
	require.NoError(t, err)

	_, err = support.GetTicket(ctx, stranger, ticket.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = support.AddMessage(ctx, stranger, ticket.ID, "hi")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = support.GetTicket(ctx, member(domain.RoleMaster), ticket.ID)
	assert.NoError(t, err)

	_, err = support.GetTicket(ctx, owner, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCloseTicket(t *testing.T) {
	support, _ := newSupport(t)
	ctx := context.Background()
	owner := member(domain.RoleUser)

	ticket, err := support.CreateTicket(ctx, owner, "s", "m")
	require.NoError(t, err)
	require.NoError(t, support.Close(ctx, ticket.ID))

	_, err = support.AddMessage(ctx, owner, ticket.ID, "again")
	assert.ErrorIs(t, err, domain.ErrValidation)

	closed, err := support.ListAll(ctx, domain.TicketClosed, 10)
	require.NoError(t, err)
	assert.Len(t, closed, 1)

	_, err = support.ListAll(ctx, "weird", 10)
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.ErrorIs(t, support.Close(ctx, uuid.New()), domain.ErrNotFound)
}
