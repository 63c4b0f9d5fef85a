package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"tradedesk/internal/domain"
)

type fakeBotAPI struct {
	mu       sync.Mutex
	texts    []string
	chatIDs  []string
	failSend bool
}

func (f *fakeBotAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":42,"is_bot":true,"first_name":"Desk","username":"desk_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			assert.NoError(t, r.ParseForm())
			f.mu.Lock()
			f.texts = append(f.texts, r.PostForm.Get("text"))
			f.chatIDs = append(f.chatIDs, r.PostForm.Get("chat_id"))
			fail := f.failSend
			f.mu.Unlock()
			if fail {
				_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
				return
			}
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":1700000000,"chat":{"id":-100123,"type":"group"}}}`))
		default:
			http.NotFound(w, r)
		}
	}
}

func newTestService(t *testing.T, api *fakeBotAPI) *NotificationService {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	svc, err := newNotificationService("123:abc", srv.URL+"/bot%s/%s", -100123, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.True(t, svc.Enabled())
	return svc
}

func TestDisabledWithoutCredentials(t *testing.T) {
	svc, err := NewNotificationService("", 0, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, svc.Enabled())

	err = svc.SendTicketCreated(context.Background(), &domain.Ticket{}, &domain.User{}, "hi")
	assert.NoError(t, err)
}

func TestSendTicketCreated(t *testing.T) {
	api := &fakeBotAPI{}
	svc := newTestService(t, api)

	ticket := &domain.Ticket{ID: uuid.New(), Subject: "Deposit_missing", CreatedAt: time.Now()}
	user := &domain.User{Username: "alice_01"}
	require.NoError(t, svc.SendTicketCreated(context.Background(), ticket, user, "where *is* it"))

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.texts, 1)
	assert.Equal(t, "-100123", api.chatIDs[0])
	assert.Contains(t, api.texts[0], "NEW SUPPORT TICKET")
	assert.Contains(t, api.texts[0], ticket.ID.String())
	assert.Contains(t, api.texts[0], `alice\_01`)
	assert.Contains(t, api.texts[0], `where \*is\* it`)
}

func TestSendTicketMessageAndKYC(t *testing.T) {
	api := &fakeBotAPI{}
	svc := newTestService(t, api)
	user := &domain.User{Username: "bob"}

	ticket := &domain.Ticket{ID: uuid.New(), Subject: "s"}
	msg := &domain.TicketMessage{Body: strings.Repeat("a", 600), CreatedAt: time.Now()}
	require.NoError(t, svc.SendTicketMessage(context.Background(), ticket, user, msg))

	sub := &domain.KYCSubmission{ID: uuid.New(), DocumentType: domain.DocumentPassport, CreatedAt: time.Now()}
	require.NoError(t, svc.SendKYCSubmitted(context.Background(), sub, user))

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.texts, 2)
	assert.Contains(t, api.texts[0], "TICKET REPLY")
	assert.Contains(t, api.texts[0], "…")
	assert.Contains(t, api.texts[1], "KYC SUBMITTED")
	assert.Contains(t, api.texts[1], sub.ID.String())
}

func TestSendFailureAndCancelledContext(t *testing.T) {
	api := &fakeBotAPI{failSend: true}
	svc := newTestService(t, api)
	user := &domain.User{Username: "bob"}

	err := svc.SendKYCSubmitted(context.Background(), &domain.KYCSubmission{}, user)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = svc.SendKYCSubmitted(ctx, &domain.KYCSubmission{}, user)
	assert.ErrorIs(t, err, context.Canceled)
}
