package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"tradedesk/internal/domain"
	"tradedesk/internal/utils"
)

const previewLength = 500

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// NotificationService pushes operator notifications to a Telegram chat
type NotificationService struct {
	bot     sender
	chatID  int64
	enabled bool
	log     *zap.Logger
}

var _ domain.NotificationService = (*NotificationService)(nil)

// NewNotificationService connects to the Bot API. With no token or chat id
// the service is disabled and every send is a no-op.
func NewNotificationService(botToken string, chatID int64, log *zap.Logger) (*NotificationService, error) {
	return newNotificationService(botToken, tgbotapi.APIEndpoint, chatID, log)
}

func newNotificationService(botToken, endpoint string, chatID int64, log *zap.Logger) (*NotificationService, error) {
	s := &NotificationService{chatID: chatID, log: log.Named("telegram")}
	if botToken == "" || chatID == 0 {
		s.log.Info("Telegram notifications disabled")
		return s, nil
	}

	bot, err := tgbotapi.NewBotAPIWithClient(botToken, endpoint, &http.Client{Timeout: 10 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to connect telegram bot: %w", err)
	}

	s.bot = bot
	s.enabled = true
	s.log.Info("Telegram notifications enabled", zap.String("bot", bot.Self.UserName))
	return s, nil
}

// Enabled reports whether messages are actually sent
func (s *NotificationService) Enabled() bool {
	return s.enabled
}

// SendTicketCreated announces a new support ticket
func (s *NotificationService) SendTicketCreated(ctx context.Context, ticket *domain.Ticket, user *domain.User, firstMessage string) error {
	message := fmt.Sprintf(
		"🎫 *NEW SUPPORT TICKET*\n\n"+
			"👤 User: `%s`\n"+
			"📌 Subject: %s\n"+
			"🆔 Ticket: `%s`\n"+
			"🕒 Time: `%s`\n"+
			"━━━━━━━━━━━━━━━━━\n"+
			"%s",
		escape(user.Username),
		escape(ticket.Subject),
		ticket.ID,
		utils.FormatTimestamp(ticket.CreatedAt),
		escape(preview(firstMessage)),
	)
	return s.sendMessage(ctx, message)
}

// SendTicketMessage announces a user reply on an existing ticket
func (s *NotificationService) SendTicketMessage(ctx context.Context, ticket *domain.Ticket, user *domain.User, msg *domain.TicketMessage) error {
	message := fmt.Sprintf(
		"💬 *TICKET REPLY*\n\n"+
			"👤 User: `%s`\n"+
			"📌 Subject: %s\n"+
			"🆔 Ticket: `%s`\n"+
			"🕒 Time: `%s`\n"+
			"━━━━━━━━━━━━━━━━━\n"+
			"%s",
		escape(user.Username),
		escape(ticket.Subject),
		ticket.ID,
		utils.FormatTimestamp(msg.CreatedAt),
		escape(preview(msg.Body)),
	)
	return s.sendMessage(ctx, message)
}

// SendKYCSubmitted announces a KYC submission awaiting review
func (s *NotificationService) SendKYCSubmitted(ctx context.Context, sub *domain.KYCSubmission, user *domain.User) error {
	message := fmt.Sprintf(
		"🪪 *KYC SUBMITTED*\n\n"+
			"👤 User: `%s`\n"+
			"📄 Document: `%s`\n"+
			"🆔 Submission: `%s`\n"+
			"🕒 Time: `%s`",
		escape(user.Username),
		sub.DocumentType,
		sub.ID,
		utils.FormatTimestamp(sub.CreatedAt),
	)
	return s.sendMessage(ctx, message)
}

func (s *NotificationService) sendMessage(ctx context.Context, text string) error {
	if !s.enabled {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(s.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true

	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func preview(s string) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) > previewLength {
		return string(r[:previewLength]) + "…"
	}
	return s
}
