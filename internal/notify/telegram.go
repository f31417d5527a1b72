// Package notify sends best-effort Telegram messages about session events.
// Failures are logged and swallowed: notifications never gate a transition.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"focuslock/internal/core"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// UserDirectory resolves a user's notification chat
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*core.User, error)
}

// TelegramNotifier implements core.Notifier over the Telegram bot API
type TelegramNotifier struct {
	api    *tgbotapi.BotAPI
	users  UserDirectory
	logger *slog.Logger
}

// NewTelegramNotifier creates a notifier for the given bot token
func NewTelegramNotifier(token string, users UserDirectory, logger *slog.Logger) (*TelegramNotifier, error) {
	if logger == nil {
		logger = slog.Default()
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	return &TelegramNotifier{
		api:    api,
		users:  users,
		logger: logger,
	}, nil
}

// SessionStarted announces a new enforcement run
func (n *TelegramNotifier) SessionStarted(ctx context.Context, userID string, preset *core.Preset, endsAt *time.Time) {
	var text string
	if endsAt != nil {
		text = fmt.Sprintf("🔒 Blocking started: %s (until %s)", preset.Name, endsAt.Format("15:04 Jan 2"))
	} else {
		text = fmt.Sprintf("🔒 Blocking started: %s (no time limit)", preset.Name)
	}
	n.send(ctx, userID, text)
}

// SessionEnded announces an ended enforcement run with its exit reason
func (n *TelegramNotifier) SessionEnded(ctx context.Context, userID string, preset *core.Preset, reason string) {
	n.send(ctx, userID, fmt.Sprintf("🔓 Blocking ended: %s (%s)", preset.Name, reason))
}

// Anomaly reports a self-healed state inconsistency
func (n *TelegramNotifier) Anomaly(ctx context.Context, userID, detail string) {
	n.send(ctx, userID, fmt.Sprintf("⚠️ State repaired: %s", detail))
}

// send delivers one message to the user's chat, if they have one
func (n *TelegramNotifier) send(ctx context.Context, userID, text string) {
	user, err := n.users.GetUser(ctx, userID)
	if err != nil {
		n.logger.Warn("Notification user lookup failed", "user_id", userID, "error", err)
		return
	}
	if user.ChatID == 0 {
		return // no chat registered
	}

	msg := tgbotapi.NewMessage(user.ChatID, text)
	if _, err := n.api.Send(msg); err != nil {
		n.logger.Warn("Failed to send notification",
			"user_id", userID,
			"chat_id", user.ChatID,
			"error", err,
		)
	}
}
