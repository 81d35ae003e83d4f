package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"startup-analysis-pipeline/internal/domain/ports/adapter"
)

var _ adapter.OpsNotifier = (*TelegramNotifier)(nil)

// TelegramNotifier pings an operations chat when a job reaches a terminal
// state. Send failures are logged and swallowed: notification is best-effort
// and must never influence queue behavior.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *zerolog.Logger
}

func NewTelegramNotifier(token string, chatID int64, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram notifier: %w", err)
	}
	l := logger.With().Str("component", "TelegramNotifier").Logger()
	return &TelegramNotifier{bot: bot, chatID: chatID, log: &l}, nil
}

func (t *TelegramNotifier) NotifyJobTerminal(_ context.Context, jobKey, status, lastError string) {
	text := fmt.Sprintf("analysis %s: %s", jobKey, status)
	if lastError != "" {
		text += "\n" + lastError
	}
	if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, text)); err != nil {
		t.log.Error().Err(err).Str("job_key", jobKey).Msg("failed to send ops notification")
	}
}
