package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/student-tracker-api/pkg/observability"
)

type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier pushes activity alerts to a parent's Telegram chat.
type TelegramNotifier struct {
	bot    botSender
	logger *zap.Logger
}

// NewTelegramNotifier authenticates the bot token against the Telegram API.
func NewTelegramNotifier(token string, logger *zap.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return newTelegramNotifier(bot, logger), nil
}

func newTelegramNotifier(bot botSender, logger *zap.Logger) *TelegramNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramNotifier{bot: bot, logger: logger}
}

// NotifyActivity sends the alert. Parents without a linked chat are skipped.
func (n *TelegramNotifier) NotifyActivity(ctx context.Context, alert ActivityAlert) error {
	if alert.ParentChatID == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(alert.ParentChatID, FormatActivityAlert(alert))
	if _, err := n.bot.Send(msg); err != nil {
		if isSystemErr(err) {
			observability.CaptureErr(err, map[string]string{"channel": "telegram"})
			return fmt.Errorf("send telegram alert: %w", err)
		}
		n.logger.Warn("telegram alert rejected", zap.Int64("chat_id", alert.ParentChatID), zap.Error(err))
	}
	return nil
}

// isSystemErr separates retryable transport failures from client rejections
// such as a blocked bot or unknown chat.
func isSystemErr(err error) bool {
	s := err.Error()
	for _, marker := range []string{"429", "502", "503", "timeout", "connection reset"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
