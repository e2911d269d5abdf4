package notifier

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"sjsage522/webmonitor/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// chatSender is the part of the bot API used for delivery
type chatSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier delivers push alerts as Telegram messages.
// A recipient's device token is the numeric chat id the bot talks to.
type TelegramNotifier struct {
	bot chatSender
}

// NewTelegramNotifier authorizes the bot token
func NewTelegramNotifier(token string) (*TelegramNotifier, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token not configured")
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	bot.Debug = false

	logger.ForNotifier().Info().Str("bot", bot.Self.UserName).Msg("Telegram bot authorized")
	return &TelegramNotifier{bot: bot}, nil
}

// Send posts title and body to the chat identified by deviceToken
func (n *TelegramNotifier) Send(ctx context.Context, deviceToken, title, body string) error {
	deviceToken = strings.TrimSpace(deviceToken)
	if deviceToken == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	chatID, err := strconv.ParseInt(deviceToken, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", deviceToken, err)
	}

	msg := tgbotapi.NewMessage(chatID, title+"\n"+body)
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	logger.ForNotifier().Info().Int64("chat_id", chatID).Msg("Push notification sent")
	return nil
}
