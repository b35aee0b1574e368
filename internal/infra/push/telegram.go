package push

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/rejectly/rejectly/internal/domain"
)

// TelegramPrefix marks a device token as a Telegram chat id.
const TelegramPrefix = "tg:"

type telegramSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Telegram delivers pushes as bot messages to tokens of the form
// "tg:<chatID>".
type Telegram struct {
	bot telegramSender
}

var _ domain.PushGateway = (*Telegram)(nil)

// NewTelegram creates a gateway for the bot token. The bot is offline: it
// only sends and never polls for updates.
func NewTelegram(token string) (*Telegram, error) {
	b, err := tele.NewBot(tele.Settings{Token: token, Offline: true})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Telegram{bot: b}, nil
}

// Name implements domain.PushGateway.
func (t *Telegram) Name() string { return "telegram" }

// Send implements domain.PushGateway.
func (t *Telegram) Send(ctx context.Context, msg domain.PushMessage) domain.PushResult {
	if err := ctx.Err(); err != nil {
		return failed(err)
	}
	chatID, err := parseChatID(msg.Token)
	if err != nil {
		return failed(err)
	}
	text := msg.Title
	if msg.Body != "" {
		text += "\n" + msg.Body
	}
	if _, err := t.bot.Send(tele.ChatID(chatID), text); err != nil {
		return unavailable(err)
	}
	return domain.PushResult{Success: true}
}

func parseChatID(token string) (int64, error) {
	if !strings.HasPrefix(token, TelegramPrefix) {
		return 0, fmt.Errorf("not a telegram token: %q", token)
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(token, TelegramPrefix), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad chat id in %q", token)
	}
	return id, nil
}
