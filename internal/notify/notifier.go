package notify

import (
	"fmt"

	"marketbot/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier pushes user-facing action messages (BUY/SELL, reconcile
// summaries). Delivery is best effort; a failed send is logged and
// forgotten.
type Notifier interface {
	Notifyf(chatID int64, format string, args ...any)
}

// Telegram sends through the bot API.
type Telegram struct {
	bot *tgbot.BotAPI
}

func NewTelegram(token string) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b}, nil
}

func (t *Telegram) Notifyf(chatID int64, format string, args ...any) {
	if t == nil || t.bot == nil || chatID == 0 {
		return
	}
	if _, err := t.bot.Send(tgbot.NewMessage(chatID, fmt.Sprintf(format, args...))); err != nil {
		logger.Warn("[NOTIFY] telegram send failed for chat %d: %v", chatID, err)
	}
}

// Stdout is the fallback when no telegram token is configured.
type Stdout struct{}

func NewStdout() *Stdout { return &Stdout{} }

func (*Stdout) Notifyf(chatID int64, format string, args ...any) {
	logger.Info("[NOTIFY] chat=%d %s", chatID, fmt.Sprintf(format, args...))
}
