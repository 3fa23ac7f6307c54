package notifier

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender espelha todos os alertas num chat operacional do
// Telegram. Ignora os tokens (o destino é fixo) e nunca invalida nada.
type TelegramSender struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramSender cria o espelho operacional sobre um bot já autenticado
func NewTelegramSender(api *tgbotapi.BotAPI, chatID int64) *TelegramSender {
	return &TelegramSender{api: api, chatID: chatID}
}

func (s *TelegramSender) Send(_ context.Context, _ []string, title, body string, _ map[string]string) ([]string, error) {
	msg := tgbotapi.NewMessage(s.chatID, fmt.Sprintf("🔔 %s\n%s", title, body))
	if _, err := s.api.Send(msg); err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return nil, nil
}
