package adapter

import "context"

type InlineButton struct {
	Text string
	Data string
	URL  string
}

// TelegramNotifier sends direct messages to users (expiry warnings and the
// Extend/Archive action keyboard).
type TelegramNotifier interface {
	SendMessage(ctx context.Context, telegramID int64, text string) error
	SendButtons(ctx context.Context, telegramID int64, text string, rows [][]InlineButton) error
}
