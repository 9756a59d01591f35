package telegram

import (
	"context"

	"telegram-classifieds-bot/internal/domain/model"
	"telegram-classifieds-bot/internal/domain/ports/adapter"
)

// Compile-time checks
var (
	_ adapter.ChannelPublisher = (*NoopBot)(nil)
	_ adapter.TelegramNotifier = (*NoopBot)(nil)
)

// NoopBot is a do-nothing publisher/notifier for local runs without a token.
type NoopBot struct{}

func NewNoopBot() *NoopBot { return &NoopBot{} }

func (*NoopBot) Publish(ctx context.Context, ad *model.Ad) (map[string][]int, error) {
	return map[string][]int{"noop": {0}}, nil
}

func (*NoopBot) DeleteMessage(ctx context.Context, channelID string, messageID int) bool {
	return true
}

func (*NoopBot) HasChannels(region string) bool { return true }

func (*NoopBot) SendMessage(ctx context.Context, telegramID int64, text string) error { return nil }

func (*NoopBot) SendButtons(ctx context.Context, telegramID int64, text string, rows [][]adapter.InlineButton) error {
	return nil
}
