package adapter

import (
	"context"

	"telegram-classifieds-bot/internal/domain/model"
)

// ChannelPublisher is the hex port for the chat-platform channels an ad is
// published to. Implementations route by ad region/category.
type ChannelPublisher interface {
	// Publish renders the ad and posts it to every configured channel of its
	// region. Returns channel id -> message ids of the posted copies.
	Publish(ctx context.Context, ad *model.Ad) (map[string][]int, error)
	// DeleteMessage removes one posted copy. Deleting an already-deleted
	// message is a no-op, not an error.
	DeleteMessage(ctx context.Context, channelID string, messageID int) bool
	// HasChannels reports whether the region has a configured destination.
	HasChannels(region string) bool
}
