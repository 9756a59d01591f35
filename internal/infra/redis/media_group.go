package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// MediaGroupBuffer collects the photo file ids of one Telegram media group.
// Telegram delivers an album as separate updates sharing a media_group_id;
// the buffer keys on it with a short TTL so an album is assembled once and
// abandoned buffers expire on their own.
type MediaGroupBuffer struct {
	cli RedisClient
	ttl time.Duration
	max int
}

func NewMediaGroupBuffer(c RedisClient, ttl time.Duration, maxItems int) *MediaGroupBuffer {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxItems <= 0 {
		maxItems = 10
	}
	return &MediaGroupBuffer{cli: c, ttl: ttl, max: maxItems}
}

func (b *MediaGroupBuffer) key(userID int64, groupID string) string {
	return fmt.Sprintf("mediagroup:%d:%s", userID, groupID)
}

// Append adds one file id and returns the buffered set so far. Items past the
// cap are dropped silently, mirroring the photo limit on an ad.
func (b *MediaGroupBuffer) Append(ctx context.Context, userID int64, groupID, fileID string) ([]string, error) {
	key := b.key(userID, groupID)
	items, err := b.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(items) < b.max {
		items = append(items, fileID)
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	if err := b.cli.Set(ctx, key, raw, b.ttl); err != nil {
		return nil, err
	}
	return items, nil
}

// Take returns the buffered items and clears the buffer.
func (b *MediaGroupBuffer) Take(ctx context.Context, userID int64, groupID string) ([]string, error) {
	key := b.key(userID, groupID)
	items, err := b.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := b.cli.Del(ctx, key); err != nil {
		return nil, err
	}
	return items, nil
}

func (b *MediaGroupBuffer) load(ctx context.Context, key string) ([]string, error) {
	raw, err := b.cli.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, err
	}
	return items, nil
}
