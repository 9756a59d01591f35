package redis

import (
	"context"
	"fmt"
	"time"
)

// Debouncer suppresses duplicate command handling per user with a short
// redis-backed window, so a double-tapped button acts once. State lives in
// redis with a TTL, not in process memory, and survives restarts.
type Debouncer struct {
	cli    RedisClient
	window time.Duration
}

func NewDebouncer(c RedisClient, window time.Duration) *Debouncer {
	if window <= 0 {
		window = 2 * time.Second
	}
	return &Debouncer{cli: c, window: window}
}

// Allow reports whether this user+action pair is seen first within the
// window. Redis errors fail open: a dropped duplicate is better than a
// dropped command.
func (d *Debouncer) Allow(ctx context.Context, userID int64, action string) bool {
	key := fmt.Sprintf("debounce:%d:%s", userID, action)
	ok, err := d.cli.SetNX(ctx, key, 1, d.window)
	if err != nil {
		return true
	}
	return ok
}
