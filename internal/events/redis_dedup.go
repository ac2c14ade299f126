package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDeduper remembers event ids in Redis for a bounded window.
type RedisDeduper struct {
	redis *redis.Client
	ttl   time.Duration
}

var _ Deduper = (*RedisDeduper)(nil)

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if client == nil {
		panic("events: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduper{redis: client, ttl: ttl}
}

func (d *RedisDeduper) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	if strings.TrimSpace(eventID) == "" {
		return true, nil
	}
	ok, err := d.redis.SetNX(ctx, dedupKey(provider, eventID), 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ok, nil
}

func dedupKey(provider, eventID string) string {
	return fmt.Sprintf("pothole:processed:%s:%s", provider, eventID)
}
