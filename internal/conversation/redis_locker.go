package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultLockTTL   = 30 * time.Second
	defaultLockWait  = 10 * time.Second
	lockPollInterval = 50 * time.Millisecond
)

// ErrLockTimeout is returned when a sender lock could not be taken before the wait deadline.
var ErrLockTimeout = errors.New("conversation: lock wait exceeded")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serializes turns for a sender across processes with a
// token-guarded SET NX PX lease.
type RedisLocker struct {
	redis *redis.Client
	ttl   time.Duration
	wait  time.Duration
}

var _ Locker = (*RedisLocker)(nil)

// NewRedisLocker builds a locker. Zero durations fall back to 30s lease / 10s wait.
func NewRedisLocker(client *redis.Client, ttl, wait time.Duration) *RedisLocker {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &RedisLocker{redis: client, ttl: ttl, wait: wait}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	lockKey := senderLockKey(key)

	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()
	for {
		ok, err := l.redis.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("conversation: acquire lock: %w", err)
		}
		if ok {
			return l.releaser(lockKey, token), nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) releaser(lockKey, token string) func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.redis, []string{lockKey}, token).Err()
	}
}

func senderLockKey(senderID string) string {
	return fmt.Sprintf("pothole:lock:%s", senderID)
}
