package oauth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lease extends the refresh critical section across processes.
type Lease interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// RedisLease is a SET NX PX lease with compare-and-delete release.
// The TTL bounds how long a crashed holder can block other processes.
type RedisLease struct {
	Client       *redis.Client
	TTL          time.Duration
	PollInterval time.Duration
	Prefix       string
}

func NewRedisLease(client *redis.Client) *RedisLease {
	return &RedisLease{
		Client:       client,
		TTL:          45 * time.Second,
		PollInterval: 100 * time.Millisecond,
		Prefix:       "fitline:token-refresh:",
	}
}

func (l *RedisLease) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := l.Prefix + key
	holder := uuid.NewString()

	ticker := time.NewTicker(l.PollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.Client.SetNX(ctx, redisKey, holder, l.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("redis setnx %s: %w", redisKey, err)
		}
		if ok {
			return func() {
				rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := releaseScript.Run(rctx, l.Client, []string{redisKey}, holder).Err(); err != nil {
					slog.Warn("Failed to release refresh lease", "key", redisKey, "error", err)
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
