package locking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/portal/internal/shared/application"
)

const (
	defaultKeyPrefix     = "portal:lock:"
	defaultRetryInterval = 25 * time.Millisecond
)

// releaseScript deletes the key only while it still holds our token, so a
// holder whose TTL lapsed cannot release a lock someone else now owns.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisConfig configures RedisLocker.
type RedisConfig struct {
	// TTL bounds how long a crashed holder can keep a key locked. It must
	// exceed the longest critical section.
	TTL time.Duration
	// Wait is how long Acquire keeps retrying.
	Wait time.Duration
	// RetryInterval is the pause between attempts.
	RetryInterval time.Duration
	// KeyPrefix namespaces lock keys.
	KeyPrefix string
}

// RedisLocker serializes callers across processes with SET NX PX.
type RedisLocker struct {
	client redis.UniversalClient
	cfg    RedisConfig
	logger *slog.Logger
}

// NewRedisLocker creates a Redis-backed locker.
func NewRedisLocker(client redis.UniversalClient, cfg RedisConfig, logger *slog.Logger) *RedisLocker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultKeyPrefix
	}
	return &RedisLocker{client: client, cfg: cfg, logger: logger}
}

// Acquire implements application.Locker.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := l.cfg.KeyPrefix + key
	token := uuid.NewString()

	var deadline <-chan time.Time
	if l.cfg.Wait > 0 {
		timer := time.NewTimer(l.cfg.Wait)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.cfg.TTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %w", application.ErrLockTimeout, key, ctx.Err())
			}
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return l.releaser(ctx, redisKey, token), nil
		}

		retry := time.NewTimer(l.cfg.RetryInterval)
		select {
		case <-retry.C:
		case <-deadline:
			retry.Stop()
			return nil, fmt.Errorf("%w: %s", application.ErrLockTimeout, key)
		case <-ctx.Done():
			retry.Stop()
			return nil, fmt.Errorf("%w: %s: %w", application.ErrLockTimeout, key, ctx.Err())
		}
	}
}

func (l *RedisLocker) releaser(ctx context.Context, redisKey, token string) func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true

		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
			l.logger.WarnContext(ctx, "failed to release lock",
				"key", redisKey,
				"error", err,
			)
		}
	}
}
