package redis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/adaptive-engine/internal/domain/shared"
	"github.com/alem-hub/adaptive-engine/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER LOCK
// Lease lock per user: SET NX PX with a random token, released by a script
// that deletes the key only while it still holds our token. The lease bounds
// how long a crashed worker can block a user.
// ══════════════════════════════════════════════════════════════════════════════

// releaseScript deletes KEYS[1] only if it still holds ARGV[1].
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// UserLockConfig tunes lease and polling.
type UserLockConfig struct {
	// Lease is the key TTL; it must exceed the longest critical section.
	Lease time.Duration

	// RetryMin and RetryMax bound the polling interval while waiting.
	RetryMin time.Duration
	RetryMax time.Duration

	// Breaker guards SetNX so an unreachable Redis fails callers fast.
	// Nil gets a default breaker.
	Breaker *circuitbreaker.CircuitBreaker
}

// DefaultUserLockConfig returns default lock configuration.
func DefaultUserLockConfig() UserLockConfig {
	return UserLockConfig{
		Lease:    30 * time.Second,
		RetryMin: 10 * time.Millisecond,
		RetryMax: 200 * time.Millisecond,
	}
}

// UserLock implements command.UserLocker on top of Redis.
type UserLock struct {
	rdb    redis.UniversalClient
	config UserLockConfig
}

// NewUserLock creates a new UserLock.
func NewUserLock(client *Client, config UserLockConfig) *UserLock {
	def := DefaultUserLockConfig()
	if config.Lease <= 0 {
		config.Lease = def.Lease
	}
	if config.RetryMin <= 0 {
		config.RetryMin = def.RetryMin
	}
	if config.RetryMax < config.RetryMin {
		config.RetryMax = max(def.RetryMax, config.RetryMin)
	}
	if config.Breaker == nil {
		config.Breaker = circuitbreaker.New("redis-lock")
	}
	return &UserLock{rdb: client.Redis(), config: config}
}

// Acquire polls until the lock is taken or ctx is done.
func (l *UserLock) Acquire(ctx context.Context, userID string) (func(), error) {
	key := LockKey(userID)
	token := uuid.NewString()
	wait := l.config.RetryMin

	for {
		var ok bool
		err := l.config.Breaker.Execute(ctx, func(ctx context.Context) error {
			var err error
			ok, err = l.rdb.SetNX(ctx, key, token, l.config.Lease).Result()
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, shared.StorageError("redis", "lock.Acquire", err)
		}
		if ok {
			return l.releaser(key, token), nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		wait = nextWait(wait, l.config.RetryMax)
	}
}

// releaser returns an idempotent release func. Release uses its own short
// context so that a cancelled caller still frees the key.
func (l *UserLock) releaser(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			// A failed release leaves the key to expire with its lease.
			_ = releaseScript.Run(ctx, l.rdb, []string{key}, token).Err()
		})
	}
}

func nextWait(cur, limit time.Duration) time.Duration {
	return min(cur*2, limit)
}
