package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a SET NX lock with an owner token and expiry. An expired lock can
// be taken over, so ttl must exceed the longest expected run.
type Lock struct {
	redis *Redis
	key   string
	ttl   time.Duration
}

// NewLock returns a named lock.
func NewLock(r *Redis, name string, ttl time.Duration) *Lock {
	return &Lock{redis: r, key: keyPrefix + "lock:" + name, ttl: ttl}
}

// TryAcquire takes the lock without waiting.
func (l *Lock) TryAcquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	acquired, err := l.redis.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if !acquired {
		return nil, false, nil
	}
	release := func() {
		// The caller's context may already be cancelled at release time.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.redis.client, []string{l.key}, token).Err()
	}
	return release, true, nil
}
