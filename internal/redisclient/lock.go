package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("admission lock not acquired")
)

// Locker guards the admission check-and-insert for a single (client, pet)
// pair. Two concurrent admissions for the same pair serialize on the lock;
// admissions for different pairs proceed independently.
type Locker interface {
	WithPairLock(ctx context.Context, clientID, petID uuid.UUID, fn func(ctx context.Context) error) error
}

type redisPairLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPairLocker creates a locker keyed by the (client, pet) pair.
func NewRedisPairLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisPairLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisPairLocker) WithPairLock(ctx context.Context, clientID, petID uuid.UUID, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:admission:%s:%s", clientID.String(), petID.String())
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire admission lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisPairLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release admission lock: %w", err)
	}
	return nil
}
