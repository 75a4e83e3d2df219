package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgredis "github.com/angelmondragon/storefront-cart/pkg/redis"
)

const defaultInFlightTTL = 30 * time.Second

// Lock marks one checkout as running for a cart session.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Guard hands out the per-session checkout lock.
type Guard interface {
	Lock(session string) Lock
}

type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	CheckoutLockKey(session string) string
}

// RedisGuard implements Guard with SETNX + TTL, so a crashed checkout frees
// the session once the TTL passes.
type RedisGuard struct {
	client redisStore
	ttl    time.Duration
}

func NewRedisGuard(client redisStore, ttl time.Duration) (*RedisGuard, error) {
	if client == nil {
		return nil, errors.New("redis client required for checkout guard")
	}
	if ttl <= 0 {
		ttl = defaultInFlightTTL
	}
	return &RedisGuard{client: client, ttl: ttl}, nil
}

func (g *RedisGuard) Lock(session string) Lock {
	return &redisLock{client: g.client, key: g.client.CheckoutLockKey(session), ttl: g.ttl}
}

type redisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	owner  string
}

func (l *redisLock) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Release frees the lock only if this attempt still owns it.
func (l *redisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	value, err := l.client.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, pkgredis.Nil) {
			return nil
		}
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != l.owner {
		return nil
	}
	if err := l.client.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	l.owner = ""
	return nil
}
