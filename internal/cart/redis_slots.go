package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	pkgredis "github.com/angelmondragon/storefront-cart/pkg/redis"
)

type redisStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartSlotKey(session, slot string) string
}

// RedisSlots stores each slot under its own key with a sliding TTL.
type RedisSlots struct {
	client redisStore
	ttl    time.Duration
}

func NewRedisSlots(client redisStore, ttl time.Duration) (*RedisSlots, error) {
	if client == nil {
		return nil, errors.New("redis client required for cart slots")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisSlots{client: client, ttl: ttl}, nil
}

func (r *RedisSlots) Read(ctx context.Context, session string, slot Slot) (string, bool, error) {
	if !slot.IsValid() {
		return "", false, fmt.Errorf("unknown cart slot %q", slot)
	}
	payload, err := r.client.Get(ctx, r.client.CartSlotKey(session, string(slot)))
	if err != nil {
		if errors.Is(err, pkgredis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read %s: %w", slot, err)
	}
	return payload, true, nil
}

func (r *RedisSlots) Write(ctx context.Context, session string, slot Slot, payload string) error {
	if !slot.IsValid() {
		return fmt.Errorf("unknown cart slot %q", slot)
	}
	if err := r.client.Set(ctx, r.client.CartSlotKey(session, string(slot)), payload, r.ttl); err != nil {
		return fmt.Errorf("write %s: %w", slot, err)
	}
	return nil
}

// Erase deletes each slot key on its own so one failure does not keep the
// other slot alive.
func (r *RedisSlots) Erase(ctx context.Context, session string, slots ...Slot) error {
	var errs error
	for _, slot := range slots {
		if !slot.IsValid() {
			errs = multierr.Append(errs, fmt.Errorf("unknown cart slot %q", slot))
			continue
		}
		if err := r.client.Del(ctx, r.client.CartSlotKey(session, string(slot))); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("erase %s: %w", slot, err))
		}
	}
	return errs
}
