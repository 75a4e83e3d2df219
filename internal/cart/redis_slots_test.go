package cart

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	pkgredis "github.com/angelmondragon/storefront-cart/pkg/redis"
)

func newRedisSlots(t *testing.T, ttl time.Duration) (*RedisSlots, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })

	slots, err := NewRedisSlots(pkgredis.Wrap(raw), ttl)
	if err != nil {
		t.Fatalf("new redis slots: %v", err)
	}
	return slots, mr
}

func TestRedisSlotsReadMissing(t *testing.T) {
	slots, _ := newRedisSlots(t, time.Hour)
	payload, ok, err := slots.Read(context.Background(), "sess-1", SlotAuthenticated)
	if err != nil || ok || payload != "" {
		t.Fatalf("expected clean miss, got payload=%q ok=%v err=%v", payload, ok, err)
	}
}

func TestRedisSlotsWriteSetsKeyAndTTL(t *testing.T) {
	ctx := context.Background()
	slots, mr := newRedisSlots(t, 2*time.Hour)

	if err := slots.Write(ctx, "sess-1", SlotAuthenticated, "[]"); err != nil {
		t.Fatalf("write: %v", err)
	}
	key := "sf:cart:sess-1:cart_items"
	if !mr.Exists(key) {
		t.Fatalf("expected key %s to exist; keys=%v", key, mr.Keys())
	}
	if ttl := mr.TTL(key); ttl != 2*time.Hour {
		t.Fatalf("expected ttl 2h, got %v", ttl)
	}

	payload, ok, err := slots.Read(ctx, "sess-1", SlotAuthenticated)
	if err != nil || !ok || payload != "[]" {
		t.Fatalf("unexpected read payload=%q ok=%v err=%v", payload, ok, err)
	}

	mr.FastForward(3 * time.Hour)
	if _, ok, _ := slots.Read(ctx, "sess-1", SlotAuthenticated); ok {
		t.Fatalf("expected slot to expire")
	}
}

func TestRedisSlotsEraseBoth(t *testing.T) {
	ctx := context.Background()
	slots, mr := newRedisSlots(t, time.Hour)
	_ = slots.Write(ctx, "sess-1", SlotAuthenticated, "[]")
	_ = slots.Write(ctx, "sess-1", SlotGuest, "[]")
	_ = slots.Write(ctx, "sess-2", SlotGuest, "[]")

	if err := slots.Erase(ctx, "sess-1", SlotAuthenticated, SlotGuest); err != nil {
		t.Fatalf("erase: %v", err)
	}
	if mr.Exists("sf:cart:sess-1:cart_items") || mr.Exists("sf:cart:sess-1:guest_cart") {
		t.Fatalf("expected both slots of sess-1 to be erased")
	}
	if !mr.Exists("sf:cart:sess-2:guest_cart") {
		t.Fatalf("other sessions must be untouched")
	}
}

func TestRedisSlotsRejectUnknownSlot(t *testing.T) {
	ctx := context.Background()
	slots, _ := newRedisSlots(t, time.Hour)
	if _, _, err := slots.Read(ctx, "sess-1", Slot("wishlist")); err == nil {
		t.Fatalf("expected error for unknown slot")
	}
	if err := slots.Write(ctx, "sess-1", Slot("wishlist"), "[]"); err == nil {
		t.Fatalf("expected error for unknown slot")
	}
	if err := slots.Erase(ctx, "sess-1", Slot("wishlist"), SlotGuest); err == nil {
		t.Fatalf("expected error for unknown slot")
	}
}

func TestStoreOverRedisRoundTrip(t *testing.T) {
	ctx := context.Background()
	slots, _ := newRedisSlots(t, time.Hour)

	store := openStore(t, slots)
	if err := store.Add(ctx, product("p-1", "Leche", "10", 50), 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	assertSameLines(t, store.Lines(), openStore(t, slots).Lines())

	store.Clear(ctx)
	if !openStore(t, slots).IsEmpty() {
		t.Fatalf("expected empty cart after clear")
	}
}

func TestStoreOverUnavailableRedis(t *testing.T) {
	slots, mr := newRedisSlots(t, time.Hour)
	mr.SetError("ERR storage offline")

	_, err := Open(context.Background(), slots, "sess-1")
	if pkgerrors.CodeOf(err) != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestNewRedisSlotsRequiresClient(t *testing.T) {
	if _, err := NewRedisSlots(nil, time.Hour); err == nil {
		t.Fatalf("expected error without client")
	}
}
