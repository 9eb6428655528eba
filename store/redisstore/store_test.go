package redisstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore/session"
)

type payload struct {
	Theme string `json:"theme"`
	Count int    `json:"count"`
}

func newStoreTest(t *testing.T, cfg Config) (*Store[payload], *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New[payload](rdb, cfg, nil), mr, rdb
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, mr, _ := newStoreTest(t, DefaultConfig())
	ctx := context.Background()
	id := session.NewID()

	if err := store.Save(ctx, id, "user-1", payload{Theme: "dark", Count: 2}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	fields, ok, err := store.Load(ctx, id)
	if err != nil || !ok {
		t.Fatalf("Load = (%v, %v)", ok, err)
	}
	if fields.UserID != "user-1" || fields.Data.Theme != "dark" || fields.Data.Count != 2 {
		t.Fatalf("fields=%+v", fields)
	}
	if ttl := mr.TTL(store.key(id.String())); ttl <= 0 || ttl > 24*time.Hour {
		t.Fatalf("ttl=%v", ttl)
	}

	if _, ok, err := store.Load(ctx, session.NewID()); err != nil || ok {
		t.Fatalf("Load(unknown) = (%v, %v)", ok, err)
	}
}

func TestSaveIsIdempotentAndCounts(t *testing.T) {
	store, _, _ := newStoreTest(t, DefaultConfig())
	ctx := context.Background()
	id := session.NewID()

	for i := 0; i < 3; i++ {
		if err := store.Save(ctx, id, "", payload{}); err != nil {
			t.Fatalf("Save #%d: %v", i, err)
		}
	}
	count, err := store.SessionCount(ctx)
	if err != nil {
		t.Fatalf("SessionCount: %v", err)
	}
	if count != 1 {
		t.Fatalf("count=%d, want 1", count)
	}
}

func TestSaveKeepsCreatedAt(t *testing.T) {
	store, _, rdb := newStoreTest(t, DefaultConfig())
	ctx := context.Background()
	id := session.NewID()
	key := store.key(id.String())

	created := time.Now().Add(-time.Hour).Unix()
	seed, err := encodeRecord(&record{CreatedAt: created, ExpiresAt: created + 3600*24, Payload: []byte("{}")})
	if err != nil {
		t.Fatalf("encodeRecord: %v", err)
	}
	if err := rdb.Set(ctx, key, seed, time.Hour).Err(); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := store.Save(ctx, id, "user-1", payload{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		t.Fatalf("decodeRecord: %v", err)
	}
	if rec.CreatedAt != created {
		t.Fatalf("CreatedAt=%d, want %d", rec.CreatedAt, created)
	}
}

func TestUserIndexFollowsUserID(t *testing.T) {
	store, _, _ := newStoreTest(t, DefaultConfig())
	ctx := context.Background()
	id := session.NewID()

	if err := store.Save(ctx, id, "alice", payload{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, id, "bob", payload{}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	alice, err := store.ActiveSessionIDs(ctx, "alice")
	if err != nil {
		t.Fatalf("ActiveSessionIDs: %v", err)
	}
	if len(alice) != 0 {
		t.Fatalf("alice still indexed: %v", alice)
	}
	bob, err := store.ActiveSessionIDs(ctx, "bob")
	if err != nil {
		t.Fatalf("ActiveSessionIDs: %v", err)
	}
	if len(bob) != 1 || bob[0] != id {
		t.Fatalf("bob=%v", bob)
	}

	if err := store.Save(ctx, id, "", payload{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if bob, _ := store.ActiveSessionIDs(ctx, "bob"); len(bob) != 0 {
		t.Fatal("logout must drop the index entry")
	}
}

func TestIdleExpiry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TTL = time.Minute
	cfg.Sliding = false
	store, mr, _ := newStoreTest(t, cfg)
	ctx := context.Background()
	id := session.NewID()

	if err := store.Save(ctx, id, "", payload{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, ok, err := store.Load(ctx, id); err != nil || ok {
		t.Fatalf("Load after idle expiry = (%v, %v)", ok, err)
	}
}

func TestSlidingExtendsTTL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TTL = time.Minute
	store, mr, _ := newStoreTest(t, cfg)
	ctx := context.Background()
	id := session.NewID()
	key := store.key(id.String())

	if err := store.Save(ctx, id, "", payload{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	mr.FastForward(40 * time.Second)
	if _, ok, err := store.Load(ctx, id); err != nil || !ok {
		t.Fatalf("Load = (%v, %v)", ok, err)
	}
	if ttl := mr.TTL(key); ttl < 50*time.Second {
		t.Fatalf("ttl=%v, want renewed", ttl)
	}
}

func TestAbsoluteLifetimeEvicts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AbsoluteLifetime = time.Hour
	store, _, rdb := newStoreTest(t, cfg)
	ctx := context.Background()
	id := session.NewID()
	key := store.key(id.String())

	old := time.Now().Add(-2 * time.Hour).Unix()
	seed, err := encodeRecord(&record{UserID: "user-1", CreatedAt: old, ExpiresAt: old + 3600, Payload: []byte("{}")})
	if err != nil {
		t.Fatalf("encodeRecord: %v", err)
	}
	if err := rdb.Set(ctx, key, seed, time.Hour).Err(); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := rdb.SAdd(ctx, store.userKey("user-1"), id.String()).Err(); err != nil {
		t.Fatalf("seed index: %v", err)
	}

	if _, ok, err := store.Load(ctx, id); err != nil || ok {
		t.Fatalf("Load = (%v, %v), want evicted", ok, err)
	}
	if n, _ := rdb.Exists(ctx, key).Result(); n != 0 {
		t.Fatal("expired record must be deleted")
	}
	if ids, _ := store.ActiveSessionIDs(ctx, "user-1"); len(ids) != 0 {
		t.Fatal("expired record must leave the index")
	}
}

func TestLoadCorruptRecord(t *testing.T) {
	store, _, rdb := newStoreTest(t, DefaultConfig())
	ctx := context.Background()
	id := session.NewID()

	if err := rdb.Set(ctx, store.key(id.String()), []byte{99, 1, 2}, time.Hour).Err(); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, _, err := store.Load(ctx, id); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("err=%v, want ErrCorruptRecord", err)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	store, _, _ := newStoreTest(t, DefaultConfig())
	ctx := context.Background()
	id := session.NewID()

	if err := store.Save(ctx, id, "user-1", payload{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := store.Delete(ctx, id); err != nil {
			t.Fatalf("Delete #%d: %v", i, err)
		}
	}
	if count, _ := store.SessionCount(ctx); count != 0 {
		t.Fatalf("count=%d, want 0", count)
	}
	if ids, _ := store.ActiveSessionIDs(ctx, "user-1"); len(ids) != 0 {
		t.Fatalf("ids=%v", ids)
	}
}

func TestDeleteAllForUserExcept(t *testing.T) {
	store, _, _ := newStoreTest(t, DefaultConfig())
	ctx := context.Background()

	keep := session.NewID()
	ids := []session.ID{keep, session.NewID(), session.NewID()}
	for _, id := range ids {
		if err := store.Save(ctx, id, "user-1", payload{}); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	other := session.NewID()
	if err := store.Save(ctx, other, "user-2", payload{}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	n, err := store.DeleteAllForUser(ctx, "user-1", keep)
	if err != nil {
		t.Fatalf("DeleteAllForUser: %v", err)
	}
	if n != 2 {
		t.Fatalf("deleted=%d, want 2", n)
	}
	if _, ok, _ := store.Load(ctx, keep); !ok {
		t.Fatal("excepted session must survive")
	}
	for _, id := range ids[1:] {
		if _, ok, _ := store.Load(ctx, id); ok {
			t.Fatal("revoked session still loads")
		}
	}
	if _, ok, _ := store.Load(ctx, other); !ok {
		t.Fatal("other user's session must survive")
	}
	if count, _ := store.SessionCount(ctx); count != 2 {
		t.Fatalf("count=%d, want 2", count)
	}
	remaining, _ := store.ActiveSessionIDs(ctx, "user-1")
	if len(remaining) != 1 || remaining[0] != keep {
		t.Fatalf("remaining=%v", remaining)
	}
}

func TestRedisUnavailable(t *testing.T) {
	store, mr, _ := newStoreTest(t, DefaultConfig())
	mr.Close()
	ctx := context.Background()

	if _, _, err := store.Load(ctx, session.NewID()); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("Load err=%v", err)
	}
	if err := store.Save(ctx, session.NewID(), "", payload{}); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("Save err=%v", err)
	}
	if _, err := store.Ping(ctx); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("Ping err=%v", err)
	}
}
