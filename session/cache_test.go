package session

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/authcore/password"
)

func TestUserCacheEmptyDoesNoIO(t *testing.T) {
	b := newCountingBackend()
	c := NewUserCache[*testUser]("")
	if c.State() != CacheEmpty {
		t.Fatalf("state=%s, want empty", c.State())
	}
	u, ok, err := c.Resolve(context.Background(), b.LoadUser)
	if err != nil || ok || u != nil {
		t.Fatalf("Resolve on empty = (%v, %v, %v)", u, ok, err)
	}
	if b.loadUserCalls != 0 {
		t.Fatalf("loadUserCalls=%d, want 0", b.loadUserCalls)
	}
}

func TestUserCacheAtMostOnce(t *testing.T) {
	b := newCountingBackend()
	b.users["u1"] = &testUser{id: "u1", email: "a@example.com"}
	c := NewUserCache[*testUser]("u1")

	for i := 0; i < 2; i++ {
		u, ok, err := c.Resolve(context.Background(), b.LoadUser)
		if err != nil || !ok || u.id != "u1" {
			t.Fatalf("Resolve #%d = (%v, %v, %v)", i, u, ok, err)
		}
	}
	if b.loadUserCalls != 1 {
		t.Fatalf("loadUserCalls=%d, want 1", b.loadUserCalls)
	}
	if c.State() != CacheResolved {
		t.Fatalf("state=%s, want resolved", c.State())
	}
}

func TestUserCacheInvalidatedBySetID(t *testing.T) {
	b := newCountingBackend()
	b.users["u1"] = &testUser{id: "u1"}
	b.users["u2"] = &testUser{id: "u2"}
	c := NewUserCache[*testUser]("u1")
	ctx := context.Background()

	if _, _, err := c.Resolve(ctx, b.LoadUser); err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if c.SetID("u1") {
		t.Fatal("SetID with the same id must report no change")
	}
	if c.State() != CacheResolved {
		t.Fatal("same id must keep the memoized record")
	}
	if !c.SetID("u2") {
		t.Fatal("SetID with a new id must report a change")
	}
	if c.State() != CachePending {
		t.Fatalf("state=%s, want pending", c.State())
	}
	u, ok, err := c.Resolve(ctx, b.LoadUser)
	if err != nil || !ok || u.id != "u2" {
		t.Fatalf("Resolve after SetID = (%v, %v, %v)", u, ok, err)
	}
	if b.loadUserCalls != 2 {
		t.Fatalf("loadUserCalls=%d, want 2", b.loadUserCalls)
	}
}

func TestUserCacheNotFoundRefetches(t *testing.T) {
	b := newCountingBackend()
	c := NewUserCache[*testUser]("ghost")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, ok, err := c.Resolve(ctx, b.LoadUser)
		if err != nil || ok {
			t.Fatalf("Resolve #%d = (%v, %v)", i, ok, err)
		}
	}
	if b.loadUserCalls != 2 {
		t.Fatalf("loadUserCalls=%d, want 2", b.loadUserCalls)
	}
	if c.State() != CachePending {
		t.Fatalf("state=%s, want pending", c.State())
	}
}

func TestUserCacheErrorKeepsState(t *testing.T) {
	b := newCountingBackend()
	b.failLoadUser = errors.New("backend down")
	c := NewUserCache[*testUser]("u1")

	if _, _, err := c.Resolve(context.Background(), b.LoadUser); err == nil {
		t.Fatal("expected error")
	}
	if c.State() != CachePending {
		t.Fatalf("state=%s, want pending", c.State())
	}
	if id, ok := c.ID(); !ok || id != "u1" {
		t.Fatalf("ID()=(%q,%v)", id, ok)
	}
}

func TestUserCacheSetUserAndClear(t *testing.T) {
	c := NewUserCache[*testUser]("")
	if !c.SetUser(&testUser{id: "u1"}) {
		t.Fatal("SetUser must report a change from empty")
	}
	if c.SetUser(&testUser{id: "u1"}) {
		t.Fatal("SetUser with the same id must report no change")
	}
	if u, ok := c.Cached(); !ok || u.id != "u1" {
		t.Fatal("expected cached record")
	}
	if !c.Clear() {
		t.Fatal("Clear must report a change")
	}
	if c.Clear() {
		t.Fatal("second Clear must be a no-op")
	}
	if c.SetUser(&testUser{}) {
		t.Fatal("SetUser with an empty id on an empty cache must be a no-op")
	}
	if c.State() != CacheEmpty {
		t.Fatalf("state=%s, want empty", c.State())
	}
}

type valueUser struct {
	id     string
	hashed password.Hashed
}

func (u valueUser) UserID() string { return u.id }
func (u valueUser) Email() string  { return u.id + "@example.com" }
func (u valueUser) HashedPassword() (password.Hashed, bool) {
	return u.hashed, !u.hashed.IsZero()
}
func (u *valueUser) SetHashedPassword(h password.Hashed) { u.hashed = h }

func newHash(t *testing.T, raw string) password.Hashed {
	t.Helper()
	valid, err := password.Validate(raw, nil)
	if err != nil {
		t.Fatal(err)
	}
	h, err := testRegistry(t).Hash(valid)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestUserCacheSetHashedPassword(t *testing.T) {
	h := newHash(t, "correct-password-123")

	t.Run("value user with pointer setter", func(t *testing.T) {
		c := NewUserCache[valueUser]("")
		c.SetUser(valueUser{id: "u1"})
		c.setHashedPassword(h)
		u, _ := c.Cached()
		if got, ok := u.HashedPassword(); !ok || got.Encoded() != h.Encoded() {
			t.Fatal("cached value user did not see the new hash")
		}
	})

	t.Run("pointer user", func(t *testing.T) {
		c := NewUserCache[*testUser]("")
		c.SetUser(&testUser{id: "u1"})
		c.setHashedPassword(h)
		u, _ := c.Cached()
		if got, ok := u.HashedPassword(); !ok || got.Encoded() != h.Encoded() {
			t.Fatal("cached pointer user did not see the new hash")
		}
	})

	t.Run("pending cache untouched", func(t *testing.T) {
		c := NewUserCache[valueUser]("u1")
		c.setHashedPassword(h)
		if _, ok := c.Cached(); ok {
			t.Fatal("pending cache became resolved")
		}
	})
}
