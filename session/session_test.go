package session

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/authcore/password"
)

func TestAcquireRenewsUnknownToken(t *testing.T) {
	b := newCountingBackend()
	presented := NewID()

	s, err := Acquire(context.Background(), b, presented.String())
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	if s.ID() == presented {
		t.Fatal("renewed session must not reuse the presented id")
	}
	if !s.IsNew() || s.NeedsSave() || s.IsAuthenticated() {
		t.Fatalf("new=%v dirty=%v auth=%v", s.IsNew(), s.NeedsSave(), s.IsAuthenticated())
	}
	if b.loadSessionCalls != 1 || b.createCalls != 1 {
		t.Fatalf("load=%d create=%d", b.loadSessionCalls, b.createCalls)
	}
}

func TestAcquireMalformedTokenSkipsLoad(t *testing.T) {
	b := newCountingBackend()
	for _, token := range []string{"", "garbage", "00000000-0000-0000-0000-000000000000"} {
		s, err := Acquire(context.Background(), b, token)
		if err != nil {
			t.Fatalf("Acquire(%q) error: %v", token, err)
		}
		if !s.IsNew() || s.ID().String() == token {
			t.Fatalf("Acquire(%q) must mint a new session", token)
		}
	}
	if b.loadSessionCalls != 0 {
		t.Fatalf("loadSessionCalls=%d, want 0", b.loadSessionCalls)
	}
}

func TestAcquireLoadsStoredSession(t *testing.T) {
	b := newCountingBackend()
	id := NewID()
	b.sessions[id] = Fields[map[string]string]{UserID: "u1", Data: map[string]string{"k": "v"}}

	s, err := Acquire(context.Background(), b, id.String())
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	if s.IsNew() || s.ID() != id {
		t.Fatal("expected the stored session")
	}
	if uid, ok := s.UserID(); !ok || uid != "u1" {
		t.Fatalf("UserID()=(%q,%v)", uid, ok)
	}
	if s.Data()["k"] != "v" {
		t.Fatal("payload not loaded")
	}
	if b.createCalls != 0 || b.loadUserCalls != 0 {
		t.Fatalf("create=%d loadUser=%d", b.createCalls, b.loadUserCalls)
	}
}

type failingLoadBackend struct {
	*countingBackend
}

func (failingLoadBackend) LoadSessionData(context.Context, ID) (Fields[map[string]string], bool, error) {
	return Fields[map[string]string]{}, false, errors.New("io")
}

func TestAcquirePropagatesBackendError(t *testing.T) {
	b := failingLoadBackend{newCountingBackend()}
	if _, err := Acquire[*testUser, map[string]string](context.Background(), b, NewID().String()); err == nil {
		t.Fatal("expected backend error")
	}
	if b.createCalls != 0 {
		t.Fatal("must not renew on backend error")
	}
}

func TestSaveDirtyFlagGating(t *testing.T) {
	b := newCountingBackend()
	id := NewID()
	s := New(b, id, Fields[map[string]string]{UserID: "u1", Data: map[string]string{}})
	ctx := context.Background()

	if err := s.Save(ctx); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if len(b.updates) != 0 {
		t.Fatalf("writes=%d, want 0", len(b.updates))
	}

	s.Logout()
	if !s.NeedsSave() {
		t.Fatal("Logout must mark dirty")
	}
	if err := s.Save(ctx); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if len(b.updates) != 1 || s.NeedsSave() {
		t.Fatalf("writes=%d dirty=%v", len(b.updates), s.NeedsSave())
	}
	if b.updates[0].userID != "" {
		t.Fatalf("saved userID=%q, want anonymous", b.updates[0].userID)
	}

	if err := s.Save(ctx); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if len(b.updates) != 1 {
		t.Fatalf("writes=%d, want 1", len(b.updates))
	}

	s.Logout()
	if s.NeedsSave() {
		t.Fatal("Logout on an anonymous session must not mark dirty")
	}
}

func TestForceSaveKeepsFlagOnError(t *testing.T) {
	b := newCountingBackend()
	b.failUpdate = errors.New("write failed")
	s := New(b, NewID(), Fields[map[string]string]{})
	s.ForceLogin("u1")

	if err := s.Save(context.Background()); !errors.Is(err, b.failUpdate) {
		t.Fatalf("Save err=%v, want wrapped backend error", err)
	}
	if !s.NeedsSave() {
		t.Fatal("dirty flag must survive a failed save")
	}

	b.failUpdate = nil
	if err := s.Save(context.Background()); err != nil {
		t.Fatalf("retry Save error: %v", err)
	}
	if s.NeedsSave() || len(b.updates) != 1 {
		t.Fatal("retry must write once and clear the flag")
	}
}

func TestForceLoginOnlyDirtiesOnChange(t *testing.T) {
	b := newCountingBackend()
	s := New(b, NewID(), Fields[map[string]string]{UserID: "u1"})

	s.ForceLogin("u1")
	if s.NeedsSave() {
		t.Fatal("same user must not mark dirty")
	}
	s.ForceLogin("u2")
	if !s.NeedsSave() {
		t.Fatal("new user must mark dirty")
	}
	if uid, _ := s.UserID(); uid != "u2" {
		t.Fatalf("UserID=%q", uid)
	}
	s.ForceLogin("")
	if s.IsAuthenticated() {
		t.Fatal("empty id must log out")
	}
}

func TestLoginByPasswordEndToEnd(t *testing.T) {
	r := testRegistry(t)
	b := newCountingBackend()
	b.addUser(t, r, "user-1", "a@example.com", "correct-horse")
	ctx := context.Background()

	s, err := Acquire(ctx, b, "", WithRegistry(r))
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	if s.user.State() != CacheEmpty {
		t.Fatal("fresh session must have an empty user cache")
	}

	proof, ok, err := s.LoginByPassword(ctx, "a@example.com", "correct-horse")
	if err != nil || !ok {
		t.Fatalf("LoginByPassword = (%v, %v)", ok, err)
	}
	if !proof.Valid() {
		t.Fatal("expected a valid proof")
	}
	if uid, ok := s.UserID(); !ok || uid != "user-1" {
		t.Fatalf("UserID()=(%q,%v)", uid, ok)
	}
	if !s.NeedsSave() {
		t.Fatal("login must mark dirty")
	}

	if _, ok, _ := s.User(ctx); !ok {
		t.Fatal("expected the cached user")
	}
	if b.loadUserCalls != 0 {
		t.Fatal("login must seed the cache without another lookup")
	}

	if err := s.Save(ctx); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if len(b.updates) != 1 || b.updates[0].userID != "user-1" || b.updates[0].id != s.ID() {
		t.Fatalf("updates=%+v", b.updates)
	}
}

func TestLoginByPasswordFailureIsNonDestructive(t *testing.T) {
	r := testRegistry(t)
	b := newCountingBackend()
	b.addUser(t, r, "user-1", "a@example.com", "correct-horse")
	b.addUser(t, r, "user-2", "b@example.com", "battery-staple")
	b.addUser(t, r, "user-3", "nopass@example.com", "")
	ctx := context.Background()

	s := New(b, NewID(), Fields[map[string]string]{UserID: "user-1"}, WithRegistry(r))

	attempts := []struct {
		email, pw string
	}{
		{"b@example.com", "wrong-password"},
		{"missing@example.com", "whatever-pass"},
		{"nopass@example.com", "whatever-pass"},
	}
	for _, a := range attempts {
		proof, ok, err := s.LoginByPassword(ctx, a.email, a.pw)
		if err != nil {
			t.Fatalf("LoginByPassword(%s) error: %v", a.email, err)
		}
		if ok || proof.Valid() {
			t.Fatalf("LoginByPassword(%s) must fail", a.email)
		}
		if uid, _ := s.UserID(); uid != "user-1" {
			t.Fatalf("UserID=%q after failed login, want user-1", uid)
		}
		if s.NeedsSave() {
			t.Fatal("failed login must not mark dirty")
		}
	}

	if _, ok, _ := s.LoginByPassword(ctx, "b@example.com", "battery-staple"); !ok {
		t.Fatal("expected switch to user-2")
	}
	if uid, _ := s.UserID(); uid != "user-2" {
		t.Fatalf("UserID=%q", uid)
	}
}

func TestUpdateUserPassword(t *testing.T) {
	r := testRegistry(t)
	b := newCountingBackend()
	u := b.addUser(t, r, "user-1", "a@example.com", "correct-horse")
	ctx := context.Background()

	next, err := password.Validate("new-password-1", nil)
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}

	anon := New(b, NewID(), Fields[map[string]string]{}, WithRegistry(r))
	if err := anon.UpdateUserPassword(ctx, next); err != nil {
		t.Fatalf("anonymous UpdateUserPassword error: %v", err)
	}
	if len(b.passwordUpdates) != 0 || anon.NeedsSave() {
		t.Fatal("anonymous update must be a no-op")
	}

	s := New(b, NewID(), Fields[map[string]string]{UserID: "user-1"}, WithRegistry(r))
	if _, ok, err := s.User(ctx); err != nil || !ok {
		t.Fatalf("User = (%v, %v)", ok, err)
	}
	if err := s.UpdateUserPassword(ctx, next); err != nil {
		t.Fatalf("UpdateUserPassword error: %v", err)
	}
	stored, ok := b.passwordUpdates["user-1"]
	if !ok {
		t.Fatal("backend not updated")
	}
	if _, ok := r.Verify(stored, "new-password-1"); !ok {
		t.Fatal("stored hash must verify the new password")
	}
	if u.hashed != stored {
		t.Fatal("cached record must see the new hash")
	}
	if !s.NeedsSave() {
		t.Fatal("password change must mark dirty")
	}
}

func TestSetDataMarksDirty(t *testing.T) {
	b := newCountingBackend()
	s := New(b, NewID(), Fields[map[string]string]{Data: map[string]string{}})
	s.SetData(map[string]string{"theme": "dark"})
	if !s.NeedsSave() {
		t.Fatal("SetData must mark dirty")
	}
	if err := s.Save(context.Background()); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if b.updates[0].data["theme"] != "dark" {
		t.Fatal("payload not saved")
	}
}

func TestCookieName(t *testing.T) {
	if got := CookieName(newCountingBackend()); got != DefaultCookieName {
		t.Fatalf("CookieName=%q", got)
	}
	if got := CookieName(namedBackend("sid")); got != "sid" {
		t.Fatalf("CookieName=%q", got)
	}
	if got := CookieName(namedBackend("")); got != DefaultCookieName {
		t.Fatalf("CookieName=%q", got)
	}
}

type namedBackend string

func (n namedBackend) SessionCookieName() string { return string(n) }
