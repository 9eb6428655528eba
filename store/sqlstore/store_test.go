package sqlstore

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/authcore/password"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(SQLite, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func testHash(t *testing.T, raw string) password.Hashed {
	t.Helper()
	b, err := password.NewBcrypt(4)
	if err != nil {
		t.Fatalf("NewBcrypt: %v", err)
	}
	r, err := password.NewRegistry(b, b)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	p, err := password.Validate(raw, nil)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	h, err := r.Hash(p)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	return h
}

func TestCreateAndLoadUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	h := testHash(t, "correct-horse")

	created, err := s.CreateUser(ctx, "  Alice@Example.com ", &h)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if created.Email() != "alice@example.com" {
		t.Fatalf("email=%q", created.Email())
	}

	byID, ok, err := s.LoadUser(ctx, created.ID)
	if err != nil || !ok {
		t.Fatalf("LoadUser = (%v, %v)", ok, err)
	}
	stored, ok := byID.HashedPassword()
	if !ok || stored != h {
		t.Fatal("stored hash mismatch")
	}
	if !byID.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("CreatedAt=%v, want %v", byID.CreatedAt, created.CreatedAt)
	}

	byEmail, ok, err := s.LoadUserByEmail(ctx, "ALICE@example.com")
	if err != nil || !ok || byEmail.ID != created.ID {
		t.Fatalf("LoadUserByEmail = (%v, %v, %v)", byEmail, ok, err)
	}
}

func TestLoadMissingIsNotAnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.LoadUser(ctx, "missing"); err != nil || ok {
		t.Fatalf("LoadUser = (%v, %v)", ok, err)
	}
	if _, ok, err := s.LoadUserByEmail(ctx, "missing@example.com"); err != nil || ok {
		t.Fatalf("LoadUserByEmail = (%v, %v)", ok, err)
	}
}

func TestUserWithoutPassword(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "sso@example.com", nil)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	loaded, _, err := s.LoadUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("LoadUser: %v", err)
	}
	if _, ok := loaded.HashedPassword(); ok {
		t.Fatal("expected no password credential")
	}
}

func TestDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, "dup@example.com", nil); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := s.CreateUser(ctx, "DUP@example.com", nil); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("err=%v, want ErrDuplicateEmail", err)
	}
}

func TestUpdateUserPassword(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "bob@example.com", nil)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	h := testHash(t, "battery-staple")
	if err := s.UpdateUserPassword(ctx, u.ID, h); err != nil {
		t.Fatalf("UpdateUserPassword: %v", err)
	}
	loaded, _, _ := s.LoadUser(ctx, u.ID)
	if got, ok := loaded.HashedPassword(); !ok || got != h {
		t.Fatal("password not updated")
	}
	if _, ok := hashOf(loaded).Verify("battery-staple"); !ok {
		t.Fatal("updated hash must verify")
	}

	if err := s.UpdateUserPassword(ctx, "missing", h); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err=%v, want ErrUserNotFound", err)
	}
}

func hashOf(u *User) password.Hashed {
	h, _ := u.HashedPassword()
	return h
}

func TestCorruptHashIsBackendError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "eve@example.com", nil)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := s.DB().ExecContext(ctx, `UPDATE users SET password_hash = 'plaintext' WHERE id = ?`, u.ID); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	if _, _, err := s.LoadUser(ctx, u.ID); err == nil {
		t.Fatal("expected scan error for corrupt hash")
	}
}

func TestRebind(t *testing.T) {
	q := `UPDATE users SET password_hash = ? WHERE id = ?`
	if got := Postgres.rebind(q); got != `UPDATE users SET password_hash = $1 WHERE id = $2` {
		t.Fatalf("postgres rebind=%q", got)
	}
	if got := SQLite.rebind(q); got != q {
		t.Fatalf("sqlite rebind=%q", got)
	}
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{"postgres": Postgres, "SQLite": SQLite} {
		d, err := ParseDialect(in)
		if err != nil || d != want {
			t.Fatalf("ParseDialect(%q) = (%q, %v)", in, d, err)
		}
	}
	if _, err := ParseDialect("mysql"); err == nil {
		t.Fatal("expected error")
	}
}
