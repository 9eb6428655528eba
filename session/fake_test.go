package session

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/authcore/password"
)

type testUser struct {
	id     string
	email  string
	hashed password.Hashed
}

func (u *testUser) UserID() string { return u.id }
func (u *testUser) Email() string  { return u.email }
func (u *testUser) HashedPassword() (password.Hashed, bool) {
	return u.hashed, !u.hashed.IsZero()
}
func (u *testUser) SetHashedPassword(h password.Hashed) { u.hashed = h }

type update struct {
	id     ID
	userID string
	data   map[string]string
}

// countingBackend records every call so tests can assert on I/O counts.
type countingBackend struct {
	sessions map[ID]Fields[map[string]string]
	users    map[string]*testUser

	loadSessionCalls int
	createCalls      int
	loadUserCalls    int
	byEmailCalls     int
	updates          []update
	passwordUpdates  map[string]password.Hashed

	failUpdate   error
	failLoadUser error
}

func newCountingBackend() *countingBackend {
	return &countingBackend{
		sessions:        make(map[ID]Fields[map[string]string]),
		users:           make(map[string]*testUser),
		passwordUpdates: make(map[string]password.Hashed),
	}
}

func (b *countingBackend) LoadSessionData(_ context.Context, id ID) (Fields[map[string]string], bool, error) {
	b.loadSessionCalls++
	f, ok := b.sessions[id]
	return f, ok, nil
}

func (b *countingBackend) CreateSessionData(context.Context) (map[string]string, error) {
	b.createCalls++
	return map[string]string{}, nil
}

func (b *countingBackend) UpdateSessionData(_ context.Context, id ID, userID string, data map[string]string) error {
	if b.failUpdate != nil {
		return b.failUpdate
	}
	b.updates = append(b.updates, update{id: id, userID: userID, data: data})
	b.sessions[id] = Fields[map[string]string]{UserID: userID, Data: data}
	return nil
}

func (b *countingBackend) LoadUser(_ context.Context, userID string) (*testUser, bool, error) {
	b.loadUserCalls++
	if b.failLoadUser != nil {
		return nil, false, b.failLoadUser
	}
	u, ok := b.users[userID]
	return u, ok, nil
}

func (b *countingBackend) LoadUserByEmail(_ context.Context, email string) (*testUser, bool, error) {
	b.byEmailCalls++
	for _, u := range b.users {
		if u.email == email {
			return u, true, nil
		}
	}
	return nil, false, nil
}

func (b *countingBackend) UpdateUserPassword(_ context.Context, userID string, hashed password.Hashed) error {
	if _, ok := b.users[userID]; !ok {
		return errors.New("no such user")
	}
	b.passwordUpdates[userID] = hashed
	return nil
}

func testRegistry(t *testing.T) *password.Registry {
	t.Helper()
	b, err := password.NewBcrypt(4)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}
	r, err := password.NewRegistry(b, b)
	if err != nil {
		t.Fatalf("NewRegistry error: %v", err)
	}
	return r
}

func (b *countingBackend) addUser(t *testing.T, r *password.Registry, id, email, raw string) *testUser {
	t.Helper()
	u := &testUser{id: id, email: email}
	if raw != "" {
		p, err := password.Validate(raw, nil)
		if err != nil {
			t.Fatalf("Validate error: %v", err)
		}
		h, err := r.Hash(p)
		if err != nil {
			t.Fatalf("Hash error: %v", err)
		}
		u.hashed = h
	}
	b.users[id] = u
	return u
}
