// Package memstore is an in-process implementation of the full session
// backend, for tests, examples and the load generator.
package memstore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/session"
)

// ErrUserNotFound is returned by writes that target a missing user.
var ErrUserNotFound = errors.New("user not found")

// ErrDuplicateEmail is returned by AddUser when the email is taken.
var ErrDuplicateEmail = errors.New("email already registered")

// User is the in-memory user record.
type User struct {
	ID           string
	EmailAddress string
	Hash         password.Hashed
}

func (u *User) UserID() string { return u.ID }
func (u *User) Email() string  { return u.EmailAddress }

func (u *User) HashedPassword() (password.Hashed, bool) {
	return u.Hash, !u.Hash.IsZero()
}

func (u *User) SetHashedPassword(h password.Hashed) { u.Hash = h }

type entry[D any] struct {
	fields    session.Fields[D]
	expiresAt time.Time
}

// Store implements session.Backend[*User, D]. Records are copied on the way
// in and out, so callers never share a record with the store.
type Store[D any] struct {
	mu       sync.RWMutex
	sessions map[session.ID]entry[D]
	users    map[string]*User
	byEmail  map[string]string

	ttl     time.Duration
	newData func() D
	now     func() time.Time
}

// Option configures a Store.
type Option[D any] func(*Store[D])

// WithTTL expires sessions ttl after their last save. Zero keeps them forever.
func WithTTL[D any](ttl time.Duration) Option[D] {
	return func(s *Store[D]) { s.ttl = ttl }
}

// WithDataFactory sets the payload given to new sessions.
func WithDataFactory[D any](fn func() D) Option[D] {
	return func(s *Store[D]) { s.newData = fn }
}

func New[D any](opts ...Option[D]) *Store[D] {
	s := &Store[D]{
		sessions: make(map[session.ID]entry[D]),
		users:    make(map[string]*User),
		byEmail:  make(map[string]string),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AddUser registers a user and returns its generated id.
func (s *Store[D]) AddUser(email string, hashed password.Hashed) (string, error) {
	email = normalizeEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[email]; ok {
		return "", ErrDuplicateEmail
	}
	id := uuid.NewString()
	s.users[id] = &User{ID: id, EmailAddress: email, Hash: hashed}
	s.byEmail[email] = id
	return id, nil
}

func (s *Store[D]) LoadSessionData(_ context.Context, id session.ID) (session.Fields[D], bool, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return session.Fields[D]{}, false, nil
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		s.mu.Lock()
		if cur, ok := s.sessions[id]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(s.sessions, id)
		}
		s.mu.Unlock()
		return session.Fields[D]{}, false, nil
	}
	return e.fields, true, nil
}

func (s *Store[D]) CreateSessionData(context.Context) (D, error) {
	if s.newData != nil {
		return s.newData(), nil
	}
	var zero D
	return zero, nil
}

func (s *Store[D]) UpdateSessionData(_ context.Context, id session.ID, userID string, data D) error {
	e := entry[D]{fields: session.Fields[D]{UserID: userID, Data: data}}
	if s.ttl > 0 {
		e.expiresAt = s.now().Add(s.ttl)
	}
	s.mu.Lock()
	s.sessions[id] = e
	s.mu.Unlock()
	return nil
}

// Load and Save let the store serve as the session half of a composite
// backend.
func (s *Store[D]) Load(ctx context.Context, id session.ID) (session.Fields[D], bool, error) {
	return s.LoadSessionData(ctx, id)
}

func (s *Store[D]) Save(ctx context.Context, id session.ID, userID string, data D) error {
	return s.UpdateSessionData(ctx, id, userID, data)
}

// Delete removes one session.
func (s *Store[D]) Delete(_ context.Context, id session.ID) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// DeleteAllForUser removes every session of userID except the listed ones.
func (s *Store[D]) DeleteAllForUser(_ context.Context, userID string, except ...session.ID) (int, error) {
	keep := make(map[session.ID]struct{}, len(except))
	for _, id := range except {
		keep[id] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.sessions {
		if e.fields.UserID != userID {
			continue
		}
		if _, ok := keep[id]; ok {
			continue
		}
		delete(s.sessions, id)
		n++
	}
	return n, nil
}

// SessionCount returns the number of stored sessions, expired ones included.
func (s *Store[D]) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store[D]) LoadUser(_ context.Context, userID string) (*User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, false, nil
	}
	clone := *u
	return &clone, true, nil
}

func (s *Store[D]) LoadUserByEmail(ctx context.Context, email string) (*User, bool, error) {
	s.mu.RLock()
	id, ok := s.byEmail[normalizeEmail(email)]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return s.LoadUser(ctx, id)
}

func (s *Store[D]) UpdateUserPassword(_ context.Context, userID string, hashed password.Hashed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.Hash = hashed
	return nil
}
