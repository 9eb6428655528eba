package session

import (
	"context"
	"fmt"

	"github.com/MrEthical07/authcore/password"
)

// Option configures a [Session] at construction.
type Option func(*options)

type options struct {
	registry *password.Registry
}

// WithRegistry makes the session hash and verify passwords with r instead
// of [password.Default].
func WithRegistry(r *password.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// Session is the live state of one session: identifier, payload, cached
// user and a needs-save flag.
//
// A Session is owned by a single unit of work. Mutating methods must be
// sequenced by the caller; there is no internal locking.
type Session[U User, D any] struct {
	backend   Backend[U, D]
	registry  *password.Registry
	id        ID
	data      D
	user      UserCache[U]
	needsSave bool
	isNew     bool
}

// New builds a session from stored fields. Use [Acquire] to go from a
// presented token to a session.
func New[U User, D any](backend Backend[U, D], id ID, fields Fields[D], opts ...Option) *Session[U, D] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = password.Default()
	}
	return &Session[U, D]{
		backend:  backend,
		registry: o.registry,
		id:       id,
		data:     fields.Data,
		user:     NewUserCache[U](fields.UserID),
	}
}

func (s *Session[U, D]) ID() ID { return s.id }

// IsNew reports whether the session was minted by [Acquire] instead of
// loaded. The transport must hand the new ID back to the client.
func (s *Session[U, D]) IsNew() bool { return s.isNew }

// Data returns the session payload.
func (s *Session[U, D]) Data() D { return s.data }

// SetData replaces the payload and marks the session dirty.
func (s *Session[U, D]) SetData(data D) {
	s.data = data
	s.needsSave = true
}

// UserID returns the authenticated user identifier.
func (s *Session[U, D]) UserID() (string, bool) { return s.user.ID() }

func (s *Session[U, D]) IsAuthenticated() bool {
	_, ok := s.user.ID()
	return ok
}

// User resolves the authenticated user through the backend, at most once per
// identifier. Anonymous sessions and unknown users return (zero, false, nil).
func (s *Session[U, D]) User(ctx context.Context) (U, bool, error) {
	u, ok, err := s.user.Resolve(ctx, s.backend.LoadUser)
	if err != nil {
		return u, false, fmt.Errorf("session: load user: %w", err)
	}
	return u, ok, nil
}

// LoginByPassword authenticates email and candidate. On success the session
// switches to the loaded user and the proof is returned. Unknown email,
// missing credential and wrong password all return ok == false and leave the
// current authentication state untouched.
func (s *Session[U, D]) LoginByPassword(ctx context.Context, email, candidate string) (password.Authenticated, bool, error) {
	user, found, err := s.backend.LoadUserByEmail(ctx, email)
	if err != nil {
		return password.Authenticated{}, false, fmt.Errorf("session: load user by email: %w", err)
	}
	if !found {
		return password.Authenticated{}, false, nil
	}

	hashed, ok := user.HashedPassword()
	if !ok {
		return password.Authenticated{}, false, nil
	}

	proof, ok := s.registry.Verify(hashed, candidate)
	if !ok {
		return password.Authenticated{}, false, nil
	}

	if s.user.SetUser(user) {
		s.needsSave = true
	}
	return proof, true, nil
}

// ForceLogin authenticates the session as userID without checking
// credentials. An empty userID logs out.
func (s *Session[U, D]) ForceLogin(userID string) {
	if s.user.SetID(userID) {
		s.needsSave = true
	}
}

// ForceLoginUser is ForceLogin with an already loaded record, which becomes
// the cached user.
func (s *Session[U, D]) ForceLoginUser(user U) {
	if s.user.SetUser(user) {
		s.needsSave = true
	}
}

// Logout clears the authenticated user. It is idempotent.
func (s *Session[U, D]) Logout() {
	if s.user.Clear() {
		s.needsSave = true
	}
}

// UpdateUserPassword hashes p, stores it for the authenticated user and
// marks the session dirty. A resolved cached user implementing
// [PasswordSetter] sees the new hash immediately. Anonymous sessions are a
// no-op.
func (s *Session[U, D]) UpdateUserPassword(ctx context.Context, p password.ValidPassword) error {
	userID, ok := s.user.ID()
	if !ok {
		return nil
	}

	hashed, err := s.registry.Hash(p)
	if err != nil {
		return fmt.Errorf("session: hash password: %w", err)
	}
	if err := s.backend.UpdateUserPassword(ctx, userID, hashed); err != nil {
		return fmt.Errorf("session: update user password: %w", err)
	}
	s.needsSave = true
	s.user.setHashedPassword(hashed)
	return nil
}

// MarkDirty forces the next [Session.Save] to write.
func (s *Session[U, D]) MarkDirty() { s.needsSave = true }

func (s *Session[U, D]) NeedsSave() bool { return s.needsSave }

// Save persists the session only if it has unsaved changes.
func (s *Session[U, D]) Save(ctx context.Context) error {
	if !s.needsSave {
		return nil
	}
	return s.ForceSave(ctx)
}

// ForceSave persists the session unconditionally. The needs-save flag is
// cleared only when the backend call succeeds.
func (s *Session[U, D]) ForceSave(ctx context.Context) error {
	userID, _ := s.user.ID()
	if err := s.backend.UpdateSessionData(ctx, s.id, userID, s.data); err != nil {
		return fmt.Errorf("session: update session data: %w", err)
	}
	s.needsSave = false
	return nil
}
