package session

import (
	"context"

	"github.com/MrEthical07/authcore/password"
)

// DefaultCookieName is the token name used when a backend does not
// implement [CookieBackend].
const DefaultCookieName = "sessionid"

// User is the view of a user record the session core needs.
type User interface {
	UserID() string
	Email() string
	// HashedPassword reports false when the user has no password credential.
	HashedPassword() (password.Hashed, bool)
}

// PasswordSetter is implemented by user records that can take a new hash in
// place, so a password change is visible through the session's cached
// record. Value user types may implement it with a pointer receiver.
type PasswordSetter interface {
	SetHashedPassword(password.Hashed)
}

// Fields is the durable representation of a session. An empty UserID
// means the session is anonymous.
type Fields[D any] struct {
	UserID string
	Data   D
}

// Backend is the storage and identity capability set a [Session] depends on.
//
// Not-found outcomes are reported as (zero, false, nil) and never as errors.
// Implementations must be safe for concurrent use across sessions and make
// no ordering assumptions between calls for different session IDs.
type Backend[U User, D any] interface {
	LoadSessionData(ctx context.Context, id ID) (Fields[D], bool, error)
	CreateSessionData(ctx context.Context) (D, error)
	// UpdateSessionData upserts; repeating a call with identical input is a no-op.
	UpdateSessionData(ctx context.Context, id ID, userID string, data D) error

	LoadUser(ctx context.Context, userID string) (U, bool, error)
	LoadUserByEmail(ctx context.Context, email string) (U, bool, error)
	UpdateUserPassword(ctx context.Context, userID string, hashed password.Hashed) error
}

// CookieBackend is implemented by backends that configure the name of the
// cookie (or header) carrying the session token.
type CookieBackend interface {
	SessionCookieName() string
}

// CookieName returns the configured token name of b, or DefaultCookieName.
func CookieName(b any) string {
	if cb, ok := b.(CookieBackend); ok {
		if name := cb.SessionCookieName(); name != "" {
			return name
		}
	}
	return DefaultCookieName
}
