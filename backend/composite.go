// Package backend assembles a session.Backend from a session store and a
// user store, so sessions can live in Redis while users live in SQL.
package backend

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/session"
)

// SessionStore persists session fields. redisstore.Store and
// memstore.Store implement it.
type SessionStore[D any] interface {
	Load(ctx context.Context, id session.ID) (session.Fields[D], bool, error)
	Save(ctx context.Context, id session.ID, userID string, data D) error
}

// UserStore looks up and updates users. sqlstore.Store and memstore.Store
// implement it.
type UserStore[U session.User] interface {
	LoadUser(ctx context.Context, userID string) (U, bool, error)
	LoadUserByEmail(ctx context.Context, email string) (U, bool, error)
	UpdateUserPassword(ctx context.Context, userID string, hashed password.Hashed) error
}

// Composite implements session.Backend by delegation.
type Composite[U session.User, D any] struct {
	Sessions SessionStore[D]
	Users    UserStore[U]
	// NewData builds the payload of a new session. Nil yields the zero D.
	NewData func() D
	// CookieName overrides session.DefaultCookieName when set.
	CookieName string
}

// New returns a Composite over sessions and users.
func New[U session.User, D any](sessions SessionStore[D], users UserStore[U]) (*Composite[U, D], error) {
	if sessions == nil {
		return nil, errors.New("backend: session store is required")
	}
	if users == nil {
		return nil, errors.New("backend: user store is required")
	}
	return &Composite[U, D]{Sessions: sessions, Users: users}, nil
}

func (c *Composite[U, D]) LoadSessionData(ctx context.Context, id session.ID) (session.Fields[D], bool, error) {
	return c.Sessions.Load(ctx, id)
}

func (c *Composite[U, D]) CreateSessionData(context.Context) (D, error) {
	if c.NewData != nil {
		return c.NewData(), nil
	}
	var zero D
	return zero, nil
}

func (c *Composite[U, D]) UpdateSessionData(ctx context.Context, id session.ID, userID string, data D) error {
	return c.Sessions.Save(ctx, id, userID, data)
}

func (c *Composite[U, D]) LoadUser(ctx context.Context, userID string) (U, bool, error) {
	return c.Users.LoadUser(ctx, userID)
}

func (c *Composite[U, D]) LoadUserByEmail(ctx context.Context, email string) (U, bool, error) {
	return c.Users.LoadUserByEmail(ctx, email)
}

func (c *Composite[U, D]) UpdateUserPassword(ctx context.Context, userID string, hashed password.Hashed) error {
	return c.Users.UpdateUserPassword(ctx, userID, hashed)
}

func (c *Composite[U, D]) SessionCookieName() string { return c.CookieName }

type revoker interface {
	DeleteAllForUser(ctx context.Context, userID string, except ...session.ID) (int, error)
}

// CanRevoke reports whether the session store supports DeleteAllForUser.
func (c *Composite[U, D]) CanRevoke() bool {
	_, ok := c.Sessions.(revoker)
	return ok
}

// DeleteAllForUser forwards to the session store when it supports
// revocation.
func (c *Composite[U, D]) DeleteAllForUser(ctx context.Context, userID string, except ...session.ID) (int, error) {
	r, ok := c.Sessions.(revoker)
	if !ok {
		return 0, errors.New("backend: session store cannot revoke sessions")
	}
	return r.DeleteAllForUser(ctx, userID, except...)
}
