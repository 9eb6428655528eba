package session

import (
	"context"

	"github.com/MrEthical07/authcore/password"
)

// CacheState is the state of a [UserCache].
type CacheState uint8

const (
	// CacheEmpty holds no user identifier.
	CacheEmpty CacheState = iota
	// CachePending holds an identifier whose record has not been fetched.
	CachePending
	// CacheResolved holds an identifier and its memoized record.
	CacheResolved
)

func (s CacheState) String() string {
	switch s {
	case CacheEmpty:
		return "empty"
	case CachePending:
		return "pending"
	case CacheResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// UserLoader fetches a user record by identifier.
type UserLoader[U User] func(ctx context.Context, userID string) (U, bool, error)

// UserCache lazily resolves a user identifier to its record, fetching at
// most once per identifier value. It is not safe for concurrent use.
type UserCache[U User] struct {
	id    string
	user  U
	state CacheState
}

// NewUserCache returns a cache holding userID, or an empty cache for "".
func NewUserCache[U User](userID string) UserCache[U] {
	var c UserCache[U]
	c.SetID(userID)
	return c
}

func (c *UserCache[U]) State() CacheState { return c.state }

// ID returns the held identifier.
func (c *UserCache[U]) ID() (string, bool) {
	return c.id, c.state != CacheEmpty
}

// SetID replaces the identifier and reports whether it changed. An unchanged
// identifier keeps the memoized record; "" empties the cache.
func (c *UserCache[U]) SetID(userID string) bool {
	if userID == c.id {
		return false
	}
	var zero U
	c.id = userID
	c.user = zero
	if userID == "" {
		c.state = CacheEmpty
	} else {
		c.state = CachePending
	}
	return true
}

// SetUser stores an already resolved record and reports whether the
// identifier changed. A record with an empty identifier empties the cache.
func (c *UserCache[U]) SetUser(user U) bool {
	userID := user.UserID()
	if userID == "" {
		return c.Clear()
	}
	changed := userID != c.id
	c.id = userID
	c.user = user
	c.state = CacheResolved
	return changed
}

// Clear empties the cache and reports whether an identifier was held.
func (c *UserCache[U]) Clear() bool {
	return c.SetID("")
}

// Cached returns the memoized record without I/O.
func (c *UserCache[U]) Cached() (U, bool) {
	return c.user, c.state == CacheResolved
}

// setHashedPassword hands h to a resolved record implementing
// [PasswordSetter]. The setter is looked up on *U first so value user types
// with pointer-receiver setters are updated in the cache itself.
func (c *UserCache[U]) setHashedPassword(h password.Hashed) {
	if c.state != CacheResolved {
		return
	}
	if setter, ok := any(&c.user).(PasswordSetter); ok {
		setter.SetHashedPassword(h)
		return
	}
	if setter, ok := any(c.user).(PasswordSetter); ok {
		setter.SetHashedPassword(h)
	}
}

// Resolve returns the record for the held identifier. An empty cache returns
// (zero, false, nil) without I/O. A pending cache calls load once; a found
// record is memoized. Not-found is returned as (zero, false, nil) and leaves
// the cache pending so a later call fetches again. Errors leave the state
// unchanged.
func (c *UserCache[U]) Resolve(ctx context.Context, load UserLoader[U]) (U, bool, error) {
	var zero U
	switch c.state {
	case CacheEmpty:
		return zero, false, nil
	case CacheResolved:
		return c.user, true, nil
	}

	user, ok, err := load(ctx, c.id)
	if err != nil {
		return zero, false, err
	}
	if !ok {
		return zero, false, nil
	}
	c.user = user
	c.state = CacheResolved
	return user, true, nil
}
