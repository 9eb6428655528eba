package session

import (
	"context"
	"fmt"
)

// Acquire turns a presented token into a session.
//
// A token that parses as an [ID] and has a stored record yields the stored
// session. Anything else (empty, malformed, unknown or expired) yields a new
// anonymous session under a freshly generated ID, so a client can never pick
// its own identifier. New sessions report [Session.IsNew] and are not dirty.
func Acquire[U User, D any](ctx context.Context, backend Backend[U, D], token string, opts ...Option) (*Session[U, D], error) {
	if id, err := ParseID(token); err == nil {
		fields, found, err := backend.LoadSessionData(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("session: load session data: %w", err)
		}
		if found {
			return New(backend, id, fields, opts...), nil
		}
	}

	data, err := backend.CreateSessionData(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: create session data: %w", err)
	}
	s := New(backend, NewID(), Fields[D]{Data: data}, opts...)
	s.isNew = true
	return s, nil
}
