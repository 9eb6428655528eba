package session

import (
	"errors"

	"github.com/google/uuid"
)

// ErrInvalidID is returned by [ParseID] for anything other than the
// canonical textual form of an ID.
var ErrInvalidID = errors.New("invalid session id")

// ID is a random 128-bit session identifier. IDs compare by value and are
// usable as map keys.
type ID struct {
	u uuid.UUID
}

// NewID returns a fresh random (version 4) ID.
func NewID() ID {
	return ID{u: uuid.New()}
}

// ParseID accepts only the canonical lowercase hyphenated form produced by
// [ID.String]. Braced, URN, upper-case and unhyphenated variants are rejected.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil || u == uuid.Nil || u.String() != s {
		return ID{}, ErrInvalidID
	}
	return ID{u: u}, nil
}

func (id ID) String() string { return id.u.String() }

// IsZero reports whether id is the zero ID.
func (id ID) IsZero() bool { return id.u == uuid.Nil }

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.u.String()), nil
}

func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
