package password

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedHash is returned when a stored hash string is not in the
// self-describing `$<algorithm>$...` form.
var ErrMalformedHash = errors.New("malformed password hash")

// Hashed is an algorithm-tagged password hash. It is immutable and only
// produced by a [Generator] or by [Parse].
type Hashed struct {
	encoded string
}

// Parse validates the structure of a stored hash string. It does not check
// that any registered algorithm understands the tag.
func Parse(s string) (Hashed, error) {
	if !strings.HasPrefix(s, "$") {
		return Hashed{}, ErrMalformedHash
	}
	tag, rest, ok := strings.Cut(s[1:], "$")
	if !ok || tag == "" || rest == "" {
		return Hashed{}, ErrMalformedHash
	}
	for _, r := range tag {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
			return Hashed{}, ErrMalformedHash
		}
	}
	return Hashed{encoded: s}, nil
}

// Algorithm returns the normalized algorithm identifier of the hash.
// bcrypt variants ($2a$, $2b$, $2y$) report [BcryptID].
func (h Hashed) Algorithm() string {
	if h.encoded == "" {
		return ""
	}
	if isBcrypt(h.encoded) {
		return BcryptID
	}
	tag, _, _ := strings.Cut(h.encoded[1:], "$")
	return tag
}

// Encoded returns the canonical storage form.
func (h Hashed) Encoded() string { return h.encoded }

// IsZero reports whether h holds no hash.
func (h Hashed) IsZero() bool { return h.encoded == "" }

func (h Hashed) String() string   { return "Hashed([...])" }
func (h Hashed) GoString() string { return "Hashed([...])" }

// Verify checks candidate against h using the default registry.
func (h Hashed) Verify(candidate string) (Authenticated, bool) {
	return Default().Verify(h, candidate)
}

func (h Hashed) MarshalText() ([]byte, error) {
	return []byte(h.encoded), nil
}

func (h *Hashed) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Value implements driver.Valuer. The zero hash is stored as NULL.
func (h Hashed) Value() (driver.Value, error) {
	if h.encoded == "" {
		return nil, nil
	}
	return h.encoded, nil
}

// Scan implements sql.Scanner. A NULL or unparseable column is an error;
// nullable columns should scan into sql.Null[Hashed].
func (h *Hashed) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case nil:
		return fmt.Errorf("%w: null", ErrMalformedHash)
	default:
		return fmt.Errorf("%w: unsupported column type %T", ErrMalformedHash, src)
	}
	return h.UnmarshalText([]byte(s))
}
