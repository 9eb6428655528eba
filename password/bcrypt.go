package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// BcryptID is the registry identifier of the bcrypt algorithm.
const BcryptID = "bcrypt"

var bcryptPrefixes = []string{"$2a$", "$2b$", "$2y$"}

// Bcrypt verifies (and, for short passwords, generates) bcrypt hashes.
//
// bcrypt only considers the first 72 bytes of input and x/crypto rejects
// longer passwords, so Bcrypt is registered as a legacy verifier rather than
// as the generator of the default algorithm set.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a bcrypt algorithm using cost for new hashes.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, errors.New("bcrypt cost out of range")
	}
	return &Bcrypt{cost: cost}, nil
}

func (b *Bcrypt) ID() string { return BcryptID }

func (b *Bcrypt) Generate(password []byte) (string, error) {
	out, err := bcrypt.GenerateFromPassword(password, b.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (b *Bcrypt) Verify(password []byte, hashed Hashed) bool {
	encoded := hashed.Encoded()
	if !isBcrypt(encoded) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(encoded), password) == nil
}

// NeedsUpgrade reports whether hashed uses a lower cost than b.
func (b *Bcrypt) NeedsUpgrade(hashed Hashed) bool {
	cost, err := bcrypt.Cost([]byte(hashed.Encoded()))
	if err != nil {
		return false
	}
	return cost < b.cost
}

func isBcrypt(encoded string) bool {
	for _, p := range bcryptPrefixes {
		if strings.HasPrefix(encoded, p) {
			return true
		}
	}
	return false
}
