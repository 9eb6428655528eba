package password

import (
	"errors"
	"sync"
)

// Generator produces new encoded hashes.
type Generator interface {
	ID() string
	Generate(password []byte) (string, error)
}

// Verifier checks a password against a stored hash. Verify must return
// false, not panic, for hashes it does not understand.
type Verifier interface {
	ID() string
	Verify(password []byte, hashed Hashed) bool
}

// Upgrader is implemented by algorithms that can tell when one of their own
// hashes was produced with weaker parameters.
type Upgrader interface {
	NeedsUpgrade(hashed Hashed) bool
}

// Authenticated is the proof returned by a successful verification.
// Its zero value is not a proof; only this package can produce a valid one.
type Authenticated struct {
	seal *seal
}

type seal struct{ _ byte }

var proof = &seal{}

// Valid reports whether a came out of a successful verification.
func (a Authenticated) Valid() bool { return a.seal == proof }

// Registry holds one generator and an ordered list of verifiers. It is
// immutable after construction and safe for concurrent use.
type Registry struct {
	generator Generator
	verifiers []Verifier
}

// NewRegistry builds a registry. The generator's algorithm must be among the
// verifiers so that every new hash stays verifiable.
func NewRegistry(generator Generator, verifiers ...Verifier) (*Registry, error) {
	if generator == nil {
		return nil, errors.New("password registry requires a generator")
	}
	if len(verifiers) == 0 {
		return nil, errors.New("password registry requires at least one verifier")
	}

	covered := false
	for _, v := range verifiers {
		if v == nil {
			return nil, errors.New("password registry contains a nil verifier")
		}
		if v.ID() == generator.ID() {
			covered = true
		}
	}
	if !covered {
		return nil, errors.New("password registry generator is not a registered verifier")
	}

	return &Registry{
		generator: generator,
		verifiers: append([]Verifier(nil), verifiers...),
	}, nil
}

// GeneratorID returns the algorithm used for new hashes.
func (r *Registry) GeneratorID() string { return r.generator.ID() }

// VerifierIDs returns the accepted algorithms in registration order.
func (r *Registry) VerifierIDs() []string {
	ids := make([]string, 0, len(r.verifiers))
	for _, v := range r.verifiers {
		ids = append(ids, v.ID())
	}
	return ids
}

// Hash produces a new salted hash with the active generator. The error is
// non-nil when the generator itself fails (entropy source, or an algorithm
// with tighter input bounds than [MaxLength]) or p is a zero value.
func (r *Registry) Hash(p ValidPassword) (Hashed, error) {
	if p.raw == "" {
		return Hashed{}, errors.New("password was not validated")
	}
	encoded, err := r.generator.Generate(p.bytes())
	if err != nil {
		return Hashed{}, err
	}
	return Parse(encoded)
}

// Verify tries each verifier in registration order and returns a proof on
// the first match. Wrong password, unknown algorithm and corrupt hash all
// yield false.
func (r *Registry) Verify(hashed Hashed, candidate string) (Authenticated, bool) {
	if hashed.IsZero() {
		return Authenticated{}, false
	}
	pw := []byte(candidate)
	for _, v := range r.verifiers {
		if v.Verify(pw, hashed) {
			return Authenticated{seal: proof}, true
		}
	}
	return Authenticated{}, false
}

// NeedsRehash reports whether hashed should be replaced by a fresh hash from
// the active generator.
func (r *Registry) NeedsRehash(hashed Hashed) bool {
	if hashed.IsZero() {
		return false
	}
	if hashed.Algorithm() != r.generator.ID() {
		return true
	}
	if u, ok := r.generator.(Upgrader); ok {
		return u.NeedsUpgrade(hashed)
	}
	return false
}

// AlgorithmSetV1 returns the v1 algorithm set: argon2id generates, argon2id
// and bcrypt verify.
func AlgorithmSetV1() (*Registry, error) {
	a, err := NewArgon2(DefaultArgon2Config())
	if err != nil {
		return nil, err
	}
	b, err := NewBcrypt(12)
	if err != nil {
		return nil, err
	}
	return NewRegistry(a, a, b)
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r, err := AlgorithmSetV1()
	if err != nil {
		panic("password: default algorithm set: " + err.Error())
	}
	return r
})

// Default returns the process-wide registry, built on first use.
func Default() *Registry { return defaultRegistry() }

// Hash hashes p with the default registry. It panics only if the system
// entropy source fails.
func Hash(p ValidPassword) Hashed {
	h, err := Default().Hash(p)
	if err != nil {
		panic("password: hash: " + err.Error())
	}
	return h
}
