package password

import (
	"fmt"
	"io"
	"strconv"

	"github.com/ccojocar/zxcvbn-go"
)

const (
	// MinLength is the minimum accepted password length in bytes.
	MinLength = 8
	// MaxLength is the maximum accepted password length in bytes.
	MaxLength = 1024
	// DefaultMinScore is the lowest acceptable strength score when a
	// [Validator] has an estimator and no explicit MinScore.
	DefaultMinScore = 3
)

const redacted = "ValidPassword([...])"

// Reason enumerates why a password was rejected.
type Reason int

const (
	TooShort Reason = iota + 1
	TooLong
	Weak
)

func (r Reason) String() string {
	switch r {
	case TooShort:
		return "too short"
	case TooLong:
		return "too long"
	case Weak:
		return "too weak"
	default:
		return "invalid"
	}
}

// BadPasswordError is returned by validation. Score is only meaningful for [Weak].
type BadPasswordError struct {
	Reason Reason
	Score  int
}

func (e *BadPasswordError) Error() string {
	if e.Reason == Weak {
		return "password " + e.Reason.String() + " (score " + strconv.Itoa(e.Score) + ")"
	}
	return "password " + e.Reason.String()
}

// ValidPassword is a plaintext password that passed validation.
//
// Outside this package a ValidPassword can only be obtained from [Validate] or
// [Validator.Validate]. Every textual rendering is redacted.
type ValidPassword struct {
	raw string
}

func (p ValidPassword) String() string   { return redacted }
func (p ValidPassword) GoString() string { return redacted }

// Format redacts the password for every fmt verb, including %#v and %q.
func (p ValidPassword) Format(f fmt.State, _ rune) {
	_, _ = io.WriteString(f, redacted)
}

// Len returns the password length in bytes.
func (p ValidPassword) Len() int { return len(p.raw) }

func (p ValidPassword) bytes() []byte { return []byte(p.raw) }

// Estimator scores password strength. context carries user-specific strings
// (email, username) whose reuse inside the password is penalized.
type Estimator interface {
	Score(password string, context []string) int
}

// EstimatorFunc adapts a function to [Estimator].
type EstimatorFunc func(password string, context []string) int

func (f EstimatorFunc) Score(password string, context []string) int { return f(password, context) }

// ZxcvbnEstimator scores passwords with zxcvbn (0 to 4).
type ZxcvbnEstimator struct{}

func (ZxcvbnEstimator) Score(password string, context []string) int {
	return zxcvbn.PasswordStrength(password, context).Score
}

// Validator checks length bounds and, when Estimator is set, strength.
type Validator struct {
	Estimator Estimator
	// MinScore defaults to DefaultMinScore when zero.
	MinScore int
}

// Validate applies length bounds, then the strength check if configured.
func (v Validator) Validate(raw string, context []string) (ValidPassword, error) {
	if len(raw) < MinLength {
		return ValidPassword{}, &BadPasswordError{Reason: TooShort}
	}
	if len(raw) > MaxLength {
		return ValidPassword{}, &BadPasswordError{Reason: TooLong}
	}

	if v.Estimator != nil {
		minScore := v.MinScore
		if minScore == 0 {
			minScore = DefaultMinScore
		}
		if score := v.Estimator.Score(raw, context); score < minScore {
			return ValidPassword{}, &BadPasswordError{Reason: Weak, Score: score}
		}
	}

	return ValidPassword{raw: raw}, nil
}

// Validate checks length bounds only.
func Validate(raw string, context []string) (ValidPassword, error) {
	return Validator{}.Validate(raw, context)
}
