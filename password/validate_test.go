package password

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestValidateLengthBoundaries(t *testing.T) {
	tests := []struct {
		name   string
		length int
		want   Reason
	}{
		{name: "seven bytes", length: 7, want: TooShort},
		{name: "eight bytes", length: 8},
		{name: "max length", length: MaxLength},
		{name: "max plus one", length: MaxLength + 1, want: TooLong},
		{name: "empty", length: 0, want: TooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Validate(strings.Repeat("x", tt.length), nil)
			if tt.want == 0 {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				if p.Len() != tt.length {
					t.Fatalf("Len = %d, want %d", p.Len(), tt.length)
				}
				return
			}
			var bad *BadPasswordError
			if !errors.As(err, &bad) {
				t.Fatalf("expected BadPasswordError, got %v", err)
			}
			if bad.Reason != tt.want {
				t.Fatalf("reason = %v, want %v", bad.Reason, tt.want)
			}
		})
	}
}

func TestValidatorWeak(t *testing.T) {
	var seen []string
	v := Validator{
		Estimator: EstimatorFunc(func(pw string, context []string) int {
			seen = context
			return 1
		}),
	}

	_, err := v.Validate("alice-password", []string{"alice@example.com"})
	var bad *BadPasswordError
	if !errors.As(err, &bad) || bad.Reason != Weak || bad.Score != 1 {
		t.Fatalf("expected Weak(1), got %v", err)
	}
	if len(seen) != 1 || seen[0] != "alice@example.com" {
		t.Fatalf("estimator context = %v", seen)
	}

	v.MinScore = 1
	if _, err := v.Validate("alice-password", nil); err != nil {
		t.Fatalf("expected score 1 to satisfy MinScore 1, got %v", err)
	}
}

func TestZxcvbnEstimatorPenalizesContext(t *testing.T) {
	v := Validator{Estimator: ZxcvbnEstimator{}}

	if _, err := v.Validate("password", nil); err == nil {
		t.Fatal("expected a dictionary password to be rejected")
	}
	if _, err := v.Validate("correct horse battery staple tangerine", nil); err != nil {
		t.Fatalf("expected a long passphrase to pass, got %v", err)
	}
}

func TestValidPasswordIsRedacted(t *testing.T) {
	p, err := Validate("super-secret-value", nil)
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}

	for _, format := range []string{"%v", "%+v", "%#v", "%s", "%q", "%x"} {
		out := fmt.Sprintf(format, p)
		if strings.Contains(out, "super-secret") {
			t.Fatalf("format %s leaked password: %s", format, out)
		}
	}
	if out := fmt.Sprintf("%v", struct{ P ValidPassword }{p}); strings.Contains(out, "secret") {
		t.Fatalf("nested format leaked password: %s", out)
	}
}
