package security

import (
	"slices"
	"testing"
	"time"
)

func hardened() ReportInput {
	return ReportInput{
		ProductionMode:        true,
		Password:              PasswordReport{Algorithm: "argon2id", Verifiers: []string{"argon2id"}},
		StrengthCheck:         true,
		MinStrengthScore:      3,
		MaxLoginAttempts:      5,
		LoginCooldownDuration: 15 * time.Minute,
		SharedThrottle:        true,
		EnableIPThrottle:      true,
		Sliding:               true,
		IdleTTL:               time.Hour,
		AbsoluteLifetime:      24 * time.Hour,
		CookieSecure:          true,
		CookieHTTPOnly:        true,
		CookieSameSite:        "strict",
		AuditEnabled:          true,
	}
}

func TestHardenedConfigHasNoWarnings(t *testing.T) {
	r := BuildReport(hardened())
	if len(r.Warnings) != 0 {
		t.Fatalf("warnings: %v", r.Warnings)
	}
	if !r.RateLimitingActive || !r.SharedRateLimiting || !r.IPThrottleActive {
		t.Fatalf("throttling flags: %+v", r)
	}
	if r.SigningAlgorithm != "" {
		t.Fatalf("signing algorithm without signed tokens: %q", r.SigningAlgorithm)
	}
}

func TestReportWarnings(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*ReportInput)
		want   string
	}{
		{"insecure cookie", func(in *ReportInput) { in.CookieSecure = false }, "session cookie is sent over plain HTTP"},
		{"script cookie", func(in *ReportInput) { in.CookieHTTPOnly = false }, "session cookie is readable from scripts"},
		{"cross site", func(in *ReportInput) { in.CookieSameSite = "none" }, "session cookie is sent on cross-site requests"},
		{"no strength", func(in *ReportInput) { in.StrengthCheck = false }, "new passwords are only length checked"},
		{"no throttle", func(in *ReportInput) { in.MaxLoginAttempts = 0 }, "login throttling is disabled"},
		{"local throttle", func(in *ReportInput) { in.SharedThrottle = false }, "login throttling is per process"},
		{"endless", func(in *ReportInput) { in.AbsoluteLifetime = 0 }, "sliding sessions have no absolute lifetime"},
		{"dev", func(in *ReportInput) { in.ProductionMode = false }, "production mode is off"},
		{"stale hashes", func(in *ReportInput) {
			in.Password.Verifiers = []string{"argon2id", "bcrypt"}
			in.UpgradeOnLogin = false
		}, "legacy hashes are verified but never upgraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := hardened()
			tt.modify(&in)
			r := BuildReport(in)
			if !slices.Contains(r.Warnings, tt.want) {
				t.Fatalf("warnings %v missing %q", r.Warnings, tt.want)
			}
		})
	}
}

func TestDisabledThrottleHidesDependentFlags(t *testing.T) {
	in := hardened()
	in.LoginCooldownDuration = 0
	r := BuildReport(in)
	if r.RateLimitingActive || r.SharedRateLimiting || r.IPThrottleActive {
		t.Fatalf("flags must follow RateLimitingActive: %+v", r)
	}
}

func TestSameSiteDefaultsToLax(t *testing.T) {
	in := hardened()
	in.CookieSameSite = ""
	if got := BuildReport(in).CookieSameSite; got != "lax" {
		t.Fatalf("same site=%q", got)
	}
}
