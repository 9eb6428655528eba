package security

import "time"

type PasswordReport struct {
	Algorithm   string
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	Verifiers   []string
}

type Report struct {
	ProductionMode          bool
	Argon2                  PasswordReport
	UpgradeOnLogin          bool
	StrengthCheckActive     bool
	MinStrengthScore        int
	RateLimitingActive      bool
	SharedRateLimiting      bool
	IPThrottleActive        bool
	SessionRevocationActive bool
	SlidingExpiration       bool
	IdleTTL                 time.Duration
	AbsoluteLifetime        time.Duration
	SignedTokens            bool
	SigningAlgorithm        string
	CookieSecure            bool
	CookieHTTPOnly          bool
	CookieSameSite          string
	AuditActive             bool
	// Warnings lists settings that weaken a production deployment.
	Warnings []string
}

type ReportInput struct {
	ProductionMode                 bool
	Password                       PasswordReport
	UpgradeOnLogin                 bool
	StrengthCheck                  bool
	MinStrengthScore               int
	MaxLoginAttempts               int
	LoginCooldownDuration          time.Duration
	SharedThrottle                 bool
	EnableIPThrottle               bool
	RevokeSessionsOnPasswordChange bool
	Sliding                        bool
	IdleTTL                        time.Duration
	AbsoluteLifetime               time.Duration
	SignedTokens                   bool
	SigningMethod                  string
	CookieSecure                   bool
	CookieHTTPOnly                 bool
	CookieSameSite                 string
	AuditEnabled                   bool
}

// BuildReport derives the report from input. It never fails.
func BuildReport(input ReportInput) Report {
	rateLimiting := input.MaxLoginAttempts > 0 &&
		input.LoginCooldownDuration > 0

	sameSite := input.CookieSameSite
	if sameSite == "" {
		sameSite = "lax"
	}

	signing := ""
	if input.SignedTokens {
		signing = input.SigningMethod
	}

	r := Report{
		ProductionMode:          input.ProductionMode,
		Argon2:                  input.Password,
		UpgradeOnLogin:          input.UpgradeOnLogin,
		StrengthCheckActive:     input.StrengthCheck,
		MinStrengthScore:        input.MinStrengthScore,
		RateLimitingActive:      rateLimiting,
		SharedRateLimiting:      rateLimiting && input.SharedThrottle,
		IPThrottleActive:        rateLimiting && input.EnableIPThrottle,
		SessionRevocationActive: input.RevokeSessionsOnPasswordChange,
		SlidingExpiration:       input.Sliding,
		IdleTTL:                 input.IdleTTL,
		AbsoluteLifetime:        input.AbsoluteLifetime,
		SignedTokens:            input.SignedTokens,
		SigningAlgorithm:        signing,
		CookieSecure:            input.CookieSecure,
		CookieHTTPOnly:          input.CookieHTTPOnly,
		CookieSameSite:          sameSite,
		AuditActive:             input.AuditEnabled,
	}
	r.Warnings = warnings(input, r)
	return r
}

func warnings(input ReportInput, r Report) []string {
	var out []string
	if !r.ProductionMode {
		out = append(out, "production mode is off")
	}
	if !r.CookieSecure {
		out = append(out, "session cookie is sent over plain HTTP")
	}
	if !r.CookieHTTPOnly {
		out = append(out, "session cookie is readable from scripts")
	}
	if r.CookieSameSite == "none" {
		out = append(out, "session cookie is sent on cross-site requests")
	}
	if !r.StrengthCheckActive {
		out = append(out, "new passwords are only length checked")
	}
	if !r.RateLimitingActive {
		out = append(out, "login throttling is disabled")
	} else if !r.SharedRateLimiting {
		out = append(out, "login throttling is per process")
	}
	if r.AbsoluteLifetime == 0 && r.SlidingExpiration {
		out = append(out, "sliding sessions have no absolute lifetime")
	}
	if len(input.Password.Verifiers) > 1 && !r.UpgradeOnLogin {
		out = append(out, "legacy hashes are verified but never upgraded")
	}
	return out
}
