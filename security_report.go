package authcore

import (
	"github.com/MrEthical07/authcore/internal/security"
	"github.com/MrEthical07/authcore/password"
)

type SecurityReport = security.Report

type PasswordReport = security.PasswordReport

// SecurityReport summarizes the effective security settings of m. Warnings
// name settings a production deployment should revisit.
func (m *Manager[U, D]) SecurityReport() SecurityReport {
	return buildSecurityReport(m.config, m.registry, m.sharedThrottle)
}

// SecurityReport summarizes c as a Manager built from it would run. The
// throttle is reported as per process because no Redis client is known.
func (c *Config) SecurityReport() (SecurityReport, error) {
	reg, err := c.Registry()
	if err != nil {
		return SecurityReport{}, err
	}
	return buildSecurityReport(*c, reg, false), nil
}

func buildSecurityReport(cfg Config, reg *password.Registry, shared bool) SecurityReport {
	return security.BuildReport(security.ReportInput{
		ProductionMode: cfg.Security.ProductionMode,
		Password: security.PasswordReport{
			Algorithm:   reg.GeneratorID(),
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
			Verifiers:   reg.VerifierIDs(),
		},
		UpgradeOnLogin:                 cfg.Password.UpgradeOnLogin,
		StrengthCheck:                  cfg.Password.StrengthCheck,
		MinStrengthScore:               cfg.Password.MinStrengthScore,
		MaxLoginAttempts:               cfg.Security.MaxLoginAttempts,
		LoginCooldownDuration:          cfg.Security.LoginCooldownDuration,
		SharedThrottle:                 shared,
		EnableIPThrottle:               cfg.Security.EnableIPThrottle,
		RevokeSessionsOnPasswordChange: cfg.Security.RevokeSessionsOnPasswordChange,
		Sliding:                        cfg.Session.Sliding,
		IdleTTL:                        cfg.Session.IdleTTL,
		AbsoluteLifetime:               cfg.Session.AbsoluteLifetime,
		SignedTokens:                   cfg.Token.Signed,
		SigningMethod:                  cfg.Token.SigningMethod,
		CookieSecure:                   cfg.Cookie.Secure,
		CookieHTTPOnly:                 cfg.Cookie.HTTPOnly,
		CookieSameSite:                 cfg.Cookie.SameSite,
		AuditEnabled:                   cfg.Audit.Enabled,
	})
}
