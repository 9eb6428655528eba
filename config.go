package authcore

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/MrEthical07/authcore/password"
)

// Config is the complete configuration of a [Manager].
//
// Config instances are intended to be configured during initialization and
// then treated as immutable.
type Config struct {
	Session  SessionConfig  `toml:"session"`
	Password PasswordConfig `toml:"password"`
	Security SecurityConfig `toml:"security"`
	Cookie   CookieConfig   `toml:"cookie"`
	Token    TokenConfig    `toml:"token"`
	Audit    AuditConfig    `toml:"audit"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Store    StoreConfig    `toml:"store"`
	Log      LogConfig      `toml:"log"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls how the Redis session store keys and expires records.
type SessionConfig struct {
	Prefix           string        `toml:"prefix"`
	IdleTTL          time.Duration `toml:"idle_ttl"`
	AbsoluteLifetime time.Duration `toml:"absolute_lifetime"` // 0 disables the cap
	Sliding          bool          `toml:"sliding"`
	JitterEnabled    bool          `toml:"jitter_enabled"`
	JitterRange      time.Duration `toml:"jitter_range"`
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the hashing parameters and the password policy.
type PasswordConfig struct {
	Memory      uint32 `toml:"memory"` // KiB
	Time        uint32 `toml:"time"`
	Parallelism uint8  `toml:"parallelism"`
	SaltLength  uint32 `toml:"salt_length"`
	KeyLength   uint32 `toml:"key_length"`

	// LegacyBcrypt keeps bcrypt hashes verifiable.
	LegacyBcrypt bool `toml:"legacy_bcrypt"`
	BcryptCost   int  `toml:"bcrypt_cost"`

	// UpgradeOnLogin rehashes a password after a successful login when the
	// stored hash came from another algorithm or weaker parameters.
	UpgradeOnLogin bool `toml:"upgrade_on_login"`

	StrengthCheck    bool `toml:"strength_check"`
	MinStrengthScore int  `toml:"min_strength_score"`
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig controls login throttling and revocation.
type SecurityConfig struct {
	ProductionMode        bool          `toml:"production_mode"`
	MaxLoginAttempts      int           `toml:"max_login_attempts"`
	LoginCooldownDuration time.Duration `toml:"login_cooldown"`
	EnableIPThrottle      bool          `toml:"ip_throttle"`

	RevokeSessionsOnPasswordChange bool `toml:"revoke_sessions_on_password_change"`
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig describes the cookie carrying the session token.
type CookieConfig struct {
	Name     string `toml:"name"` // empty: use the backend's name
	Path     string `toml:"path"`
	Domain   string `toml:"domain"`
	Secure   bool   `toml:"secure"`
	HTTPOnly bool   `toml:"http_only"`
	SameSite string `toml:"same_site"` // "lax", "strict" or "none"
	MaxAge   int    `toml:"max_age"`
}

// SameSiteMode maps SameSite to its net/http value.
func (c CookieConfig) SameSiteMode() http.SameSite {
	switch strings.ToLower(c.SameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "lax", "":
		return http.SameSiteLaxMode
	default:
		return http.SameSiteDefaultMode
	}
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig enables signed session tokens. Keys are never read from files.
type TokenConfig struct {
	Signed        bool          `toml:"signed"`
	SigningMethod string        `toml:"signing_method"` // "ed25519" (default), "hs256" optional
	Issuer        string        `toml:"issuer"`
	Audience      string        `toml:"audience"`
	Leeway        time.Duration `toml:"leeway"`
	KeyID         string        `toml:"key_id"`
	PrivateKey    []byte        `toml:"-"`
	PublicKey     []byte        `toml:"-"`
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `toml:"enabled"`
	BufferSize int  `toml:"buffer_size"`
	DropIfFull bool `toml:"drop_if_full"`
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool `toml:"enabled"`
	EnableLatencyHistograms bool `toml:"latency_histograms"`
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig locates the session Redis and the user database. It is read by
// the commands; the library itself takes ready clients.
type StoreConfig struct {
	RedisAddr     string `toml:"redis_addr"`
	RedisDB       int    `toml:"redis_db"`
	RedisPassword string `toml:"redis_password"`
	SQLDialect    string `toml:"sql_dialect"`
	SQLDSN        string `toml:"sql_dsn"`
}

// LogConfig sets the go-log level of every authcore subsystem.
type LogConfig struct {
	Level string `toml:"level"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	argon := password.DefaultArgon2Config()
	return Config{
		Session: SessionConfig{
			Prefix:           "as",
			IdleTTL:          24 * time.Hour,
			AbsoluteLifetime: 7 * 24 * time.Hour,
			Sliding:          true,
			JitterEnabled:    true,
			JitterRange:      30 * time.Second,
		},
		Password: PasswordConfig{
			Memory:           argon.Memory,
			Time:             argon.Time,
			Parallelism:      argon.Parallelism,
			SaltLength:       argon.SaltLength,
			KeyLength:        argon.KeyLength,
			LegacyBcrypt:     true,
			BcryptCost:       12,
			UpgradeOnLogin:   true,
			StrengthCheck:    true,
			MinStrengthScore: password.DefaultMinScore,
		},
		Security: SecurityConfig{
			MaxLoginAttempts:      5,
			LoginCooldownDuration: 15 * time.Minute,
			EnableIPThrottle:      true,
		},
		Cookie: CookieConfig{
			Path:     "/",
			HTTPOnly: true,
			SameSite: "lax",
		},
		Token: TokenConfig{
			SigningMethod: "ed25519",
		},
		Audit: AuditConfig{
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Store: StoreConfig{
			RedisAddr:  "127.0.0.1:6379",
			SQLDialect: "sqlite",
			SQLDSN:     "file:authcore.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultConfig returns the defaults: argon2id v1 parameters with bcrypt kept
// for verification, 24h idle sessions capped at 7 days, 5 failed logins per
// 15 minutes.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// LoadConfigFile overlays the TOML file at path on the defaults and
// validates the result. Durations are written as strings ("15m").
func LoadConfigFile(path string) (Config, error) {
	cfg := defaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Registry builds the password registry described by c.Password.
func (c *Config) Registry() (*password.Registry, error) {
	argon, err := password.NewArgon2(password.Argon2Config{
		Memory:      c.Password.Memory,
		Time:        c.Password.Time,
		Parallelism: c.Password.Parallelism,
		SaltLength:  c.Password.SaltLength,
		KeyLength:   c.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	if !c.Password.LegacyBcrypt {
		return password.NewRegistry(argon, argon)
	}
	bc, err := password.NewBcrypt(c.Password.BcryptCost)
	if err != nil {
		return nil, err
	}
	return password.NewRegistry(argon, argon, bc)
}

// Validator returns the password policy for new passwords.
func (c *Config) Validator() password.Validator {
	if !c.Password.StrengthCheck {
		return password.Validator{}
	}
	return password.Validator{
		Estimator: password.ZxcvbnEstimator{},
		MinScore:  c.Password.MinStrengthScore,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	// Session
	if strings.TrimSpace(c.Session.Prefix) == "" {
		return errors.New("Session Prefix must not be empty")
	}
	if strings.ContainsAny(c.Session.Prefix, " :") {
		return errors.New("Session Prefix must not contain spaces or ':'")
	}
	if c.Session.IdleTTL <= 0 {
		return errors.New("Session IdleTTL must be > 0")
	}
	if c.Session.AbsoluteLifetime < 0 {
		return errors.New("Session AbsoluteLifetime must be >= 0")
	}
	if c.Session.AbsoluteLifetime > 0 && c.Session.AbsoluteLifetime < c.Session.IdleTTL {
		return errors.New("Session AbsoluteLifetime must be >= IdleTTL")
	}
	if c.Session.JitterRange < 0 {
		return errors.New("Session JitterRange must be >= 0")
	}
	if c.Session.JitterRange > time.Duration((math.MaxInt64-1)/2) {
		return errors.New("Session JitterRange is too large")
	}
	if c.Session.JitterEnabled && c.Session.JitterRange <= 0 {
		return errors.New("Session JitterRange must be > 0 when JitterEnabled is true")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.LegacyBcrypt && (c.Password.BcryptCost < 4 || c.Password.BcryptCost > 31) {
		return errors.New("Password BcryptCost must be between 4 and 31")
	}
	if c.Password.StrengthCheck && (c.Password.MinStrengthScore < 0 || c.Password.MinStrengthScore > 4) {
		return errors.New("Password MinStrengthScore must be between 0 and 4")
	}

	// Security
	if c.Security.MaxLoginAttempts <= 0 {
		return errors.New("Security MaxLoginAttempts must be > 0")
	}
	if c.Security.LoginCooldownDuration <= 0 {
		return errors.New("Security LoginCooldownDuration must be > 0")
	}
	if c.Security.ProductionMode {
		if !c.Cookie.Secure {
			return errors.New("Cookie Secure must be true in ProductionMode")
		}
		if !c.Cookie.HTTPOnly {
			return errors.New("Cookie HTTPOnly must be true in ProductionMode")
		}
		if c.Password.StrengthCheck && c.Password.MinStrengthScore < password.DefaultMinScore {
			return errors.New("Password MinStrengthScore is too low for ProductionMode")
		}
	}

	// Cookie
	switch strings.ToLower(c.Cookie.SameSite) {
	case "", "lax", "strict":
	case "none":
		if !c.Cookie.Secure {
			return errors.New("Cookie SameSite=none requires Secure")
		}
	default:
		return errors.New("Cookie SameSite must be 'lax', 'strict' or 'none'")
	}
	if c.Cookie.MaxAge < 0 {
		return errors.New("Cookie MaxAge must be >= 0")
	}

	// Token
	if c.Token.Signed {
		if c.Token.SigningMethod != "ed25519" && c.Token.SigningMethod != "hs256" {
			return errors.New("unsupported Token signing method")
		}
		if c.Token.SigningMethod == "ed25519" && (len(c.Token.PrivateKey) == 0 || len(c.Token.PublicKey) == 0) {
			return errors.New("ed25519 requires PrivateKey and PublicKey")
		}
		if c.Token.SigningMethod == "hs256" && len(c.Token.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
		if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
			return errors.New("Token Leeway must be between 0 and 2m")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Audit is enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	// Store
	switch c.Store.SQLDialect {
	case "", "postgres", "sqlite":
	default:
		return errors.New("Store SQLDialect must be 'postgres' or 'sqlite'")
	}
	if c.Store.RedisDB < 0 {
		return errors.New("Store RedisDB must be >= 0")
	}

	// Log
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error", "dpanic", "panic", "fatal":
	default:
		return errors.New("Log Level is invalid")
	}

	return nil
}
