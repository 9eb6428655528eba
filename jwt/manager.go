package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/authcore/session"
)

// SigningMethod names the algorithm used for session tokens.
type SigningMethod string

const (
	MethodEd25519 SigningMethod = "ed25519"
	MethodHS256   SigningMethod = "hs256"
)

var (
	// ErrMalformedSessionID is returned by SessionID when a validly signed
	// token carries a sid that is not a canonical session ID.
	ErrMalformedSessionID = errors.New("token sid is not a session id")

	// ErrKeyID is returned when a token's kid header is absent or names a
	// key this Manager does not trust.
	ErrKeyID = errors.New("jwt: missing or untrusted kid")

	// ErrCannotSign is returned by Sign on a verify-only Manager.
	ErrCannotSign = errors.New("jwt: no signing key configured")
)

// defaultMaxFutureIAT bounds clock skew on the issuer side when
// Config.MaxFutureIAT is zero.
const defaultMaxFutureIAT = 10 * time.Minute

// Config defines the signing keys and validation rules for session tokens.
//
// TTL bounds how long a token is accepted. It should not be shorter than
// the session lifetime, or clients lose their session when the token
// expires.
type Config struct {
	TTL           time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	RequireIAT    bool
	MaxFutureIAT  time.Duration
	KeyID         string
	// VerifyKeys enables rotation: tokens must carry a kid found here.
	VerifyKeys map[string][]byte
}

// normalize fills defaults and rejects unusable settings.
func (c *Config) normalize() error {
	if c.TTL <= 0 {
		return errors.New("jwt: TTL must be positive")
	}
	if c.Leeway < 0 || c.Leeway > 2*time.Minute {
		return errors.New("jwt: Leeway must be within [0, 2m]")
	}
	if c.MaxFutureIAT == 0 {
		c.MaxFutureIAT = defaultMaxFutureIAT
	}
	if c.MaxFutureIAT < 0 || c.MaxFutureIAT > 24*time.Hour {
		return errors.New("jwt: MaxFutureIAT must be within (0, 24h]")
	}
	c.KeyID = strings.TrimSpace(c.KeyID)

	switch c.SigningMethod {
	case MethodHS256:
		if len(c.PrivateKey) == 0 {
			return errors.New("jwt: hs256 needs a shared secret in PrivateKey")
		}
	case MethodEd25519:
		if err := c.checkEdKeys(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("jwt: unknown signing method %q", c.SigningMethod)
	}

	if c.KeyID != "" && len(c.VerifyKeys) > 0 {
		if _, ok := c.VerifyKeys[c.KeyID]; !ok {
			return fmt.Errorf("jwt: KeyID %q has no entry in VerifyKeys", c.KeyID)
		}
	}
	return nil
}

func (c *Config) checkEdKeys() error {
	if len(c.PrivateKey) > 0 {
		if _, err := edPrivateKey(c.PrivateKey); err != nil {
			return err
		}
	}
	if len(c.PublicKey) > 0 {
		if _, err := edPublicKey(c.PublicKey); err != nil {
			return err
		}
	}
	if len(c.VerifyKeys) == 0 && len(c.PublicKey) == 0 {
		return errors.New("jwt: ed25519 needs PublicKey or VerifyKeys")
	}
	for kid, key := range c.VerifyKeys {
		if strings.TrimSpace(kid) == "" {
			return errors.New("jwt: VerifyKeys has a blank kid")
		}
		if _, err := edPublicKey(key); err != nil {
			return fmt.Errorf("jwt: verify key %q: %w", kid, err)
		}
	}
	return nil
}

// Manager signs session IDs into tokens and verifies them. It is immutable
// after construction and safe for concurrent use.
type Manager struct {
	config Config
	method jwt.SigningMethod
	now    func() time.Time
}

// SessionClaims is the payload of a session token.
type SessionClaims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a Manager. A Manager configured with
// only public keys can verify but not sign.
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	var method jwt.SigningMethod = jwt.SigningMethodEdDSA
	if cfg.SigningMethod == MethodHS256 {
		method = jwt.SigningMethodHS256
	}
	return &Manager{config: cfg, method: method, now: time.Now}, nil
}

// Sign returns a token carrying id.
func (j *Manager) Sign(id session.ID) (string, error) {
	if id.IsZero() {
		return "", errors.New("jwt: refusing to sign the zero session id")
	}
	key, err := j.signingKey()
	if err != nil {
		return "", err
	}

	now := j.now()
	claims := SessionClaims{SID: id.String()}
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(j.config.TTL))
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.Issuer = j.config.Issuer
	if j.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{j.config.Audience}
	}

	token := jwt.NewWithClaims(j.method, claims)
	if j.config.KeyID != "" {
		token.Header["kid"] = j.config.KeyID
	}
	return token.SignedString(key)
}

func (j *Manager) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{j.method.Alg()}),
		jwt.WithTimeFunc(j.now),
		jwt.WithExpirationRequired(),
	}
	if j.config.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.RequireIAT {
		opts = append(opts, jwt.WithIssuedAt())
	}
	if j.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.config.Issuer))
	}
	if j.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(j.config.Audience))
	}
	return opts
}

// keyFor picks the verification key for t. With VerifyKeys set the kid
// selects the key; with only KeyID set the kid must equal it.
func (j *Manager) keyFor(t *jwt.Token) (any, error) {
	if t.Method.Alg() != j.method.Alg() {
		return nil, fmt.Errorf("jwt: token signed with %s", t.Method.Alg())
	}
	kid, _ := t.Header["kid"].(string)

	if len(j.config.VerifyKeys) > 0 {
		raw, ok := j.config.VerifyKeys[kid]
		if kid == "" || !ok {
			return nil, ErrKeyID
		}
		return j.verificationKey(raw)
	}
	if j.config.KeyID != "" && kid != j.config.KeyID {
		return nil, ErrKeyID
	}

	if j.config.SigningMethod == MethodHS256 {
		return j.verificationKey(j.config.PrivateKey)
	}
	return j.verificationKey(j.config.PublicKey)
}

// Parse verifies tokenStr and returns its claims.
func (j *Manager) Parse(tokenStr string) (*SessionClaims, error) {
	token, err := jwt.NewParser(j.parserOptions()...).ParseWithClaims(tokenStr, &SessionClaims{}, j.keyFor)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.IssuedAt != nil && claims.IssuedAt.After(j.now().Add(j.config.MaxFutureIAT)) {
		return nil, fmt.Errorf("%w: issued in the future", jwt.ErrTokenUsedBeforeIssued)
	}
	return claims, nil
}

// SessionID verifies tokenStr and returns the session ID it carries.
func (j *Manager) SessionID(tokenStr string) (session.ID, error) {
	claims, err := j.Parse(tokenStr)
	if err != nil {
		return session.ID{}, err
	}
	id, err := session.ParseID(claims.SID)
	if err != nil {
		return session.ID{}, ErrMalformedSessionID
	}
	return id, nil
}

func (j *Manager) signingKey() (any, error) {
	if len(j.config.PrivateKey) == 0 {
		return nil, ErrCannotSign
	}
	if j.config.SigningMethod == MethodHS256 {
		return j.config.PrivateKey, nil
	}
	return edPrivateKey(j.config.PrivateKey)
}

func (j *Manager) verificationKey(raw []byte) (any, error) {
	if j.config.SigningMethod == MethodHS256 {
		return raw, nil
	}
	return edPublicKey(raw)
}

// edPrivateKey accepts a raw 64-byte key or a PKCS#8 PEM block.
func edPrivateKey(raw []byte) (ed25519.PrivateKey, error) {
	if len(raw) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(raw), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("jwt: ed25519 private key: %w", err)
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("jwt: PEM holds %T, not an ed25519 private key", parsed)
	}
	return key, nil
}

// edPublicKey accepts a raw 32-byte key or a PKIX PEM block.
func edPublicKey(raw []byte) (ed25519.PublicKey, error) {
	if len(raw) == ed25519.PublicKeySize {
		return ed25519.PublicKey(raw), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("jwt: ed25519 public key: %w", err)
	}
	key, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("jwt: PEM holds %T, not an ed25519 public key", parsed)
	}
	return key, nil
}
