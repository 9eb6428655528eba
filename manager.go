package authcore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/session"
)

// Revoker deletes every stored session of a user except the listed ones and
// returns how many were removed. The Redis and in-memory stores implement it.
type Revoker interface {
	DeleteAllForUser(ctx context.Context, userID string, except ...session.ID) (int, error)
}

// Manager drives the session lifecycle for a transport: acquiring sessions
// from tokens, password login with throttling, logout, password changes and
// saving. It adds metrics and audit events around the session core.
//
// Manager is safe for concurrent use. The sessions it returns are not; each
// belongs to one request.
type Manager[U session.User, D any] struct {
	config    Config
	backend   session.Backend[U, D]
	registry  *password.Registry
	validator password.Validator
	limiter   rate.LoginLimiter
	revoker   Revoker
	audit     *audit.Dispatcher
	metrics   *Metrics
	closed    atomic.Bool

	// sharedThrottle is set when the limiter counts in Redis.
	sharedThrottle bool
}

// Acquire returns the session for token, or a new anonymous session when the
// token is empty, malformed, unknown or expired. A new session reports
// IsNew so the transport can hand its ID back to the client.
func (m *Manager[U, D]) Acquire(ctx context.Context, token string) (*session.Session[U, D], error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}

	sess, err := session.Acquire(ctx, m.backend, token, session.WithRegistry(m.registry))
	if err != nil {
		return nil, err
	}

	if sess.IsNew() {
		m.metrics.Inc(MetricSessionCreated)
		if token != "" {
			log.Debugw("session renewed", "session", sess.ID().String())
		}
	} else {
		m.metrics.Inc(MetricSessionLoaded)
	}
	return sess, nil
}

// Login authenticates sess with email and raw. Unknown email, missing
// credential and wrong password all return ErrInvalidCredentials and leave
// the session as it was. Once the email or the client IP (see
// [WithClientIP]) spends its failure budget, Login returns
// ErrLoginRateLimited without checking the password.
func (m *Manager[U, D]) Login(ctx context.Context, sess *session.Session[U, D], email, raw string) error {
	if m.closed.Load() {
		return ErrManagerClosed
	}

	if m.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			m.metrics.Observe(MetricLoginLatency, time.Since(start))
		}()
	}

	ip := ClientIPFromContext(ctx)
	identifier := normalizeIdentifier(email)

	if err := m.limiter.CheckLogin(ctx, identifier, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			m.metrics.Inc(MetricLoginRateLimited)
			m.emit(ctx, audit.Event{
				Type:      audit.TypeLoginRateLimit,
				SessionID: sess.ID().String(),
				IP:        ip,
				Reason:    "rate_limited",
			})
			return ErrLoginRateLimited
		}
		return fmt.Errorf("login throttle: %w", err)
	}

	_, ok, err := sess.LoginByPassword(ctx, email, raw)
	if err != nil {
		return err
	}

	if !ok {
		m.metrics.Inc(MetricLoginFailure)
		if err := m.limiter.IncrementLogin(ctx, identifier, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
			log.Warnw("record failed login", "err", err)
		}
		m.emit(ctx, audit.Event{
			Type:      audit.TypeLogin,
			SessionID: sess.ID().String(),
			IP:        ip,
			Reason:    "invalid_credentials",
		})
		return ErrInvalidCredentials
	}

	if err := m.limiter.ResetLogin(ctx, identifier, ip); err != nil {
		log.Warnw("reset login throttle", "err", err)
	}

	userID, _ := sess.UserID()
	m.metrics.Inc(MetricLoginSuccess)
	m.emit(ctx, audit.Event{
		Type:      audit.TypeLogin,
		UserID:    userID,
		SessionID: sess.ID().String(),
		IP:        ip,
		Success:   true,
	})

	if m.config.Password.UpgradeOnLogin {
		m.rehash(ctx, sess, raw)
	}
	return nil
}

// rehash replaces a stored hash produced by another algorithm or weaker
// parameters. Failures are logged; the login already succeeded.
func (m *Manager[U, D]) rehash(ctx context.Context, sess *session.Session[U, D], raw string) {
	user, ok, err := sess.User(ctx)
	if err != nil || !ok {
		return
	}
	hashed, ok := user.HashedPassword()
	if !ok || !m.registry.NeedsRehash(hashed) {
		return
	}

	// Legacy hashes may hold passwords outside today's length bounds.
	valid, err := password.Validate(raw, nil)
	if err != nil {
		log.Debugw("skip rehash, password outside bounds", "user", user.UserID())
		return
	}

	from := hashed.Algorithm()
	if err := sess.UpdateUserPassword(ctx, valid); err != nil {
		log.Warnw("rehash password", "user", user.UserID(), "err", err)
		return
	}

	m.metrics.Inc(MetricPasswordRehash)
	m.emit(ctx, audit.Event{
		Type:      audit.TypePasswordRehash,
		UserID:    user.UserID(),
		SessionID: sess.ID().String(),
		Success:   true,
		Metadata: map[string]string{
			"from": from,
			"to":   m.registry.GeneratorID(),
		},
	})
	log.Infow("password rehashed", "user", user.UserID(), "from", from, "to", m.registry.GeneratorID())
}

// Logout clears the authenticated user of sess. It is idempotent; only an
// actual logout is counted and audited.
func (m *Manager[U, D]) Logout(ctx context.Context, sess *session.Session[U, D]) {
	userID, ok := sess.UserID()
	sess.Logout()
	if !ok {
		return
	}

	m.metrics.Inc(MetricLogout)
	m.emit(ctx, audit.Event{
		Type:      audit.TypeLogout,
		UserID:    userID,
		SessionID: sess.ID().String(),
		IP:        ClientIPFromContext(ctx),
		Success:   true,
	})
}

// ForceLogin authenticates sess as userID without credentials, for flows
// that verified the user some other way (registration, impersonation).
func (m *Manager[U, D]) ForceLogin(ctx context.Context, sess *session.Session[U, D], userID string) {
	sess.ForceLogin(userID)
	if userID == "" {
		return
	}

	m.metrics.Inc(MetricForcedLogin)
	m.emit(ctx, audit.Event{
		Type:      audit.TypeForcedLogin,
		UserID:    userID,
		SessionID: sess.ID().String(),
		IP:        ClientIPFromContext(ctx),
		Success:   true,
	})
}

// ChangePassword validates raw against the password policy and stores its
// hash for the authenticated user. A rejected password returns an error
// matching both ErrWeakPassword and *password.BadPasswordError. With
// RevokeSessionsOnPasswordChange every other session of the user is deleted.
func (m *Manager[U, D]) ChangePassword(ctx context.Context, sess *session.Session[U, D], raw string) error {
	if m.closed.Load() {
		return ErrManagerClosed
	}

	userID, ok := sess.UserID()
	if !ok {
		return ErrNotAuthenticated
	}

	var inputs []string
	if user, found, err := sess.User(ctx); err != nil {
		return err
	} else if found {
		inputs = append(inputs, user.Email())
	}

	valid, err := m.validator.Validate(raw, inputs)
	if err != nil {
		m.metrics.Inc(MetricPasswordChangeRejected)
		m.emit(ctx, audit.Event{
			Type:      audit.TypePasswordChange,
			UserID:    userID,
			SessionID: sess.ID().String(),
			IP:        ClientIPFromContext(ctx),
			Reason:    rejectionReason(err),
		})
		return fmt.Errorf("%w: %w", ErrWeakPassword, err)
	}

	revoke := m.config.Security.RevokeSessionsOnPasswordChange
	if revoke && m.revoker == nil {
		return ErrRevocationUnsupported
	}

	if err := sess.UpdateUserPassword(ctx, valid); err != nil {
		return err
	}

	m.metrics.Inc(MetricPasswordChangeSuccess)
	m.emit(ctx, audit.Event{
		Type:      audit.TypePasswordChange,
		UserID:    userID,
		SessionID: sess.ID().String(),
		IP:        ClientIPFromContext(ctx),
		Success:   true,
	})

	if !revoke {
		return nil
	}

	n, err := m.revoker.DeleteAllForUser(ctx, userID, sess.ID())
	if err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	m.metrics.Add(MetricSessionsRevoked, uint64(n))
	m.emit(ctx, audit.Event{
		Type:      audit.TypeSessionsRevoked,
		UserID:    userID,
		SessionID: sess.ID().String(),
		Success:   true,
		Metadata:  map[string]string{"count": strconv.Itoa(n)},
	})
	log.Infow("sessions revoked after password change", "user", userID, "count", n)
	return nil
}

// Save persists sess if it has unsaved changes.
func (m *Manager[U, D]) Save(ctx context.Context, sess *session.Session[U, D]) error {
	if !sess.NeedsSave() {
		return nil
	}
	if err := sess.Save(ctx); err != nil {
		m.metrics.Inc(MetricSessionSaveFailure)
		return fmt.Errorf("%w: %w", ErrSessionSaveFailed, err)
	}
	m.metrics.Inc(MetricSessionSaved)
	return nil
}

// CookieName is the configured cookie name, else the backend's, else
// session.DefaultCookieName.
func (m *Manager[U, D]) CookieName() string {
	if m.config.Cookie.Name != "" {
		return m.config.Cookie.Name
	}
	return session.CookieName(m.backend)
}

// Config returns a copy of the configuration the Manager was built with.
func (m *Manager[U, D]) Config() Config {
	return cloneConfig(m.config)
}

func (m *Manager[U, D]) Registry() *password.Registry {
	return m.registry
}

func (m *Manager[U, D]) Metrics() *Metrics {
	return m.metrics
}

func (m *Manager[U, D]) MetricsSnapshot() MetricsSnapshot {
	return m.metrics.Snapshot()
}

// AuditDropped returns how many audit events were dropped on a full buffer.
func (m *Manager[U, D]) AuditDropped() uint64 {
	return m.audit.Dropped()
}

// Close flushes pending audit events. Later calls to Acquire, Login and
// ChangePassword fail with ErrManagerClosed.
func (m *Manager[U, D]) Close() {
	if m.closed.Swap(true) {
		return
	}
	m.audit.Close()
}

func (m *Manager[U, D]) emit(ctx context.Context, event audit.Event) {
	m.audit.Emit(ctx, event)
}

func normalizeIdentifier(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func rejectionReason(err error) string {
	var bad *password.BadPasswordError
	if errors.As(err, &bad) {
		return strings.ReplaceAll(bad.Reason.String(), " ", "_")
	}
	return "invalid"
}
