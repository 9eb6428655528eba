package authcore

import (
	"errors"

	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles a [Manager]. A Builder may be used once.
type Builder[U session.User, D any] struct {
	config   Config
	backend  session.Backend[U, D]
	redis    redis.UniversalClient
	registry *password.Registry

	auditSink AuditSink
	revoker   Revoker

	built bool
}

// New returns a Builder holding the default configuration.
func New[U session.User, D any]() *Builder[U, D] {
	return &Builder[U, D]{
		config: defaultConfig(),
	}
}

func (b *Builder[U, D]) WithConfig(cfg Config) *Builder[U, D] {
	b.config = cloneConfig(cfg)
	return b
}

// WithBackend sets the session and user backend. Required.
func (b *Builder[U, D]) WithBackend(backend session.Backend[U, D]) *Builder[U, D] {
	b.backend = backend
	return b
}

// WithRedis makes login throttling shared across processes. Without a
// client each process throttles on its own.
func (b *Builder[U, D]) WithRedis(client redis.UniversalClient) *Builder[U, D] {
	b.redis = client
	return b
}

// WithPasswordRegistry replaces the registry built from the password config.
func (b *Builder[U, D]) WithPasswordRegistry(r *password.Registry) *Builder[U, D] {
	b.registry = r
	return b
}

func (b *Builder[U, D]) WithAuditSink(sink AuditSink) *Builder[U, D] {
	b.auditSink = sink
	return b
}

// WithRevoker sets the session revoker used after a password change. When
// unset, a backend implementing [Revoker] is used.
func (b *Builder[U, D]) WithRevoker(r Revoker) *Builder[U, D] {
	b.revoker = r
	return b
}

func (b *Builder[U, D]) WithMetricsEnabled(enabled bool) *Builder[U, D] {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder[U, D]) WithLatencyHistograms(enabled bool) *Builder[U, D] {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and starts the audit dispatcher.
func (b *Builder[U, D]) Build() (*Manager[U, D], error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.backend == nil {
		return nil, ErrBackendRequired
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := SetLogLevel(cfg.Log.Level); err != nil {
		return nil, err
	}

	// -------- PASSWORDS --------
	registry := b.registry
	if registry == nil {
		r, err := cfg.Registry()
		if err != nil {
			return nil, err
		}
		registry = r
	}

	// -------- REVOCATION --------
	revoker := b.revoker
	if revoker == nil {
		if r, ok := any(b.backend).(Revoker); ok && canRevoke(r) {
			revoker = r
		}
	}
	if cfg.Security.RevokeSessionsOnPasswordChange && revoker == nil {
		return nil, ErrRevocationUnsupported
	}

	// -------- THROTTLING --------
	rateCfg := rate.Config{
		EnableIPThrottle:      cfg.Security.EnableIPThrottle,
		MaxLoginAttempts:      cfg.Security.MaxLoginAttempts,
		LoginCooldownDuration: cfg.Security.LoginCooldownDuration,
		Prefix:                cfg.Session.Prefix + "l",
	}
	var limiter rate.LoginLimiter
	if b.redis != nil {
		limiter = rate.New(b.redis, rateCfg)
	} else {
		if cfg.Security.ProductionMode {
			log.Warnw("no redis client, login throttling is per process")
		}
		limiter = rate.NewLocal(rateCfg)
	}

	m := &Manager[U, D]{
		config:    cfg,
		backend:   b.backend,
		registry:  registry,
		validator: cfg.Validator(),
		limiter:   limiter,
		revoker:   revoker,
		metrics:   NewMetrics(cfg.Metrics),

		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),

		sharedThrottle: b.redis != nil,
	}

	b.built = true
	log.Debugw("manager built",
		"generator", registry.GeneratorID(),
		"cookie", m.CookieName(),
		"shared_throttle", b.redis != nil,
		"audit", cfg.Audit.Enabled,
	)
	return m, nil
}

// canRevoke lets a composite backend report that its session store cannot
// revoke, even though the backend itself has DeleteAllForUser.
func canRevoke(r Revoker) bool {
	if c, ok := r.(interface{ CanRevoke() bool }); ok {
		return c.CanRevoke()
	}
	return true
}
