package rate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxLocalKeys bounds the in-process limiter map. Full buckets are swept
// when it is reached.
const maxLocalKeys = 10000

// Local is an in-process [LoginLimiter] for deployments without Redis.
// Each identifier and IP gets a token bucket of MaxLoginAttempts tokens that
// refills completely over LoginCooldownDuration; a failure spends a token.
type Local struct {
	config Config
	every  rate.Limit
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func NewLocal(cfg Config) *Local {
	burst := max(cfg.MaxLoginAttempts, 1)
	cooldown := cfg.LoginCooldownDuration
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &Local{
		config:  cfg,
		every:   rate.Every(cooldown / time.Duration(burst)),
		now:     time.Now,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (l *Local) burst() int { return max(l.config.MaxLoginAttempts, 1) }

func (l *Local) bucket(key string, create bool) *rate.Limiter {
	b, ok := l.buckets[key]
	if ok || !create {
		return b
	}
	if len(l.buckets) >= maxLocalKeys {
		l.sweep()
	}
	b = rate.NewLimiter(l.every, l.burst())
	l.buckets[key] = b
	return b
}

func (l *Local) sweep() {
	now := l.now()
	full := float64(l.burst())
	for k, b := range l.buckets {
		if b.TokensAt(now) >= full {
			delete(l.buckets, k)
		}
	}
}

func (l *Local) keys(identifier, ip string) []string {
	keys := []string{"u:" + identifier}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, "i:"+ip)
	}
	return keys
}

func (l *Local) CheckLogin(_ context.Context, identifier, ip string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for _, k := range l.keys(identifier, ip) {
		if b := l.bucket(k, false); b != nil && b.TokensAt(now) < 1 {
			return ErrRateLimited
		}
	}
	return nil
}

func (l *Local) IncrementLogin(_ context.Context, identifier, ip string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	limited := false
	for _, k := range l.keys(identifier, ip) {
		b := l.bucket(k, true)
		if !b.AllowN(now, 1) || b.TokensAt(now) < 1 {
			limited = true
		}
	}
	if limited {
		return ErrRateLimited
	}
	return nil
}

func (l *Local) ResetLogin(_ context.Context, identifier, _ string) error {
	l.mu.Lock()
	delete(l.buckets, "u:"+identifier)
	l.mu.Unlock()
	return nil
}
