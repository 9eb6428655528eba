package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"

	logging "github.com/ipfs/go-log/v2"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/session"
)

var log = logging.Logger("authcore/middleware")

type sessionContextKey struct{}

type options struct {
	codec        TokenCodec
	cookie       *authcore.CookieConfig
	errorHandler func(http.ResponseWriter, *http.Request, error)
	clientIP     func(*http.Request) string
}

// Option configures [Sessions].
type Option func(*options)

// WithCodec sets the token codec. The default is PlainCodec.
func WithCodec(c TokenCodec) Option {
	return func(o *options) { o.codec = c }
}

// WithCookie overrides the cookie attributes from the Manager's config.
func WithCookie(c authcore.CookieConfig) Option {
	return func(o *options) { o.cookie = &c }
}

// WithErrorHandler replaces the plain 503/500 responses for backend errors.
func WithErrorHandler(fn func(http.ResponseWriter, *http.Request, error)) Option {
	return func(o *options) { o.errorHandler = fn }
}

// WithClientIP sets how the client address is derived. The default is the
// host part of RemoteAddr; deployments behind a proxy supply their own.
func WithClientIP(fn func(*http.Request) string) Option {
	return func(o *options) { o.clientIP = fn }
}

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	if errors.Is(err, authcore.ErrSessionSaveFailed) {
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}
	http.Error(w, "session unavailable", http.StatusServiceUnavailable)
}

// RemoteIP returns the host part of r.RemoteAddr.
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Sessions returns middleware that attaches a session to every request.
func Sessions[U session.User, D any](m *authcore.Manager[U, D], opts ...Option) func(http.Handler) http.Handler {
	o := options{
		codec:        PlainCodec{},
		errorHandler: defaultErrorHandler,
		clientIP:     RemoteIP,
	}
	for _, opt := range opts {
		opt(&o)
	}
	cookieCfg := m.Config().Cookie
	if o.cookie != nil {
		cookieCfg = *o.cookie
	}
	name := m.CookieName()
	if cookieCfg.Name != "" {
		name = cookieCfg.Name
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := authcore.WithClientIP(r.Context(), o.clientIP(r))

			var token string
			if c, err := r.Cookie(name); err == nil {
				token = o.codec.Decode(c.Value)
			}

			sess, err := m.Acquire(ctx, token)
			if err != nil {
				log.Warnw("acquire session", "err", err)
				o.errorHandler(w, r, err)
				return
			}

			if sess.IsNew() {
				// The cookie is only useful if the identifier it carries is stored.
				sess.MarkDirty()
				value, err := o.codec.Encode(sess.ID())
				if err != nil {
					log.Errorw("encode session token", "err", err)
					o.errorHandler(w, r, err)
					return
				}
				http.SetCookie(w, NewCookie(name, value, cookieCfg))
			}

			ctx = context.WithValue(ctx, sessionContextKey{}, sess)
			sw := &sessionWriter{
				ResponseWriter: w,
				save: func() error {
					return m.Save(ctx, sess)
				},
				onError: func(err error) {
					log.Warnw("save session", "session", sess.ID().String(), "err", err)
					o.errorHandler(w, r, err)
				},
			}
			next.ServeHTTP(sw, r.WithContext(ctx))
			sw.flush()
		})
	}
}

// NewCookie builds the session cookie carrying value.
func NewCookie(name, value string, cfg authcore.CookieConfig) *http.Cookie {
	path := cfg.Path
	if path == "" {
		path = "/"
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   cfg.Domain,
		Secure:   cfg.Secure,
		HttpOnly: cfg.HTTPOnly,
		SameSite: cfg.SameSiteMode(),
		MaxAge:   cfg.MaxAge,
	}
}

// FromContext returns the session attached by [Sessions].
func FromContext[U session.User, D any](ctx context.Context) (*session.Session[U, D], bool) {
	sess, ok := ctx.Value(sessionContextKey{}).(*session.Session[U, D])
	return sess, ok
}

// RequireAuth rejects requests whose session is anonymous with 401. It must
// run inside [Sessions] with the same type parameters.
func RequireAuth[U session.User, D any](next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := FromContext[U, D](r.Context())
		if !ok || !sess.IsAuthenticated() {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// sessionWriter saves the session before the first header or body byte
// leaves, so a failed save can still become an error response.
type sessionWriter struct {
	http.ResponseWriter
	save    func() error
	onError func(error)
	done    bool
	failed  bool
}

func (w *sessionWriter) flush() bool {
	if !w.done {
		w.done = true
		if err := w.save(); err != nil {
			w.failed = true
			w.onError(err)
		}
	}
	return !w.failed
}

func (w *sessionWriter) WriteHeader(code int) {
	if w.flush() {
		w.ResponseWriter.WriteHeader(code)
	}
}

func (w *sessionWriter) Write(b []byte) (int, error) {
	if !w.flush() {
		return len(b), nil
	}
	return w.ResponseWriter.Write(b)
}

func (w *sessionWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
