// Package ginsession attaches authcore sessions to gin requests.
package ginsession

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	logging "github.com/ipfs/go-log/v2"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/middleware"
	"github.com/MrEthical07/authcore/session"
)

var log = logging.Logger("authcore/ginsession")

const contextKey = "authcore.session"

// Middleware acquires the session named by the request cookie, stores it in
// the gin context and saves it before the response is written. A nil codec
// means middleware.PlainCodec.
func Middleware[U session.User, D any](m *authcore.Manager[U, D], codec middleware.TokenCodec) gin.HandlerFunc {
	if codec == nil {
		codec = middleware.PlainCodec{}
	}
	cookieCfg := m.Config().Cookie
	name := m.CookieName()

	return func(c *gin.Context) {
		ctx := authcore.WithClientIP(c.Request.Context(), c.ClientIP())

		var token string
		if v, err := c.Cookie(name); err == nil {
			token = codec.Decode(v)
		}

		sess, err := m.Acquire(ctx, token)
		if err != nil {
			log.Warnw("acquire session", "err", err)
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}

		if sess.IsNew() {
			sess.MarkDirty()
			value, err := codec.Encode(sess.ID())
			if err != nil {
				log.Errorw("encode session token", "err", err)
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			http.SetCookie(c.Writer, middleware.NewCookie(name, value, cookieCfg))
		}

		c.Request = c.Request.WithContext(ctx)
		c.Set(contextKey, sess)

		w := &saveWriter{
			ResponseWriter: c.Writer,
			save: func() error {
				return m.Save(ctx, sess)
			},
		}
		c.Writer = w
		c.Next()
		if !w.commit() {
			c.Abort()
		}
	}
}

// FromContext returns the session stored by [Middleware].
func FromContext[U session.User, D any](c *gin.Context) (*session.Session[U, D], bool) {
	v, ok := c.Get(contextKey)
	if !ok {
		return nil, false
	}
	sess, ok := v.(*session.Session[U, D])
	return sess, ok
}

// RequireAuth aborts with 401 unless the session is authenticated.
func RequireAuth[U session.User, D any]() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := FromContext[U, D](c)
		if !ok || !sess.IsAuthenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// saveWriter runs save before anything reaches the client. gin buffers the
// status until the first write, so a failed save can still turn into 500.
type saveWriter struct {
	gin.ResponseWriter
	save   func() error
	done   bool
	failed bool
}

func (w *saveWriter) commit() bool {
	if w.done {
		return !w.failed
	}
	w.done = true
	if err := w.save(); err != nil {
		w.failed = true
		status := http.StatusServiceUnavailable
		if errors.Is(err, authcore.ErrSessionSaveFailed) {
			status = http.StatusInternalServerError
		}
		log.Warnw("save session", "err", err)
		w.ResponseWriter.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.ResponseWriter.WriteHeader(status)
		_, _ = w.ResponseWriter.WriteString(http.StatusText(status))
	}
	return !w.failed
}

func (w *saveWriter) Write(b []byte) (int, error) {
	if !w.commit() {
		return len(b), nil
	}
	return w.ResponseWriter.Write(b)
}

func (w *saveWriter) WriteString(s string) (int, error) {
	if !w.commit() {
		return len(s), nil
	}
	return w.ResponseWriter.WriteString(s)
}

func (w *saveWriter) WriteHeaderNow() {
	if w.commit() {
		w.ResponseWriter.WriteHeaderNow()
	}
}

func (w *saveWriter) Flush() {
	if w.commit() {
		w.ResponseWriter.Flush()
	}
}
