package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"accountd/internal/session"
)

const sessionContextKey = "session"

// Sessions loads the caller's session from the signed cookie before the
// handler runs and saves it back afterwards. Handlers always see a session,
// possibly a fresh empty one.
//
// The session cookie must reach the response headers before the first body
// write, so c.Writer is wrapped to emit it lazily on first write; only the
// Redis save may trail the handler.
func Sessions(manager *session.Manager, codec *session.CookieCodec, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var sess *session.Session
		if sid, ok := codec.Decode(c.Request); ok {
			loaded, err := manager.Load(ctx, sid)
			if err != nil {
				log.Warn().Err(err).Msg("session load failed")
			}
			sess = loaded
		}
		fresh := sess == nil
		if fresh {
			sess = session.New()
		}
		c.Set(sessionContextKey, sess)

		w := &sessionWriter{
			ResponseWriter: c.Writer,
			manager:        manager,
			codec:          codec,
			sess:           sess,
			fresh:          fresh,
			log:            log,
		}
		c.Writer = w

		c.Next()

		// Handlers that never wrote still get their cookie: headers are
		// mutable until gin flushes them on the way out.
		w.emitCookie()

		if !sess.Modified() {
			return
		}
		if sess.Empty() {
			// Cleared (or never populated): drop the server-side state.
			if !fresh {
				if err := manager.Destroy(ctx, sess.ID); err != nil {
					log.Warn().Err(err).Msg("session destroy failed")
				}
			}
			return
		}
		if err := manager.Save(ctx, sess); err != nil {
			log.Warn().Err(err).Msg("session save failed")
		}
	}
}

// sessionWriter sets the session cookie immediately before the first header
// or body write, while the headers can still go out.
type sessionWriter struct {
	gin.ResponseWriter
	manager *session.Manager
	codec   *session.CookieCodec
	sess    *session.Session
	fresh   bool
	log     zerolog.Logger
	emitted bool
}

func (w *sessionWriter) WriteHeader(code int) {
	w.emitCookie()
	w.ResponseWriter.WriteHeader(code)
}

func (w *sessionWriter) WriteHeaderNow() {
	w.emitCookie()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *sessionWriter) Write(b []byte) (int, error) {
	w.emitCookie()
	return w.ResponseWriter.Write(b)
}

func (w *sessionWriter) WriteString(s string) (int, error) {
	w.emitCookie()
	return w.ResponseWriter.WriteString(s)
}

func (w *sessionWriter) emitCookie() {
	if w.emitted {
		return
	}
	w.emitted = true

	sess := w.sess
	if !sess.Modified() {
		return
	}
	if sess.Empty() {
		if !w.fresh {
			http.SetCookie(w.ResponseWriter, w.codec.Expired())
		}
		return
	}
	cookie, err := w.codec.Encode(sess.ID, sess.Persistent(), w.manager.TTLFor(sess))
	if err != nil {
		w.log.Warn().Err(err).Msg("session cookie encode failed")
		return
	}
	http.SetCookie(w.ResponseWriter, cookie)
}

// GetSession returns the request's session, nil if the Sessions middleware
// did not run.
func GetSession(c *gin.Context) *session.Session {
	v, ok := c.Get(sessionContextKey)
	if !ok {
		return nil
	}
	sess, ok := v.(*session.Session)
	if !ok {
		return nil
	}
	return sess
}

// RequireLogin guards a route: requests without a session identity are
// rejected before the handler is invoked.
func RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := GetSession(c)
		if sess == nil {
			RespondWithError(c, http.StatusUnauthorized, "please log in to access this resource")
			c.Abort()
			return
		}
		if id, ok := sess.Get("user_id"); !ok || id == "" {
			RespondWithError(c, http.StatusUnauthorized, "please log in to access this resource")
			c.Abort()
			return
		}
		c.Next()
	}
}
