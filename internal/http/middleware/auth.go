package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/portal-auth/internal/domain"
	"github.com/smallbiznis/portal-auth/internal/session"
)

const userContextKey = "currentUser"

// SessionGate resolves the request's session cookie to a user identity.
// The same gate backs two policies: browser routes redirect to the landing
// page when unauthenticated, API routes answer 401 with an error body.
type SessionGate struct {
	sessions session.Store
	codec    *session.Codec
	logger   *zap.Logger
}

func NewSessionGate(sessions session.Store, codec *session.Codec, logger *zap.Logger) *SessionGate {
	if logger == nil {
		logger = zap.L()
	}
	return &SessionGate{sessions: sessions, codec: codec, logger: logger}
}

// CurrentUser returns the identity attached by a gate middleware.
func CurrentUser(c *gin.Context) (domain.UserIdentity, bool) {
	value, ok := c.Get(userContextKey)
	if !ok {
		return domain.UserIdentity{}, false
	}
	user, ok := value.(domain.UserIdentity)
	return user, ok
}

// RequireAPI aborts with 401 and a JSON error body when unauthenticated.
func (g *SessionGate) RequireAPI() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := g.resolve(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		c.Set(userContextKey, user)
		c.Next()
	}
}

// RequireWeb redirects to the public landing page when unauthenticated.
func (g *SessionGate) RequireWeb() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := g.resolve(c)
		if !ok {
			c.Redirect(http.StatusFound, "/")
			c.Abort()
			return
		}
		c.Set(userContextKey, user)
		c.Next()
	}
}

// resolve deserializes the session cookie into a full identity. Every
// failure mode here means "not authenticated", never a hard error: an
// unknown or expired session is an expected state for a browser.
func (g *SessionGate) resolve(c *gin.Context) (domain.UserIdentity, bool) {
	cookie, err := c.Request.Cookie(session.CookieName)
	if err != nil || cookie.Value == "" {
		return domain.UserIdentity{}, false
	}

	ctx := c.Request.Context()
	sess, err := g.sessions.Get(ctx, cookie.Value)
	if err != nil {
		g.logger.Error("session lookup failed", zap.Error(err))
		return domain.UserIdentity{}, false
	}
	if sess == nil {
		return domain.UserIdentity{}, false
	}
	if sess.Expired(time.Now()) {
		_ = g.sessions.Delete(ctx, cookie.Value)
		return domain.UserIdentity{}, false
	}

	user, err := g.codec.Deserialize(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownSession) {
			// The backing record vanished; drop the orphaned session.
			_ = g.sessions.Delete(ctx, cookie.Value)
		} else {
			g.logger.Error("session deserialize failed", zap.Error(err))
		}
		return domain.UserIdentity{}, false
	}
	return user, true
}
