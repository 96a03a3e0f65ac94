package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/portal-auth/internal/service/identity"
	"github.com/smallbiznis/portal-auth/internal/session"
)

const failureRedirect = "/?error=auth_failed"

// AuthHandler owns the login, callback, and logout endpoints. Failures on
// the callback always redirect with the generic indicator; the underlying
// cause is logged server-side and never reaches the client.
type AuthHandler struct {
	flow       *identity.FlowService
	sessions   session.Store
	codec      *session.Codec
	cookieOpts session.CookieOptions
	sessionTTL time.Duration
	logger     *zap.Logger
}

func NewAuthHandler(
	flow *identity.FlowService,
	sessions session.Store,
	codec *session.Codec,
	cookieOpts session.CookieOptions,
	sessionTTL time.Duration,
	logger *zap.Logger,
) *AuthHandler {
	if logger == nil {
		logger = zap.L()
	}
	return &AuthHandler{
		flow:       flow,
		sessions:   sessions,
		codec:      codec,
		cookieOpts: cookieOpts,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

// Login begins the authorization-code flow for the named provider.
func (h *AuthHandler) Login(c *gin.Context) {
	providerName := c.Param("provider")

	authURL, err := h.flow.Begin(c.Request.Context(), providerName)
	if err != nil {
		h.logger.Warn("login begin failed",
			zap.String("provider", providerName),
			zap.Error(err),
		)
		c.Redirect(http.StatusFound, failureRedirect)
		return
	}
	c.Redirect(http.StatusFound, authURL)
}

// Callback consumes the provider redirect, reconciles the local identity,
// and establishes the session.
func (h *AuthHandler) Callback(c *gin.Context) {
	providerName := c.Param("provider")

	if errParam := c.Query("error"); errParam != "" {
		h.logger.Warn("provider returned error",
			zap.String("provider", providerName),
			zap.String("error", errParam),
			zap.String("description", c.Query("error_description")),
		)
		c.Redirect(http.StatusFound, failureRedirect)
		return
	}

	code := c.Query("code")
	if code == "" {
		h.logger.Warn("callback missing code", zap.String("provider", providerName))
		c.Redirect(http.StatusFound, failureRedirect)
		return
	}

	user, err := h.flow.Complete(c.Request.Context(), providerName, code, c.Query("state"))
	if err != nil {
		h.logger.Error("oauth callback failed",
			zap.String("provider", providerName),
			zap.Error(err),
		)
		c.Redirect(http.StatusFound, failureRedirect)
		return
	}

	sessionID, err := session.GenerateID()
	if err != nil {
		h.logger.Error("session id generation failed", zap.Error(err))
		c.Redirect(http.StatusFound, failureRedirect)
		return
	}

	now := time.Now()
	expiresAt := now.Add(h.sessionTTL)
	if err := h.sessions.Create(c.Request.Context(), session.Session{
		ID:        sessionID,
		UserID:    h.codec.Serialize(user),
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}); err != nil {
		h.logger.Error("session create failed", zap.Error(err))
		c.Redirect(http.StatusFound, failureRedirect)
		return
	}

	session.SetCookie(c.Writer, sessionID, expiresAt, h.cookieOpts)

	h.logger.Info("login success",
		zap.Int64("user_id", user.ID),
		zap.String("provider", providerName),
	)
	c.Redirect(http.StatusFound, "/dashboard")
}

// Logout destroys the session best-effort and always redirects home.
func (h *AuthHandler) Logout(c *gin.Context) {
	if cookie, err := c.Request.Cookie(session.CookieName); err == nil && cookie.Value != "" {
		if err := h.sessions.Delete(c.Request.Context(), cookie.Value); err != nil {
			h.logger.Error("session delete failed", zap.Error(err))
		}
	}

	session.ClearCookie(c.Writer, h.cookieOpts)
	c.Redirect(http.StatusFound, "/")
}
