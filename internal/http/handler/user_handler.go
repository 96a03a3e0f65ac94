package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/portal-auth/internal/http/middleware"
)

// Pinger reports backing store reachability. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// UserHandler serves the authenticated-identity API.
type UserHandler struct {
	db     Pinger
	logger *zap.Logger
}

func NewUserHandler(db Pinger, logger *zap.Logger) *UserHandler {
	if logger == nil {
		logger = zap.L()
	}
	return &UserHandler{db: db, logger: logger}
}

// CurrentUser returns the session's UserIdentity as JSON. Token values
// never appear in the response; the struct tags strip them.
func (h *UserHandler) CurrentUser(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// Healthz reports liveness and backing store connectivity.
func (h *UserHandler) Healthz(c *gin.Context) {
	if h.db != nil {
		if err := h.db.Ping(c.Request.Context()); err != nil {
			h.logger.Error("database ping failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
