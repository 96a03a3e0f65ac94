package http

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/smallbiznis/portal-auth/internal/config"
	"github.com/smallbiznis/portal-auth/internal/http/handler"
	httpmiddleware "github.com/smallbiznis/portal-auth/internal/http/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(
	cfg config.Config,
	logger *zap.Logger,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	gate *httpmiddleware.SessionGate,
	rateLimiter *httpmiddleware.RateLimiter,
) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(logger))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(httpmiddleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	auth := r.Group("/auth")
	{
		auth.GET("/:provider", authHandler.Login)
		auth.GET("/:provider/callback", authHandler.Callback)
	}
	r.GET("/logout", authHandler.Logout)

	api := r.Group("/api")
	{
		api.GET("/healthz", userHandler.Healthz)
		api.GET("/user", gate.RequireAPI(), userHandler.CurrentUser)
	}

	r.GET("/dashboard", gate.RequireWeb(), func(c *gin.Context) {
		c.File(filepath.Join(cfg.StaticDir, "dashboard.html"))
	})

	attachStaticRoutes(r, cfg.StaticDir)

	return r
}

// attachStaticRoutes serves the public landing assets with an index.html
// fallback. API paths never fall through to static serving.
func attachStaticRoutes(r *gin.Engine, staticDir string) {
	indexPath := filepath.Join(staticDir, "index.html")

	r.NoRoute(func(c *gin.Context) {
		path := c.Request.URL.Path
		if isAPIPath(path) {
			c.Status(http.StatusNotFound)
			return
		}

		// The dashboard shell is only served through its gated route.
		if path == "/dashboard.html" {
			c.Redirect(http.StatusFound, "/dashboard")
			return
		}

		if filePath, ok := safeJoin(staticDir, path); ok {
			if info, err := os.Stat(filePath); err == nil && !info.IsDir() {
				c.File(filePath)
				return
			}
		}

		c.File(indexPath)
	})
}

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api") ||
		strings.HasPrefix(path, "/auth")
}

func safeJoin(baseDir, requestPath string) (string, bool) {
	trimmed := strings.TrimPrefix(requestPath, "/")
	cleaned := filepath.Clean(trimmed)
	if cleaned == "." {
		return filepath.Join(baseDir, cleaned), true
	}
	if strings.HasPrefix(cleaned, "..") {
		return "", false
	}
	return filepath.Join(baseDir, cleaned), true
}
