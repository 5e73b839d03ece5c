package server

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amberapp/amber-core/internal/config"
	"github.com/amberapp/amber-core/internal/logger"
)

// NewEngine builds the gin engine with recovery, request logging and the
// authenticated /api group, and registers all provided services on it.
func NewEngine(cfg *config.Config, registrars ...Registrar) *gin.Engine {
	if cfg.App.ENV != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	api := r.Group("/api", AuthMiddleware(cfg.Auth.JWTSecret))
	for _, reg := range registrars {
		reg.Register(api)
	}

	return r
}

// StartHTTPServer boots the HTTP server with all provided services.
func StartHTTPServer(cfg *config.Config, registrars ...Registrar) error {
	addr := fmt.Sprintf("%s:%s", cfg.HTTP.Host, cfg.HTTP.Port)
	r := NewEngine(cfg, registrars...)
	if err := r.Run(addr); err != nil {
		return fmt.Errorf("http server stopped: %w", err)
	}
	return nil
}

// requestLogger emits one structured line per request via the global logger.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
