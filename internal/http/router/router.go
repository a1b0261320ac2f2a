// Package router builds the Gin engine and mounts all domain modules.
package router

import (
	"net/http"
	"time"

	apphttp "clinic_notify_backend/internal/http"
	"clinic_notify_backend/platform/config"
	"clinic_notify_backend/platform/httpkit"
	"clinic_notify_backend/platform/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"
)

// Options carries the shared dependencies the router needs.
type Options struct {
	HTTP      config.HTTPConfig
	RateLimit config.RateLimitConfig
	Pool      *pgxpool.Pool
	Log       *logger.Logger
}

// New builds the engine, installs the shared middleware stack and registers
// every module's routes.
func New(opts Options, modules ...apphttp.Module) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestLogger(opts.Log))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(corsMiddleware(opts.HTTP))

	limiter := httpkit.NewIPRateLimiter(
		rate.Limit(opts.RateLimit.GetRateLimitPerSecond()),
		opts.RateLimit.GetRateLimitBurst(),
		opts.Log,
	)
	engine.Use(limiter.RateLimit())

	engine.GET("/api/health", healthHandler(opts.Pool))

	ctx := &apphttp.RouterContext{
		Engine: engine,
		Root:   &engine.RouterGroup,
		V1:     engine.Group("/api/v1"),
	}

	for _, m := range modules {
		m.RegisterRoutes(ctx)
		opts.Log.Info("registered module routes", "module", m.Name())
	}

	return engine
}

func corsMiddleware(cfg config.HTTPConfig) gin.HandlerFunc {
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.GetCORSAllowAll() {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.GetCORSOrigins()
	}
	return cors.New(corsCfg)
}

func healthHandler(pool *pgxpool.Pool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
