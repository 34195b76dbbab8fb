package routes

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/mo-amir99/lms-learner-go/internal/features/catalog"
	"github.com/mo-amir99/lms-learner-go/internal/features/lessonprogress"
	"github.com/mo-amir99/lms-learner-go/internal/features/session"
	"github.com/mo-amir99/lms-learner-go/pkg/cache"
	"github.com/mo-amir99/lms-learner-go/pkg/config"
	"github.com/mo-amir99/lms-learner-go/pkg/health"
	"github.com/mo-amir99/lms-learner-go/pkg/middleware"
	"github.com/mo-amir99/lms-learner-go/pkg/recordstore"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Config   *config.Config
	DB       *gorm.DB // nil unless the postgres store is in use
	Store    recordstore.Store
	Cache    cache.Client
	Registry *session.Registry
	Parser   session.TokenParser
	Auth     session.PasswordAuthenticator
	Catalog  *catalog.Service
	Limiter  *middleware.RateLimiter
	Logger   *slog.Logger
}

// Register wires all feature routes onto the engine.
func Register(engine *gin.Engine, deps Deps) {
	// Health check endpoints (no /api prefix for Kubernetes probes)
	healthHandler := health.NewHandler(deps.DB, deps.Logger)
	if p, ok := deps.Store.(recordstore.Pinger); ok {
		healthHandler.AddCheck("store", p.Ping)
	}
	if deps.Cache != nil {
		healthHandler.AddCheck("cache", deps.Cache.Ping)
	}
	engine.GET("/health", healthHandler.Health)
	engine.GET("/ready", healthHandler.Ready)
	engine.GET("/version", healthHandler.Version)

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if !deps.Config.IsProduction() {
		engine.GET("/debug/db-stats", healthHandler.DBStats)
	}

	api := engine.Group("/api")

	mw := session.NewMiddleware(deps.Registry, deps.Parser, deps.Logger)
	authed := []gin.HandlerFunc{mw.Require()}
	if deps.Limiter != nil {
		// Keyed by user id, so it has to run after the session is bound.
		authed = append(authed, deps.Limiter.Middleware())
	}

	session.RegisterRoutes(api, session.NewHandler(deps.Registry, deps.Auth, deps.Logger), mw)
	lessonprogress.RegisterRoutes(api, lessonprogress.NewHandler(session.ReconcilerFrom, deps.Logger), authed...)
	catalog.RegisterRoutes(api, catalog.NewHandler(deps.Catalog, deps.Logger), authed...)
}
