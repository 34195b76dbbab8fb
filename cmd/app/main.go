package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mo-amir99/lms-learner-go/internal/features/catalog"
	"github.com/mo-amir99/lms-learner-go/internal/features/lessonprogress"
	"github.com/mo-amir99/lms-learner-go/internal/features/notify"
	"github.com/mo-amir99/lms-learner-go/internal/features/session"
	"github.com/mo-amir99/lms-learner-go/internal/http/routes"
	"github.com/mo-amir99/lms-learner-go/internal/schema"
	"github.com/mo-amir99/lms-learner-go/pkg/cache"
	"github.com/mo-amir99/lms-learner-go/pkg/config"
	"github.com/mo-amir99/lms-learner-go/pkg/database"
	"github.com/mo-amir99/lms-learner-go/pkg/jobs"
	"github.com/mo-amir99/lms-learner-go/pkg/logger"
	"github.com/mo-amir99/lms-learner-go/pkg/metrics"
	"github.com/mo-amir99/lms-learner-go/pkg/middleware"
	"github.com/mo-amir99/lms-learner-go/pkg/recordstore"
	"github.com/mo-amir99/lms-learner-go/pkg/recordstore/memstore"
	"github.com/mo-amir99/lms-learner-go/pkg/recordstore/pocketbase"
	"github.com/mo-amir99/lms-learner-go/pkg/recordstore/sqlstore"
	"github.com/mo-amir99/lms-learner-go/pkg/request"
	socketioserver "github.com/mo-amir99/lms-learner-go/pkg/socketio"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLogger, err := logger.New(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	store, db, hosted, err := openStore(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error("record store init failed", slog.String("driver", cfg.Store.Driver), slog.String("error", err.Error()))
		os.Exit(1)
	}
	if db != nil {
		defer func() {
			if err := database.Close(db, appLogger); err != nil {
				appLogger.Error("database close failed", slog.String("error", err.Error()))
			}
		}()
	}
	store = recordstore.Instrumented(store)

	cacheClient, err := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		// The catalog works without a cache, just slower.
		appLogger.Warn("cache unavailable, using in-memory cache", slog.String("error", err.Error()))
		cacheClient = cache.NewMemoryCache()
	}
	defer cacheClient.Close()

	var locker *lessonprogress.KeyLocker
	if cfg.Progress.SerializePerKey {
		locker = lessonprogress.NewKeyLocker()
	}
	registry := session.NewRegistry(store, locker, appLogger)

	var auth session.PasswordAuthenticator
	parser := session.VerifyWith(cfg.JWTSecret)
	if hosted != nil {
		// Tokens are signed by the hosted store, so it has to vouch for them.
		auth = hosted
		parser = session.ConfirmWith(hosted, cacheClient, cfg.Session.TokenCacheTTL, appLogger)
	}

	var (
		alerter        notify.Alerter = notify.NewLogAlerter(appLogger)
		socketIOServer *socketioserver.Server
	)
	if cfg.Realtime.Enabled {
		socketIOServer, err = socketioserver.NewServer(registry, parser, appLogger)
		if err != nil {
			appLogger.Error("socket.io server initialization failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer socketIOServer.Close()

		registry.OnCreate(socketIOServer.WatchWorkspace)
		alerter = notify.Fanout{alerter, socketIOServer}
		appLogger.Info("socket.io server initialized")
	}

	catalogService := catalog.NewService(store, cacheClient, cfg.Redis.CatalogTTL, alerter, appLogger)
	registry.OnCreate(catalogService.Prefetch)

	scheduler := jobs.NewScheduler(appLogger)
	scheduler.AddJob(jobs.NewSessionSweepJob(registry, cfg.Session.IdleTTL, appLogger), cfg.Session.SweepInterval)
	scheduler.Start()
	defer scheduler.Stop()

	router := gin.New()

	router.Use(middleware.Recovery(appLogger))
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	// Socket.IO gets only recovery and CORS.
	if socketIOServer != nil {
		router.GET("/socket.io/*any", gin.WrapH(socketIOServer.GetHandler()))
		router.POST("/socket.io/*any", gin.WrapH(socketIOServer.GetHandler()))
	}

	router.Use(middleware.RequestID())
	router.Use(middleware.Compression())
	router.Use(middleware.RequestLogger(appLogger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestSizeLimit(1 << 20))
	router.Use(metrics.Middleware())
	router.Use(request.Handler(appLogger))

	rateLimiter := middleware.NewRateLimiter(cfg.Limit.Requests, cfg.Limit.Window)
	defer rateLimiter.Stop()

	routes.Register(router, routes.Deps{
		Config:   cfg,
		DB:       db,
		Store:    store,
		Cache:    cacheClient,
		Registry: registry,
		Parser:   parser,
		Auth:     auth,
		Catalog:  catalogService,
		Limiter:  rateLimiter,
		Logger:   appLogger,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddress(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		appLogger.Info("server starting",
			slog.String("addr", cfg.ServerAddress()),
			slog.String("env", cfg.Env),
			slog.String("store", cfg.Store.Driver),
			slog.Bool("realtime", cfg.Realtime.Enabled),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("server listen failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("server shutdown failed", slog.String("error", err.Error()))
	} else {
		appLogger.Info("server stopped gracefully")
	}
}

// openStore builds the record store selected by cfg. db is only set for the postgres
// driver and hosted only for pocketbase.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (recordstore.Store, *gorm.DB, *pocketbase.Client, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPocketBase:
		client := pocketbase.NewClient(cfg.Store.BaseURL, cfg.Store.Timeout)
		return client, nil, client, nil

	case config.StoreDriverPostgres:
		db, err := database.Connect(ctx, cfg.Database, log)
		if err != nil {
			return nil, nil, nil, err
		}
		return sqlstore.New(db), db, nil, nil

	case config.StoreDriverMemory:
		set, err := schema.Apply(schema.All())
		if err != nil {
			return nil, nil, nil, err
		}
		var unique []memstore.UniqueIndex
		for _, idx := range schema.UniqueIndexes(set) {
			unique = append(unique, memstore.UniqueIndex{Collection: idx.Collection, Fields: idx.Fields})
		}
		return memstore.New(unique...), nil, nil, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}
