package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dialer-platform/internal/audit"
	"dialer-platform/internal/auth"
	"dialer-platform/internal/config"
	"dialer-platform/internal/dispositions"
	"dialer-platform/internal/httpapi"
	"dialer-platform/internal/lists"
	"dialer-platform/internal/queue"
	"dialer-platform/internal/records"
	"dialer-platform/internal/reporting"
	"dialer-platform/internal/sessions"
	"dialer-platform/internal/telephony"
	"dialer-platform/pkg/logger"
	"dialer-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Persistence. One Postgres repo serves both the list and item contracts.
	listRepo := lists.NewPostgresRepo(db)
	sessionRepo := sessions.NewPostgresRepo(db)
	recordStore := records.NewPostgresStore(db)
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	locker := utils.RedisLocker{Client: rdb}

	// Services
	listSvc := lists.NewService(listRepo, listRepo, recordStore, locker)
	listSvc.SetRefreshLockTTL(cfg.RefreshLockTTL())
	queueSvc := queue.NewService(listRepo, listRepo)
	sessionSvc := sessions.NewService(sessionRepo, listRepo)
	catalog := dispositions.DefaultCatalog()
	processor := dispositions.NewProcessor(listRepo, listRepo, catalog, recordStore, auditSvc, log)
	reportSvc := reporting.NewService(listRepo, listRepo, sessionRepo)

	var provider telephony.Provider
	switch cfg.DialerProvider() {
	case "log":
		provider = telephony.NewLogProvider(log)
	default:
		log.Error("unknown dialer provider", "provider", cfg.DialerProvider())
		os.Exit(1)
	}

	h := httpapi.Handlers{
		Auth:         authManager,
		Lists:        listSvc,
		Queue:        queueSvc,
		Sessions:     sessionSvc,
		Dispositions: processor,
		Catalog:      catalog,
		Reporting:    reportSvc,
		Provider:     provider,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, auth.RequireAccessToken(authManager), h)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
