package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eventdeck/gatehouse/internal/background"
	"github.com/eventdeck/gatehouse/internal/config"
	"github.com/eventdeck/gatehouse/internal/database"
	"github.com/eventdeck/gatehouse/internal/handlers"
	"github.com/eventdeck/gatehouse/internal/identity"
	middlewareCustom "github.com/eventdeck/gatehouse/internal/middleware"
	"github.com/eventdeck/gatehouse/internal/repositories"
	"github.com/eventdeck/gatehouse/internal/routes"
	"github.com/eventdeck/gatehouse/internal/services"
	pkghttp "github.com/eventdeck/gatehouse/pkg/http"
	pkglogger "github.com/eventdeck/gatehouse/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database (durable audit trail)
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize stores
	attemptStore := repositories.NewMemoryAttemptStore(nil)
	sessionStore := repositories.NewMemorySessionStore()
	auditRepo := repositories.NewAuditLogRepository(db)

	// Initialize identity provider client
	provider := identity.NewHTTPProvider(cfg.Identity.BaseURL, cfg.Identity.RequestTimeout, logger)

	// Initialize services
	auditLogger := pkglogger.NewAuditLogger(logger)

	throttleService := services.NewThrottleService(attemptStore, services.ThrottleConfig{
		MaxFailedAttempts: cfg.Auth.MaxFailedAttempts,
		LockoutDuration:   cfg.Auth.LockoutDuration,
	}, logger, auditLogger)

	sessionService := services.NewSessionService(sessionStore, services.SessionConfig{
		IdleTimeout: cfg.Auth.SessionIdleTimeout,
	}, logger, nil)

	auditService := services.NewAuditService(auditRepo, logger, auditLogger, nil)

	loginService := services.NewLoginService(provider, throttleService, sessionService, auditService, services.LoginConfig{
		MaxSessionsPerUser: cfg.Auth.MaxSessionsPerUser,
		LogoutDeadline:     cfg.Auth.LogoutDeadline,
	}, logger, nil)

	// Initialize idle session sweeper
	sweeper := background.NewSessionSweeper(sessionService, auditService, logger, cfg.Auth.SweepInterval)

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{}
	authHandler := handlers.NewAuthHandler(loginService, ipConfig)
	adminHandler := handlers.NewAdminHandler(sessionService, auditService, loginService)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, adminHandler, cfg.Auth.LoginRequestsPerMinute, cfg.Server.OperatorToken)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start sweep task
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()

	go sweeper.Start(sweepCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	sweepCancel()
	sweeper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
