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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	database "github.com/mpereira-dev/tasknest/app/db"
	appLogger "github.com/mpereira-dev/tasknest/app/logger"
	"github.com/mpereira-dev/tasknest/app/mailer"
	appmetrics "github.com/mpereira-dev/tasknest/app/observability/metrics"
	"github.com/mpereira-dev/tasknest/app/tracer"
	"github.com/mpereira-dev/tasknest/config"
	"github.com/mpereira-dev/tasknest/internal/api/auth"
	"github.com/mpereira-dev/tasknest/internal/api/todo"
	"github.com/mpereira-dev/tasknest/internal/api/user"
	"github.com/mpereira-dev/tasknest/internal/router"
)

func main() {
	// Use standard log until slog is configured, in case godotenv fails.
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	logger := setupLogger(&cfg)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Database ---
	dbConfig, err := database.NewDatabaseConfig(&cfg)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		os.Exit(1)
	}
	if err = database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
		logger.Error("Failed to run database migrations", slog.Any("error", err))
		os.Exit(1)
	}
	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()
	if !database.WaitForDB(ctx, pool, logger) {
		logger.Error("Database not ready after waiting, exiting.")
		os.Exit(1)
	}

	// --- Metrics ---
	metricsHandler, err := tracer.InitMetricsProvider("tasknest")
	if err != nil {
		logger.Error("Failed to initialize metrics provider", slog.Any("error", err))
		os.Exit(1)
	}
	appmetrics.InitAppMetrics()
	go tracer.ServeMetrics(cfg.Server.MetricsPort, metricsHandler, logger)

	// --- Dependency wiring ---
	var registry auth.RevocationRegistry
	if cfg.Registry == "memory" {
		logger.Warn("Using in-memory revocation registry; sessions will not survive restarts")
		registry = auth.NewMemoryRegistry()
	} else {
		registry = auth.NewPostgresRegistry(pool, logger)
	}

	var notifier mailer.Notifier
	if cfg.IsDevelopment() {
		notifier = mailer.NewLogNotifier(logger)
	} else {
		notifier = mailer.NewSMTPNotifier(cfg.SMTP, logger)
	}

	issuer := auth.NewTokenIssuer(cfg.JWT)
	hasher := auth.NewBcryptHasher()

	authRepo := auth.NewPostgresAuthRepo(pool, logger)
	authService := auth.NewAuthService(authRepo, registry, hasher, issuer, notifier, logger).
		WithMetrics(appmetrics.Get())
	authHandler := auth.NewAuthHandler(authService, &cfg, logger)

	todoRepo := todo.NewPostgresTodoRepo(pool, logger)
	todoService := todo.NewTodoService(todoRepo, logger)
	todoHandler := todo.NewTodoHandler(todoService, logger)

	imageStore, err := user.NewLocalImageStore(cfg.Uploads)
	if err != nil {
		logger.Error("Failed to prepare uploads directory", slog.Any("error", err))
		os.Exit(1)
	}
	userRepo := user.NewPostgresUserRepo(pool, logger)
	userService := user.NewUserService(userRepo, imageStore, registry, logger)
	userHandler := user.NewUserHandler(userService, cfg.Uploads.MaxSizeBytes, logger)

	// --- Router ---
	apiRouter := router.SetupRouter(&router.Config{
		AuthHandler:            authHandler,
		TodoHandler:            todoHandler,
		UserHandler:            userHandler,
		AuthenticateMiddleware: auth.Authenticate(issuer, logger),
		FrontendURL:            cfg.FrontendURL,
		UploadsDir:             cfg.Uploads.Dir,
	})

	mux := chi.NewMux()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(appLogger.StructuredLogger(logger))
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.StripSlashes)
	mux.Use(middleware.Timeout(cfg.Server.Timeout))
	mux.Use(middleware.Compress(5, "application/json"))
	mux.Mount("/", apiRouter)

	// --- HTTP server ---
	serverAddress := fmt.Sprintf(":%s", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddress,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("address", serverAddress))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server ListenAndServe error", slog.Any("error", err))
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", slog.Any("error", err))
	} else {
		logger.Info("HTTP server gracefully stopped")
	}
	logger.Info("Application shut down complete.")
}

// setupLogger returns colored debug logs in development and JSON logs
// everywhere else.
func setupLogger(cfg *config.Config) *slog.Logger {
	if cfg.IsDevelopment() {
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
