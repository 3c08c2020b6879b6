package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/driftsync/driftsync/internal/server/dispatch"
	"github.com/driftsync/driftsync/internal/server/handlers"
	"github.com/driftsync/driftsync/internal/server/jwt"
	"github.com/driftsync/driftsync/internal/server/middleware"
	"github.com/driftsync/driftsync/internal/server/notify"
	"github.com/driftsync/driftsync/internal/server/resolver"
	"github.com/driftsync/driftsync/internal/server/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	addr := flag.String("addr", envOr("DRIFTSYNC_ADDR", ":8080"), "HTTP listen address")
	dbPath := flag.String("db", envOr("DRIFTSYNC_DB", "driftsync.db"), "Path to the SQLite database")
	jwtSecret := flag.String("jwt-secret", os.Getenv("DRIFTSYNC_JWT_SECRET"), "Secret for signing access tokens")
	tokenTTL := flag.Duration("token-ttl", 15*time.Minute, "Access token lifetime")
	rateLimit := flag.Int("rate-limit", 120, "Requests per window per device")
	rateWindow := flag.Duration("rate-window", time.Minute, "Rate limit window")
	logLevel := flag.String("log-level", envOr("DRIFTSYNC_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	logger := newLogger(*logLevel)

	if err := run(logger, *addr, *dbPath, *jwtSecret, *tokenTTL, *rateLimit, *rateWindow); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, addr, dbPath, jwtSecret string, tokenTTL time.Duration, rateLimit int, rateWindow time.Duration) error {
	if jwtSecret == "" {
		return errors.New("jwt secret is required (-jwt-secret or DRIFTSYNC_JWT_SECRET)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	tokens := jwt.NewService(jwtSecret, tokenTTL)
	notifier := notify.NewBroadcaster()
	res := resolver.New(store, logger)
	dispatcher := dispatch.New(res, logger)

	opsHandler := handlers.NewOpsHandler(logger, store, dispatcher, notifier)
	pushHandler := handlers.NewPushHandler(logger, store, res, notifier)
	subscribeHandler := handlers.NewSubscribeHandler(logger, notifier, store)
	authHandler := handlers.NewAuthHandler(logger, store, tokens)
	healthHandler := handlers.NewHealthHandler(logger, Version)

	authRequired := middleware.AuthMiddleware(logger, tokens)
	limited := middleware.RateLimitMiddleware(rateLimit, rateWindow, logger)

	// Rate limit идет после auth, чтобы ключом был device_id, а не IP.
	protect := func(h http.HandlerFunc) http.Handler {
		return authRequired(limited(http.HandlerFunc(h)))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.Handle("POST /auth/register", limited(http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST /auth/token", limited(http.HandlerFunc(authHandler.Token)))
	mux.Handle("POST /ops", protect(opsHandler.HandleOps))
	mux.Handle("POST /sync/push", protect(pushHandler.HandlePush))
	mux.Handle("GET /sync/subscribe-vnext", protect(subscribeHandler.HandleSubscribe))

	handler := middleware.RecoveryMiddleware(logger)(
		middleware.LoggingMiddleware(logger, "/health")(mux))

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", "addr", addr, "version", Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printVersion() {
	fmt.Printf("DriftSync Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
