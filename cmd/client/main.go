package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	clientapi "github.com/driftsync/driftsync/internal/client/api"
	"github.com/driftsync/driftsync/internal/client/auth"
	"github.com/driftsync/driftsync/internal/client/cache"
	"github.com/driftsync/driftsync/internal/client/cli"
	"github.com/driftsync/driftsync/internal/client/data"
	"github.com/driftsync/driftsync/internal/client/iocli"
	"github.com/driftsync/driftsync/internal/client/queue"
	"github.com/driftsync/driftsync/internal/client/storage/boltdb"
	clientsync "github.com/driftsync/driftsync/internal/client/sync"
	"github.com/driftsync/driftsync/internal/client/write"
	"github.com/driftsync/driftsync/pkg/api"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	serverURL := flag.String("server", envOr("DRIFTSYNC_SERVER", "http://localhost:8080"), "Server URL")
	dbPath := flag.String("db", envOr("DRIFTSYNC_CLIENT_DB", "driftsync-client.db"), "Path to local database")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	io := iocli.NewStdio()

	args := flag.Args()
	if len(args) == 0 {
		usageOnly(io)
		os.Exit(1)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, io, logger, *serverURL, *dbPath, args[0], args[1:]); err != nil {
		// Отмена watch по Ctrl+C не ошибка
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

func run(ctx context.Context, io iocli.IO, logger *slog.Logger, serverURL, dbPath, command string, args []string) error {
	meta, err := boltdb.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := meta.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	apiClient := clientapi.NewClient(serverURL)

	// Offline-очередь живет в том же файле bbolt, что и метаданные
	q, err := queue.New(meta.DB(), queue.Options{
		Logger:    logger,
		IsNetwork: clientapi.IsNetwork,
		OnDrop: func(op api.QueuedOp, reason error) {
			io.Printf("Dropped queued %s %s/%s: %v\n", op.Kind, op.Resource, op.ID, reason)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to open offline queue: %w", err)
	}

	cacheStore := cache.NewStore(logger)
	compiler := write.NewCompiler(cacheStore, apiClient, logger)
	coord := write.NewCoordinator(cacheStore, apiClient, nil, write.DefaultPolicy(), logger)
	dataService := data.NewService(compiler, coord, cacheStore, q, apiClient, logger)
	session := auth.NewSession(apiClient, meta, logger)
	engine := clientsync.New(apiClient, cacheStore, q, meta, logger, clientsync.Options{})

	app := cli.New(io, session, dataService, engine)

	if needsToken(command) {
		if err := session.Login(ctx); err != nil {
			if errors.Is(err, auth.ErrNotRegistered) {
				return fmt.Errorf("device is not registered. Run 'driftsync register' first")
			}
			return err
		}
		// Кэш наполняется состоянием сервера перед локальными командами
		if err := engine.PullOnce(ctx); err != nil {
			logger.Warn("initial pull failed, using local state", "error", err)
		}
	}

	return app.Run(ctx, command, args)
}

// needsToken сообщает, требует ли команда access token перед выполнением.
func needsToken(command string) bool {
	switch command {
	case "register", "login", "logout", "status":
		return false
	}
	return true
}

func usageOnly(io iocli.IO) {
	app := cli.New(io, nil, nil, nil)
	app.PrintUsage()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printVersion() {
	fmt.Printf("DriftSync Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
