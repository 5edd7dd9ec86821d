// Package main is the entry point of the notification API.
//
// It serves the intake and status routes under /v1 and a public /health
// probe. Producers create notifications here; the notification worker
// delivers them.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/ToFood/tofood-zip/internal/api/handlers"
	"github.com/ToFood/tofood-zip/internal/config"
	"github.com/ToFood/tofood-zip/internal/core"
	"github.com/ToFood/tofood-zip/internal/db"
	notifcore "github.com/ToFood/tofood-zip/internal/notifications/core"
	"github.com/ToFood/tofood-zip/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("loading AWS config: %w", err)
	}

	cfg, err := config.LoadConfig(config.NewSSMProvider(awsCfg))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if cfg.AWS.Region != "" {
		awsCfg.Region = cfg.AWS.Region
	}
	if cfg.AWS.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
	}

	logger := newLogger(cfg.LogLevel).With("service", cfg.Service, "component", "notification-api")
	tlog := types.NewSlogLogger(logger)
	logger.Info("notification API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}

	sqsClient := sqs.NewFromConfig(awsCfg)
	svc := notifcore.NewService(
		db.NewNotificationRepository(pool),
		db.NewBrokerServiceRepository(pool),
		notifcore.NewQueuePublisher(sqsClient, cfg.AWS.NotificationQueue, tlog),
		nil,
		tlog,
	)

	srv, err := newServer(cfg, logger, svc,
		core.DatabaseProbe{DB: pool},
		core.QueueProbe{Client: sqsClient, QueueURL: cfg.AWS.NotificationQueue},
	)
	if err != nil {
		pool.Close()
		return err
	}
	srv.Closers = append(srv.Closers, pool.Close)

	return runHTTPServer(ctx, srv, cfg, logger)
}

// newServer assembles the chassis, authentication and routes.
// API_TOKEN_HASH may only be empty with APP_ENV=local.
func newServer(cfg *config.Config, logger *slog.Logger, svc handlers.NotificationService, probes ...core.HealthProbe) (*core.Server, error) {
	srv, err := core.NewServer(logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}

	switch {
	case !cfg.Server.APITokenHash.IsEmpty():
		auth, err := core.NewTokenHashAuthenticator(cfg.Server.APITokenHash.Unmask())
		if err != nil {
			return nil, fmt.Errorf("API_TOKEN_HASH is not a bcrypt hash: %w", err)
		}
		srv.Authenticator = auth
	case cfg.IsLocal():
		logger.Warn("API_TOKEN_HASH not set: /v1 routes are unauthenticated")
	default:
		return nil, errors.New("API_TOKEN_HASH is required outside APP_ENV=local")
	}

	srv.HealthProbes = probes
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		handlers.NewNotificationHandler(svc, srv.Validator, logger).Routes)
	srv.MountRoutes()
	return srv, nil
}

// runHTTPServer serves until ctx is cancelled, then drains connections and
// releases server resources.
func runHTTPServer(ctx context.Context, srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			_ = srv.Shutdown(context.Background())
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
