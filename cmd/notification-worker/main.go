// Package main is the entry point of the notification worker.
//
// The worker consumes notification ids from the delivery queue and
// dispatches each one through its broker service. It runs in one of two
// modes selected by RUNTIME:
//
//   - poll:   long-polls SQS with WORKER_CONCURRENCY loops and runs the
//     stale-claim reaper alongside them until SIGINT/SIGTERM.
//   - lambda: serves SQS event batches with partial batch failures.
//
// With APP_ENV=local every broker kind is answered by a logging stub and
// metrics are discarded, so the pipeline can run against LocalStack and a
// local Postgres without sending mail.
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

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/ToFood/tofood-zip/internal/config"
	"github.com/ToFood/tofood-zip/internal/db"
	"github.com/ToFood/tofood-zip/internal/external"
	"github.com/ToFood/tofood-zip/internal/notifications/broker"
	notifcore "github.com/ToFood/tofood-zip/internal/notifications/core"
	"github.com/ToFood/tofood-zip/internal/queue"
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
	applyAWSOverrides(&awsCfg, cfg.AWS)

	logger := newLogger(cfg.LogLevel).With("service", cfg.Service, "component", "notification-worker")
	tlog := types.NewSlogLogger(logger)
	logger.Info("notification worker starting",
		"environment", cfg.Environment,
		"runtime", cfg.Runtime,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"throttle_mode", cfg.Throttle.Mode,
	)

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	gate, closeGate, err := newGate(ctx, cfg.Throttle)
	if err != nil {
		return fmt.Errorf("creating throttle gate: %w", err)
	}
	defer closeGate()

	sqsClient := sqs.NewFromConfig(awsCfg)
	metrics := newMetrics(cfg, awsCfg, tlog)
	dispatcher := newDispatcher(cfg, awsCfg, gate, logger)

	notifications := db.NewNotificationRepository(pool)
	publisher := notifcore.NewQueuePublisher(sqsClient, cfg.AWS.NotificationQueue, tlog)
	svc := notifcore.NewService(
		notifications,
		db.NewBrokerServiceRepository(pool),
		publisher,
		dispatcher,
		tlog,
		notifcore.WithMetrics(metrics),
	)
	processor := queue.NewProcessor(svc, metrics, cfg.Worker.DispatchTimeout, tlog)

	if cfg.Runtime == "lambda" {
		logger.Info("serving SQS event batches")
		lambda.Start(queue.NewLambdaHandler(processor, tlog).Handle)
		return nil
	}

	worker := queue.NewWorker(sqsClient, processor, queue.WorkerConfig{
		QueueURL:          cfg.AWS.NotificationQueue,
		Concurrency:       cfg.Worker.Concurrency,
		BatchSize:         cfg.Worker.BatchSize,
		WaitSeconds:       cfg.Worker.WaitSeconds,
		ReceiveBackoff:    cfg.Worker.ReceiveBackoff,
		MaxReceiveBackoff: cfg.Worker.MaxReceiveBackoff,
	}, tlog)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(gctx) })
	if cfg.Worker.EnableReaper {
		reaper := notifcore.NewReaper(notifications, publisher, metrics, notifcore.ReaperConfig{
			Interval: cfg.Worker.ReaperInterval,
			Lease:    cfg.Worker.ClaimLease,
			Batch:    cfg.Worker.ReaperBatch,
		}, tlog.With("component", "reaper"))
		g.Go(func() error { return reaper.Run(gctx) })
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		logger.Info("notification worker stopped")
		return nil
	}
	return err
}

// applyAWSOverrides points the SDK at the configured region and, for
// LocalStack, endpoint.
func applyAWSOverrides(awsCfg *aws.Config, cfg config.AWSConfig) {
	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	}
	if cfg.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.EndpointURL)
	}
}

func newMetrics(cfg *config.Config, awsCfg aws.Config, logger types.Logger) notifcore.Metrics {
	if cfg.IsLocal() || !cfg.Observability.EnableMetrics {
		return notifcore.NoopMetrics{}
	}
	return notifcore.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.Observability.MetricNamespace, logger)
}

// newRegistry wires the real integrations, or logging stubs locally.
func newRegistry(cfg *config.Config, awsCfg aws.Config, logger *slog.Logger) *broker.Registry {
	if cfg.IsLocal() {
		logger.Warn("APP_ENV=local: every broker kind answers with a stub sender")
		return broker.NewStubRegistry(types.NewSlogLogger(logger))
	}
	return broker.NewDefaultRegistry(broker.Defaults{
		SMTP: broker.NewSMTPSender(broker.SMTPConfig{
			DefaultHost: cfg.Broker.SMTPDefaultHost,
			DefaultPort: cfg.Broker.SMTPDefaultPort,
			Timeout:     cfg.Broker.SendTimeout,
		}),
		SendGrid: external.NewSendGridClient(
			&http.Client{Timeout: cfg.Broker.HTTPTimeout},
			external.SendGridClientConfig{Logger: logger},
		),
		SES: external.NewSESClient(awsCfg, external.SESClientConfig{
			ConfigSetName: cfg.Broker.SESConfigurationSet,
			Logger:        logger,
		}),
	})
}

func newDispatcher(cfg *config.Config, awsCfg aws.Config, gate broker.Gate, logger *slog.Logger) *broker.Dispatcher {
	opts := []broker.DispatcherOption{broker.WithSendTimeout(cfg.Broker.SendTimeout)}
	if gate != nil {
		opts = append(opts, broker.WithGate(gate))
	}
	return broker.NewDispatcher(newRegistry(cfg, awsCfg, logger), opts...)
}

// newGate builds the shared send gate for THROTTLE_MODE. The returned
// close func is always safe to call.
func newGate(ctx context.Context, cfg config.ThrottleConfig) (broker.Gate, func(), error) {
	switch cfg.Mode {
	case "process":
		return broker.NewProcessGate(), func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword.Unmask(),
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, func() {}, fmt.Errorf("ping redis at %s: %w", cfg.RedisAddr, err)
		}
		return broker.NewRedisGate(client, gateOwner()), func() { _ = client.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}

// gateOwner identifies this process in Redis slot keys.
func gateOwner() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return host + "-" + uuid.NewString()[:8]
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
