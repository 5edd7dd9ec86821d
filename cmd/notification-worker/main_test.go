package main

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ToFood/tofood-zip/internal/config"
	"github.com/ToFood/tofood-zip/internal/notifications/broker"
	notifcore "github.com/ToFood/tofood-zip/internal/notifications/core"
	"github.com/ToFood/tofood-zip/internal/notifications/notiftest"
	"github.com/ToFood/tofood-zip/internal/types"
)

func TestNewLogger_Levels(t *testing.T) {
	assert.True(t, newLogger("debug").Enabled(context.Background(), slog.LevelDebug))
	assert.False(t, newLogger("warn").Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, newLogger("bogus").Enabled(context.Background(), slog.LevelInfo))
}

func TestNewGate(t *testing.T) {
	gate, closeFn, err := newGate(context.Background(), config.ThrottleConfig{Mode: "none"})
	require.NoError(t, err)
	assert.Nil(t, gate)
	closeFn()

	gate, closeFn, err = newGate(context.Background(), config.ThrottleConfig{Mode: "process"})
	require.NoError(t, err)
	assert.IsType(t, &broker.ProcessGate{}, gate)
	closeFn()
}

func TestNewGate_RedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, closeFn, err := newGate(ctx, config.ThrottleConfig{Mode: "redis", RedisAddr: "127.0.0.1:1"})
	require.Error(t, err)
	closeFn()
}

func TestApplyAWSOverrides(t *testing.T) {
	awsCfg := aws.Config{Region: "sa-east-1"}
	applyAWSOverrides(&awsCfg, config.AWSConfig{Region: "us-east-1", EndpointURL: "http://localhost:4566"})

	assert.Equal(t, "us-east-1", awsCfg.Region)
	require.NotNil(t, awsCfg.BaseEndpoint)
	assert.Equal(t, "http://localhost:4566", *awsCfg.BaseEndpoint)
}

func TestNewMetrics_LocalIsNoop(t *testing.T) {
	cfg := &config.Config{Environment: "local"}
	cfg.Observability.EnableMetrics = true
	assert.IsType(t, notifcore.NoopMetrics{}, newMetrics(cfg, aws.Config{}, types.NewSlogLogger(nil)))

	cfg = &config.Config{Environment: "prod"}
	assert.IsType(t, notifcore.NoopMetrics{}, newMetrics(cfg, aws.Config{}, types.NewSlogLogger(nil)))
}

func TestLocalDispatcherUsesStubs(t *testing.T) {
	cfg := &config.Config{Environment: "local"}
	d := newDispatcher(cfg, aws.Config{}, nil, slog.Default())

	res, err := d.Send(context.Background(), withoutInterval(notiftest.EmailConfig(1)), broker.Message{
		To:      []string{"customer@example.com"},
		Subject: "Seu vídeo foi processado",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func withoutInterval(cfg types.BrokerServiceConfig) types.BrokerServiceConfig {
	cfg.MinMillisecondsBetweenSends = 0
	return cfg
}
