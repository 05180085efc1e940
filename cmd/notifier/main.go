package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/example/inventory-audit/internal/config"
	"github.com/example/inventory-audit/internal/email"
	"github.com/example/inventory-audit/internal/infrastructure/kafka"
	"github.com/example/inventory-audit/internal/logging"
	"github.com/example/inventory-audit/internal/notification"
	"github.com/example/inventory-audit/internal/observability"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[Notifier] invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[Notifier] %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger = logger.With(zap.String("service", config.ServiceName+"-notifier"))

	if !cfg.KafkaEnabled() {
		logger.Fatal("KAFKA_BROKERS is required for the notifier")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg, "notifier")
	if err != nil {
		logger.Fatal("failed to set up tracing", zap.Error(err))
	}

	logger.Info("starting stock notifier",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.KafkaTopic),
		zap.String("group", cfg.KafkaGroupID),
		zap.String("smtp", cfg.SMTPHost+":"+cfg.SMTPPort),
		zap.Int("threshold", cfg.LowStockThreshold),
	)

	emailSvc := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	handler := notification.NewHandler(emailSvc, cfg.AlertEmail, cfg.LowStockThreshold, logger)
	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, logger)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("consumer stopped", zap.Error(err))
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"kafka-consumer": func(ctx context.Context) error {
				logger.Info("stopping consumer")
				cancel()
				select {
				case <-done:
				case <-ctx.Done():
					return ctx.Err()
				}
				return consumer.Close()
			},
			"tracing": func(ctx context.Context) error {
				return shutdownTracing(ctx)
			},
		},
	)

	exitCode := <-wait
	logger.Info("exited", zap.Int("code", exitCode))
	_ = logger.Sync()
	os.Exit(exitCode)
}
