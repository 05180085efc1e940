package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/example/inventory-audit/internal/api"
	"github.com/example/inventory-audit/internal/auth"
	"github.com/example/inventory-audit/internal/config"
	"github.com/example/inventory-audit/internal/domain/eventlog"
	"github.com/example/inventory-audit/internal/domain/product"
	"github.com/example/inventory-audit/internal/infrastructure/kafka"
	"github.com/example/inventory-audit/internal/infrastructure/store"
	"github.com/example/inventory-audit/internal/logging"
	"github.com/example/inventory-audit/internal/observability"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"go.uber.org/zap"
)

func main() {
	hashPassword := flag.Bool("hash-password", false, "read a password from stdin, print its bcrypt hash for ADMIN_PASSWORD_HASH and exit")
	flag.Parse()
	if *hashPassword {
		os.Exit(printPasswordHash())
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[API] invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[API] %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger = logger.With(zap.String("service", config.ServiceName+"-api"))

	ctx := context.Background()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg, "api")
	if err != nil {
		logger.Fatal("failed to set up tracing", zap.Error(err))
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	logger.Info("store ready", zap.String("driver", cfg.StoreDriver))

	// a typed nil *kafka.Producer would defeat the recorder's nil check
	var publisher eventlog.Publisher
	var producer *kafka.Producer
	if cfg.KafkaEnabled() {
		producer = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		publisher = producer
		logger.Info("publishing event log entries",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic),
		)
	} else {
		logger.Info("KAFKA_BROKERS not set, event log entries are not published")
	}

	recorder := eventlog.NewRecorder(st, publisher, logger)
	products := product.NewService(st, recorder)
	handlers := api.NewHandlers(products, recorder, st, logger)

	var (
		jwtService   *auth.JWTService
		authHandlers *api.AuthHandlers
	)
	if cfg.AuthEnabled() {
		if cfg.AdminPasswordHash == "" {
			logger.Warn("JWT_SECRET is set but ADMIN_PASSWORD_HASH is empty, no one can log in")
		}
		jwtService = auth.NewJWTService(cfg.JWTSecret, config.ServiceName, cfg.AccessTokenTTL)
		authHandlers = api.NewAuthHandlers(auth.Admin{
			Username:     cfg.AdminUsername,
			PasswordHash: cfg.AdminPasswordHash,
		}, jwtService, logger)
	} else {
		logger.Warn("JWT_SECRET not set, mutation routes are unauthenticated")
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(handlers, authHandlers, jwtService, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server started", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		ctx,
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				logger.Info("shutting down http server")
				err := server.Shutdown(ctx)
				// in-flight requests may still publish, so the producer and
				// store close only after the server has drained
				if producer != nil {
					err = errors.Join(err, producer.Close())
				}
				return errors.Join(err, st.Close())
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

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		return store.NewMemoryStore(), nil
	default:
		db, err := store.ConnectPostgres(ctx, cfg.DatabaseURL, store.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
			ConnectTimeout:  cfg.DBConnectTimeout,
		})
		if err != nil {
			return nil, err
		}
		return store.NewPostgresStore(db), nil
	}
}

func printPasswordHash() int {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintf(os.Stderr, "read password: %v\n", err)
		return 1
	}
	hash, err := auth.HashPassword(strings.TrimRight(line, "\r\n"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println(hash)
	return 0
}
