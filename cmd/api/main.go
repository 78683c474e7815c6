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

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/mergington/internal/api"
	"example.com/mergington/internal/config"
	"example.com/mergington/internal/domain"
	"example.com/mergington/internal/observability"
	"example.com/mergington/internal/outbox"
	"example.com/mergington/internal/registry"
	httptransport "example.com/mergington/internal/transport/http"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("signup API exited", slog.Any("error", err))
		os.Exit(1)
	}
}

// run owns every deferred cleanup so that main can exit non-zero without
// skipping them.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		return fmt.Errorf("initialise tracing: %w", err)
	}

	opts := []domain.Option{domain.WithLogger(logger)}

	var (
		dispatcher *outbox.Dispatcher
		producer   *outbox.KafkaProducer
	)
	if cfg.Outbox.Enabled() {
		box := outbox.New(cfg.Outbox.Topic, cfg.Outbox.Capacity)
		producer = outbox.NewKafkaProducer(cfg.Outbox.KafkaBrokers)

		var schemas *outbox.SchemaRegistryClient
		if cfg.Outbox.SchemaRegistryURL != "" {
			schemas = outbox.NewSchemaRegistryClient(cfg.Outbox.SchemaRegistryURL, nil)
		}
		dispatcher = outbox.NewDispatcher(box, producer, registrarOrNil(schemas), outbox.DispatcherConfig{
			PollInterval: cfg.Outbox.PollInterval,
			BatchSize:    cfg.Outbox.BatchSize,
			MaxAttempts:  cfg.Outbox.MaxAttempts,
		}, logger)
		go dispatcher.Start(ctx)

		opts = append(opts, domain.WithPublisher(box))
		logger.Info("roster events enabled",
			slog.Any("brokers", cfg.Outbox.KafkaBrokers),
			slog.String("topic", cfg.Outbox.Topic))
	} else {
		logger.Info("roster events disabled; KAFKA_BROKERS is empty")
	}

	roster := registry.NewInMemoryRegistry(registry.DefaultCatalog())
	service := domain.NewService(roster, opts...)

	router := mux.NewRouter()
	router.Use(httptransport.RequestLogger(logger))
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	api.NewHandler(service, api.WithStaticDir(cfg.StaticDir)).RegisterRoutes(router)

	middleware := []func(http.Handler) http.Handler{
		httptransport.Tracing(tracing.Tracer()),
		httptransport.CORS(cfg.AllowedOrigin),
	}
	var limiter *httptransport.Limiter
	if cfg.RateLimit.RPS > 0 {
		limiter = httptransport.NewLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		middleware = append(middleware, limiter.Middleware(httptransport.ClientIP))
		go cleanupLimiter(ctx, limiter)
	}

	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), httptransport.Chain(router, middleware...))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("signup API listening", slog.String("addr", cfg.HTTPAddress), slog.String("version", version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("serve http: %w", err)
		}
	}()

	var runErr error
	select {
	case <-shutdownCh:
		logger.Info("shutdown requested")
	case runErr = <-serveErr:
		logger.Error("server error", slog.Any("error", runErr))
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", slog.Any("error", err))
	}

	if dispatcher != nil {
		dispatcher.Wait()
		if err := dispatcher.Flush(shutdownCtx); err != nil {
			logger.Warn("undelivered roster events at shutdown", slog.Any("error", err))
		}
		if err := producer.Close(); err != nil {
			logger.Warn("kafka producer close failed", slog.Any("error", err))
		}
	}

	if err := tracing.Shutdown(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown failed", slog.Any("error", err))
	}
	return runErr
}

// registrarOrNil keeps a nil *SchemaRegistryClient from becoming a non-nil interface.
func registrarOrNil(c *outbox.SchemaRegistryClient) outbox.SchemaRegistrar {
	if c == nil {
		return nil
	}
	return c
}

func cleanupLimiter(ctx context.Context, limiter *httptransport.Limiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Cleanup(10 * time.Minute)
		}
	}
}
