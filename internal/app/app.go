package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vladislavdragonenkov/stockorders/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/stockorders/internal/health"
	"github.com/vladislavdragonenkov/stockorders/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/stockorders/internal/metrics"
	"github.com/vladislavdragonenkov/stockorders/internal/observability"
	"github.com/vladislavdragonenkov/stockorders/internal/service/accounts"
	"github.com/vladislavdragonenkov/stockorders/internal/service/catalog"
	"github.com/vladislavdragonenkov/stockorders/internal/service/orders"
	"github.com/vladislavdragonenkov/stockorders/internal/service/outbox"
	"github.com/vladislavdragonenkov/stockorders/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/stockorders/internal/version"
)

// Run поднимает API, сервер метрик и outbox worker и блокируется до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		Endpoint:       cfg.OTelEndpoint,
		Insecure:       cfg.OTelInsecure,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version.GetVersion(),
	}, logger.WithField("component", "tracing"))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.WithError(err).Warn("tracing shutdown with error")
		}
	}()

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.closeFn(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	producer := initKafkaProducer(cfg, logger)
	defer closeKafkaProducer(producer, logger)

	apiHandler := newAPIHandler(deps.store, cfg, logger)
	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", deps.storageChecker)

	apiLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return err
	}
	metricsLis, err := net.Listen("tcp", cfg.MetricsAddr)
	if err != nil {
		_ = apiLis.Close()
		return err
	}

	apiSrv := &http.Server{Handler: apiHandler, ReadHeaderTimeout: 5 * time.Second}
	metricsSrv := &http.Server{Handler: newMetricsMux(healthHandler), ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", apiLis.Addr().String()).Info("HTTP API listening")
		return serveHTTP(apiSrv, apiLis)
	})
	g.Go(func() error {
		logger.WithField("addr", metricsLis.Addr().String()).Info("metrics and health checks listening")
		return serveHTTP(metricsSrv, metricsLis)
	})
	if worker := newOutboxWorker(deps.store, producer, cfg, logger); worker != nil {
		g.Go(func() error { return worker.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down HTTP servers")
		shutdownHTTP(apiSrv, cfg.ShutdownTimeout, logger)
		shutdownHTTP(metricsSrv, cfg.ShutdownTimeout, logger)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func newAPIHandler(store domain.Store, cfg Config, logger *log.Entry) http.Handler {
	engine := orders.NewEngine(store,
		orders.WithLogger(logger.WithField("component", "order-engine")),
		orders.WithMetrics(metrics.NewOrderMetrics()),
		orders.WithRetryConfig(engineRetryConfig(cfg)),
	)

	return httpapi.NewRouter(httpapi.Config{
		Orders:         engine,
		Products:       catalog.NewService(store, logger.WithField("component", "catalog")),
		Users:          accounts.NewService(store, logger.WithField("component", "accounts")),
		Logger:         logger.WithField("component", "http-api"),
		RequestTimeout: cfg.RequestTimeout,
	})
}

// engineRetryConfig сохраняет backoff по умолчанию и переопределяет только число попыток.
func engineRetryConfig(cfg Config) orders.RetryConfig {
	retry := orders.DefaultRetryConfig()
	if cfg.EngineMaxAttempts > 0 {
		retry.MaxAttempts = cfg.EngineMaxAttempts
	}
	return retry
}

// newOutboxWorker возвращает nil, если публиковать некуда.
func newOutboxWorker(store domain.Store, producer *kafka.Producer, cfg Config, logger *log.Entry) *outbox.Worker {
	if producer == nil {
		return nil
	}

	return outbox.NewWorker(
		store.Outbox(),
		kafka.NewOutboxPublisher(producer, cfg.KafkaTopic),
		outbox.WithLogger(logger.WithField("component", "outbox-worker")),
		outbox.WithMetrics(metrics.NewOutboxMetrics()),
		outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, dlqTopic(cfg))),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)
}

func dlqTopic(cfg Config) string {
	if cfg.KafkaDLQTopic != "" {
		return cfg.KafkaDLQTopic
	}
	return kafka.TopicOrderEventsDLQ
}

func newMetricsMux(healthHandler *healthcheck.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	return mux
}

func serveHTTP(srv *http.Server, lis net.Listener) error {
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// shutdownHTTP останавливает сервер, дожидаясь активных запросов не дольше timeout.
func shutdownHTTP(srv *http.Server, timeout time.Duration, logger *log.Entry) {
	if srv == nil {
		return
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
