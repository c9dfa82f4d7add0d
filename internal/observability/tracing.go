package observability

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	defaultExportTimeout = 10 * time.Second
	defaultMaxQueueSize  = 2048
)

// TracingConfig задаёт экспорт спанов по OTLP/HTTP.
type TracingConfig struct {
	// Endpoint в формате host:port; пустое значение отключает экспорт.
	Endpoint       string
	URLPath        string
	Insecure       bool
	ServiceName    string
	ServiceVersion string
	SampleRatio    float64
}

// ShutdownFunc сбрасывает и останавливает провайдер трейсинга.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// SetupTracing устанавливает глобальный TracerProvider с OTLP-экспортером.
// Без Endpoint глобальный провайдер остаётся no-op.
func SetupTracing(ctx context.Context, cfg TracingConfig, logger *log.Entry) (ShutdownFunc, error) {
	if logger == nil {
		logger = log.WithField("component", "tracing")
	}
	if cfg.Endpoint == "" {
		logger.Debug("tracing exporter disabled")
		return noopShutdown, nil
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build tracing resource: %w", err)
	}

	exporter, err := otlptracehttp.New(ctx, exporterOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("create otlp trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(samplerFor(cfg.SampleRatio)),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter,
			sdktrace.WithExportTimeout(defaultExportTimeout),
			sdktrace.WithMaxQueueSize(defaultMaxQueueSize),
		)),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.WithFields(log.Fields{
		"endpoint": cfg.Endpoint,
		"service":  cfg.ServiceName,
	}).Info("tracing exporter enabled")

	return provider.Shutdown, nil
}

func exporterOptions(cfg TracingConfig) []otlptracehttp.Option {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.URLPath != "" {
		opts = append(opts, otlptracehttp.WithURLPath(cfg.URLPath))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return opts
}

func samplerFor(ratio float64) sdktrace.Sampler {
	switch {
	case ratio <= 0 || ratio >= 1:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// newResource собирает атрибуты сервиса без schema URL.
func newResource(ctx context.Context, cfg TracingConfig) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
}
