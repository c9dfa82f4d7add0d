package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/stockorders/internal/app"
	"github.com/vladislavdragonenkov/stockorders/internal/version"
)

const (
	envHTTPAddr            = "OMS_HTTP_ADDR"
	envMetricsAddr         = "OMS_METRICS_ADDR"
	envStorageDriver       = "OMS_STORAGE_DRIVER"
	envPostgresDSN         = "OMS_POSTGRES_DSN"
	envPostgresAutoMigrate = "OMS_POSTGRES_AUTO_MIGRATE"
	envKafkaBrokers        = "OMS_KAFKA_BROKERS"
	envKafkaTopic          = "OMS_KAFKA_TOPIC"
	envKafkaDLQTopic       = "OMS_KAFKA_DLQ_TOPIC"
	envOutboxPollInterval  = "OMS_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize     = "OMS_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts   = "OMS_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay    = "OMS_OUTBOX_RETRY_DELAY"
	envEngineMaxAttempts   = "OMS_ENGINE_MAX_ATTEMPTS"
	envOTelEndpoint        = "OMS_OTEL_ENDPOINT"
	envOTelInsecure        = "OMS_OTEL_INSECURE"
	envLogLevel            = "OMS_LOG_LEVEL"
)

type envLookup func(key string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(lookup envLookup) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
	if raw, ok := lookup(envLogLevel); ok {
		if level, err := log.ParseLevel(strings.TrimSpace(raw)); err == nil {
			log.SetLevel(level)
		}
	}
}

// readConfigFromEnv накладывает переменные окружения на DefaultConfig.
// Некорректные значения игнорируются и возвращаются как предупреждения.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string
	warn := func(key string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s: %v, using default", key, err))
	}

	setString := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	setBool := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			parsed, err := parseBool(v)
			if err != nil {
				warn(key, err)
				return
			}
			*dst = parsed
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			parsed, err := parseInt(v, func(n int) bool { return n > 0 }, "must be > 0")
			if err != nil {
				warn(key, err)
				return
			}
			*dst = parsed
		}
	}
	setDuration := func(key string, dst *time.Duration, valid func(time.Duration) bool, rule string) {
		if v, ok := lookup(key); ok {
			parsed, err := parseDuration(v, valid, rule)
			if err != nil {
				warn(key, err)
				return
			}
			*dst = parsed
		}
	}

	setString(envHTTPAddr, &cfg.HTTPAddr)
	setString(envMetricsAddr, &cfg.MetricsAddr)
	setString(envStorageDriver, &cfg.StorageDriver)
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	setString(envPostgresDSN, &cfg.PostgresDSN)
	setBool(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)
	if v, ok := lookup(envKafkaBrokers); ok {
		cfg.KafkaBrokers = splitList(v)
	}
	setString(envKafkaTopic, &cfg.KafkaTopic)
	setString(envKafkaDLQTopic, &cfg.KafkaDLQTopic)
	setDuration(envOutboxPollInterval, &cfg.OutboxPollInterval, func(d time.Duration) bool { return d > 0 }, "must be > 0")
	setInt(envOutboxBatchSize, &cfg.OutboxBatchSize)
	setInt(envOutboxMaxAttempts, &cfg.OutboxMaxAttempts)
	setDuration(envOutboxRetryDelay, &cfg.OutboxRetryDelay, func(d time.Duration) bool { return d >= 0 }, "must be >= 0")
	setInt(envEngineMaxAttempts, &cfg.EngineMaxAttempts)
	setString(envOTelEndpoint, &cfg.OTelEndpoint)
	setBool(envOTelInsecure, &cfg.OTelInsecure)

	return cfg, warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if !valid(value) {
		return 0, fmt.Errorf("%d %s", value, rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if !valid(value) {
		return 0, fmt.Errorf("%s %s", value, rule)
	}
	return value, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("failed to load .env")
	}

	setupLogger(os.LookupEnv)
	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, w := range warnings {
		log.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"http_addr":      cfg.HTTPAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
		"version":        version.GetVersion(),
	}).Info("запускаем order-service")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("order-service остановлен")
}
