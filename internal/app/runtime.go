package app

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/stockorders/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/stockorders/internal/health"
	"github.com/vladislavdragonenkov/stockorders/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/stockorders/internal/storage/memory"
	"github.com/vladislavdragonenkov/stockorders/internal/storage/postgres"
)

var errPostgresDSNRequired = errors.New("postgres storage requires PostgresDSN")

type runtimeDependencies struct {
	store          domain.Store
	storageChecker healthcheck.Checker
	closeFn        func() error
}

// initRuntimeDependencies открывает хранилище согласно cfg.StorageDriver.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case "", StorageDriverMemory:
		store := memory.NewStore()
		logger.Info("using in-memory storage")
		return &runtimeDependencies{
			store:          store,
			storageChecker: healthcheck.NewStorageChecker(store),
			closeFn:        store.Close,
		}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, errPostgresDSNRequired
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres storage: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply postgres migrations: %w", err)
			}
		}
		logger.WithField("auto_migrate", cfg.PostgresAutoMigrate).Info("using postgres storage")
		return &runtimeDependencies{
			store:          store,
			storageChecker: healthcheck.NewStorageChecker(store),
			closeFn:        store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// initKafkaProducer возвращает nil без брокеров или при ошибке подключения;
// в этом случае события остаются в outbox.
func initKafkaProducer(cfg Config, logger *log.Entry) *kafka.Producer {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("kafka brokers are not configured, outbox events stay pending")
		return nil
	}

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:    cfg.KafkaBrokers,
		ClientID:   cfg.ServiceName,
		Idempotent: true,
	}, logger.WithField("component", "kafka-producer"))
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil
	}

	logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")
	return producer
}

func closeKafkaProducer(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
		return
	}
	logger.Info("kafka producer closed")
}
