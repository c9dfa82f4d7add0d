package app

import "time"

// Поддерживаемые драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска сервиса заказов.
type Config struct {
	HTTPAddr        string
	MetricsAddr     string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	KafkaBrokers  []string
	KafkaTopic    string
	KafkaDLQTopic string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	EngineMaxAttempts int

	ServiceName  string
	OTelEndpoint string
	OTelInsecure bool
}

// DefaultConfig возвращает конфигурацию для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":8080",
		MetricsAddr:         ":9090",
		RequestTimeout:      15 * time.Second,
		ShutdownTimeout:     5 * time.Second,
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   3,
		OutboxRetryDelay:    50 * time.Millisecond,
		EngineMaxAttempts:   5,
		ServiceName:         "order-service",
		OTelInsecure:        true,
	}
}
