package domain

import (
	"context"
	"time"
)

// Tx — репозитории, работающие в рамках одной единицы работы.
type Tx interface {
	Users() UserRepository
	Products() ProductRepository
	Orders() OrderRepository
	Outbox() OutboxWriter
}

// Store — точка входа в хранилище: атомарные транзакции и outbox для воркера.
type Store interface {
	// WithinTx выполняет fn атомарно: все записи фиксируются вместе или не фиксируются вовсе.
	// Ошибка из fn откатывает транзакцию и возвращается как есть.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// Outbox возвращает репозиторий outbox вне транзакций (для воркера публикации).
	Outbox() OutboxRepository
	Ping(ctx context.Context) error
	Close() error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxWriter ставит события в очередь внутри транзакции.
type OutboxWriter interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
}

// OutboxRepository позволяет сохранять и вычитывать события для последующей публикации.
type OutboxRepository interface {
	OutboxWriter
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
