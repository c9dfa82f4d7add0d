package kafka

// Топики событий заказов.
const (
	TopicOrderEvents    = "oms.order.events"
	TopicOrderEventsDLQ = "oms.order.events.dlq"
)

// Заголовки сообщений с событиями outbox.
const (
	HeaderEventType     = "x-event-type"
	HeaderAggregateType = "x-aggregate-type"
	HeaderOutboxID      = "x-outbox-id"
)
