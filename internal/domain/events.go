package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// AggregateOrder — тип агрегата для событий заказа в outbox.
const AggregateOrder = "order"

// Типы событий жизненного цикла заказа.
const (
	EventOrderCreated         = "order.created"
	EventOrderCanceled        = "order.canceled"
	EventOrderQuantityChanged = "order.quantity_changed"
)

// OrderEvent — полезная нагрузка события заказа.
type OrderEvent struct {
	EventType    string      `json:"event_type"`
	OrderID      int64       `json:"order_id"`
	UserID       int64       `json:"user_id"`
	ProductID    int64       `json:"product_id"`
	Quantity     int         `json:"quantity"`
	Status       OrderStatus `json:"status"`
	TotalAmount  float64     `json:"total_amount"`
	ProductStock int         `json:"product_stock"`
	OccurredAt   time.Time   `json:"occurred_at"`
}

// NewOrderOutboxMessage сериализует состояние заказа в сообщение outbox.
func NewOrderOutboxMessage(eventType string, order Order, at time.Time) (OutboxMessage, error) {
	payload, err := json.Marshal(OrderEvent{
		EventType:    eventType,
		OrderID:      order.ID,
		UserID:       order.User.ID,
		ProductID:    order.Product.ID,
		Quantity:     order.Quantity,
		Status:       order.Status,
		TotalAmount:  order.TotalAmount,
		ProductStock: order.Product.Stock,
		OccurredAt:   at.UTC(),
	})
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal order event: %w", err)
	}

	return OutboxMessage{
		AggregateType: AggregateOrder,
		AggregateID:   strconv.FormatInt(order.ID, 10),
		EventType:     eventType,
		Payload:       payload,
	}, nil
}
