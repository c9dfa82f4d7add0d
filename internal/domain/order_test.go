package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/stockorders/internal/domain"
)

// helper для создания заказа в статусе PENDING.
func makeOrder() domain.Order {
	return domain.Order{
		ID:          10,
		OrderDate:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		User:        domain.User{ID: 1, Username: "alice", Email: "alice@example.com"},
		Product:     domain.Product{ID: 2, Name: "Widget", Price: 10, Stock: 45},
		Quantity:    5,
		Status:      domain.OrderStatusPending,
		TotalAmount: 50,
	}
}

func TestOrderStatusBarriers(t *testing.T) {
	cases := []struct {
		status     domain.OrderStatus
		cancelable bool
	}{
		{status: domain.OrderStatusPending, cancelable: true},
		{status: domain.OrderStatusCanceled, cancelable: false},
		{status: domain.OrderStatusCompleted, cancelable: false},
	}

	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			order := makeOrder()
			order.Status = tc.status

			cancelErr := order.EnsureCancelable()
			updateErr := order.EnsureUpdatable()
			if tc.cancelable {
				if cancelErr != nil || updateErr != nil {
					t.Fatalf("expected pending order to be mutable, got %v / %v", cancelErr, updateErr)
				}
				return
			}
			if !domain.IsInvalidOperation(cancelErr) || cancelErr.Error() != domain.MsgOnlyPendingCanCancel {
				t.Fatalf("unexpected cancel error: %v", cancelErr)
			}
			if !domain.IsInvalidOperation(updateErr) || updateErr.Error() != domain.MsgOnlyPendingCanUpdate {
				t.Fatalf("unexpected update error: %v", updateErr)
			}
			if !tc.status.Terminal() {
				t.Fatalf("status %s should be terminal", tc.status)
			}
		})
	}
}

func TestOrderStatusValid(t *testing.T) {
	if !domain.OrderStatusCompleted.Valid() {
		t.Fatal("COMPLETED must be valid")
	}
	if domain.OrderStatus("SHIPPED").Valid() {
		t.Fatal("unknown status must be invalid")
	}
}

func TestCalculateTotal(t *testing.T) {
	if got := domain.CalculateTotal(10.0, 5); got != 50.0 {
		t.Fatalf("expected 50, got %v", got)
	}
	if got := domain.CalculateTotal(2.5, 4); got != 10.0 {
		t.Fatalf("expected 10, got %v", got)
	}
}

func TestNewOrderOutboxMessage(t *testing.T) {
	order := makeOrder()
	at := time.Date(2024, 3, 1, 12, 0, 1, 0, time.UTC)

	msg, err := domain.NewOrderOutboxMessage(domain.EventOrderCreated, order, at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.AggregateType != domain.AggregateOrder || msg.AggregateID != "10" {
		t.Fatalf("unexpected aggregate: %s/%s", msg.AggregateType, msg.AggregateID)
	}

	var event domain.OrderEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		t.Fatalf("payload is not valid json: %v", err)
	}
	if event.ProductStock != 45 || event.Quantity != 5 || event.Status != domain.OrderStatusPending {
		t.Fatalf("unexpected payload: %+v", event)
	}
}
