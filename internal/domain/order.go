package domain

import "time"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, сток зарезервирован.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusCanceled — заказ отменён, резерв возвращён на склад.
	OrderStatusCanceled OrderStatus = "CANCELED"
	// OrderStatusCompleted — заказ исполнен внешней системой; движок сюда не переводит.
	OrderStatusCompleted OrderStatus = "COMPLETED"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusCanceled, OrderStatusCompleted:
		return true
	default:
		return false
	}
}

// Terminal возвращает true для статусов, из которых переходов нет.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCanceled || s == OrderStatusCompleted
}

// Order — заказ на один товар.
// User и Product хранятся ссылками (по ID) и подставляются актуальными при каждом чтении.
type Order struct {
	ID          int64
	OrderDate   time.Time
	User        User
	Product     Product
	Quantity    int
	Status      OrderStatus
	TotalAmount float64
	// Version используется для optimistic locking.
	Version int64
}

// EnsureCancelable разрешает отмену только для заказов в статусе PENDING.
func (o *Order) EnsureCancelable() error {
	if o.Status != OrderStatusPending {
		return InvalidOperation(MsgOnlyPendingCanCancel)
	}
	return nil
}

// EnsureUpdatable разрешает изменение количества только для заказов в статусе PENDING.
func (o *Order) EnsureUpdatable() error {
	if o.Status != OrderStatusPending {
		return InvalidOperation(MsgOnlyPendingCanUpdate)
	}
	return nil
}

// CalculateTotal возвращает price * quantity без округлений.
func CalculateTotal(price float64, quantity int) float64 {
	return price * float64(quantity)
}
