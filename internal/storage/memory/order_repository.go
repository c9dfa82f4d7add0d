package memory

import (
	"context"
	"time"

	"github.com/vladislavdragonenkov/stockorders/internal/domain"
)

// orderRepository — представление заказов внутри транзакции.
// Пользователь и товар подставляются из текущего состояния при каждом чтении.
type orderRepository struct {
	tx *tx
}

// Get возвращает заказ или ошибку "Order not found", если его нет.
func (r *orderRepository) Get(_ context.Context, id int64) (domain.Order, error) {
	row, ok := r.tx.order(id)
	if !ok {
		return domain.Order{}, domain.OrderNotFound(id)
	}
	return r.materialize(row)
}

func (r *orderRepository) List(context.Context) ([]domain.Order, error) {
	return r.materializeAll(r.tx.orderRows(func(orderRow) bool { return true }))
}

func (r *orderRepository) ListByUser(_ context.Context, userID int64) ([]domain.Order, error) {
	return r.materializeAll(r.tx.orderRows(func(row orderRow) bool {
		return row.userID == userID
	}))
}

// ListByDateRange включает обе границы интервала.
func (r *orderRepository) ListByDateRange(_ context.Context, start, end time.Time) ([]domain.Order, error) {
	return r.materializeAll(r.tx.orderRows(func(row orderRow) bool {
		return !row.orderDate.Before(start) && !row.orderDate.After(end)
	}))
}

// Create сохраняет ссылки на пользователя и товар; оба должны существовать.
func (r *orderRepository) Create(_ context.Context, order domain.Order) (domain.Order, error) {
	if _, ok := r.tx.user(order.User.ID); !ok {
		return domain.Order{}, domain.UserNotFound(order.User.ID)
	}
	if _, ok := r.tx.product(order.Product.ID); !ok {
		return domain.Order{}, domain.ProductNotFound(order.Product.ID)
	}

	row := toOrderRow(order)
	row.id = r.tx.store.allocateID(&r.tx.store.nextOrderID)
	row.version = 0
	r.tx.orders[row.id] = row
	return r.materialize(row)
}

// Update перезаписывает изменяемые поля заказа, проверяя версию (optimistic locking).
func (r *orderRepository) Update(_ context.Context, order domain.Order) (domain.Order, error) {
	current, ok := r.tx.order(order.ID)
	if !ok {
		return domain.Order{}, domain.OrderNotFound(order.ID)
	}
	if current.version != order.Version {
		return domain.Order{}, domain.ErrVersionConflict
	}

	if _, tracked := r.tx.orderBase[order.ID]; !tracked {
		if _, created := r.tx.orders[order.ID]; !created {
			r.tx.orderBase[order.ID] = current.version
		}
	}

	current.quantity = order.Quantity
	current.status = order.Status
	current.totalAmount = order.TotalAmount
	current.version++
	r.tx.orders[order.ID] = current
	return r.materialize(current)
}

func (r *orderRepository) materialize(row orderRow) (domain.Order, error) {
	user, ok := r.tx.user(row.userID)
	if !ok {
		return domain.Order{}, domain.UserNotFound(row.userID)
	}
	product, ok := r.tx.product(row.productID)
	if !ok {
		return domain.Order{}, domain.ProductNotFound(row.productID)
	}
	return domain.Order{
		ID:          row.id,
		OrderDate:   row.orderDate,
		User:        user,
		Product:     product,
		Quantity:    row.quantity,
		Status:      row.status,
		TotalAmount: row.totalAmount,
		Version:     row.version,
	}, nil
}

func (r *orderRepository) materializeAll(rows []orderRow) ([]domain.Order, error) {
	result := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		order, err := r.materialize(row)
		if err != nil {
			return nil, err
		}
		result = append(result, order)
	}
	return result, nil
}

func toOrderRow(order domain.Order) orderRow {
	return orderRow{
		id:          order.ID,
		orderDate:   order.OrderDate,
		userID:      order.User.ID,
		productID:   order.Product.ID,
		quantity:    order.Quantity,
		status:      order.Status,
		totalAmount: order.TotalAmount,
		version:     order.Version,
	}
}

var _ domain.OrderRepository = (*orderRepository)(nil)
