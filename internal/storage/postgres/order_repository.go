package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/stockorders/internal/domain"
)

const (
	orderSelect = `
	SELECT o.id, o.order_date, o.quantity, o.status, o.total_amount, o.version,
	       u.id, u.username, u.email,
	       p.id, p.name, p.description, p.price, p.stock, p.version
	FROM orders o
	JOIN users u ON u.id = o.user_id
	JOIN products p ON p.id = o.product_id`
	orderOrdering = ` ORDER BY o.order_date, o.id`

	ordersUserFK    = "orders_user_id_fkey"
	ordersProductFK = "orders_product_id_fkey"
)

type orderRepository struct {
	q querier
}

func (r *orderRepository) Get(ctx context.Context, id int64) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var rec orderRecord
	if err := r.q.QueryRowContext(ctx, orderSelect+` WHERE o.id = $1`, id).Scan(rec.scanTargets()...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.OrderNotFound(id)
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	return rec.toDomain(), nil
}

func (r *orderRepository) List(ctx context.Context) ([]domain.Order, error) {
	return r.query(ctx, orderSelect+orderOrdering)
}

func (r *orderRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	return r.query(ctx, orderSelect+` WHERE o.user_id = $1`+orderOrdering, userID)
}

// ListByDateRange включает обе границы интервала.
func (r *orderRepository) ListByDateRange(ctx context.Context, start, end time.Time) ([]domain.Order, error) {
	return r.query(ctx, orderSelect+` WHERE o.order_date BETWEEN $1 AND $2`+orderOrdering, start.UTC(), end.UTC())
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	insertCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var id int64
	err := r.q.QueryRowContext(insertCtx, `
		INSERT INTO orders (
			order_date, user_id, product_id, quantity, status, total_amount, version
		) VALUES ($1, $2, $3, $4, $5, $6, 0)
		RETURNING id
	`,
		order.OrderDate.UTC(), order.User.ID, order.Product.ID, order.Quantity,
		string(order.Status), order.TotalAmount,
	).Scan(&id)
	if err != nil {
		if code, constraint := pgErrorCode(err); code == pgForeignKeyViolation {
			switch constraint {
			case ordersUserFK:
				return domain.Order{}, domain.UserNotFound(order.User.ID)
			case ordersProductFK:
				return domain.Order{}, domain.ProductNotFound(order.Product.ID)
			}
		}
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}

	return r.Get(ctx, id)
}

// Update перезаписывает количество, статус и сумму с проверкой версии (optimistic locking).
func (r *orderRepository) Update(ctx context.Context, order domain.Order) (domain.Order, error) {
	updateCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(updateCtx, `
		UPDATE orders
		SET quantity = $3,
		    status = $4,
		    total_amount = $5,
		    version = version + 1
		WHERE id = $1 AND version = $2
	`, order.ID, order.Version, order.Quantity, string(order.Status), order.TotalAmount)
	if err != nil {
		return domain.Order{}, fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Order{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, existsErr := rowExists(updateCtx, r.q, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, order.ID)
		if existsErr != nil {
			return domain.Order{}, existsErr
		}
		if !exists {
			return domain.Order{}, domain.OrderNotFound(order.ID)
		}
		return domain.Order{}, domain.ErrVersionConflict
	}

	return r.Get(ctx, order.ID)
}

func (r *orderRepository) query(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Order, 0)
	for rows.Next() {
		var rec orderRecord
		if err := rows.Scan(rec.scanTargets()...); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		result = append(result, rec.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return result, nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)
