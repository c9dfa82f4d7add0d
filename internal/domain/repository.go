package domain

import (
	"context"
	"time"
)

// UserRepository описывает требования к хранилищу пользователей.
type UserRepository interface {
	// Get возвращает пользователя или ошибку вида ErrNotFound.
	Get(ctx context.Context, id int64) (User, error)
	List(ctx context.Context) ([]User, error)
	// Create присваивает ID и сохраняет пользователя.
	Create(ctx context.Context, user User) (User, error)
}

// ProductRepository описывает требования к каталогу товаров.
type ProductRepository interface {
	// Get возвращает товар или ошибку вида ErrNotFound.
	Get(ctx context.Context, id int64) (Product, error)
	List(ctx context.Context) ([]Product, error)
	// Create присваивает ID, выставляет Version = 0 и сохраняет товар.
	Create(ctx context.Context, product Product) (Product, error)
	// Update — compare-and-write по Version: при расхождении возвращает ErrVersionConflict,
	// при успехе — товар с увеличенной версией.
	Update(ctx context.Context, product Product) (Product, error)
}

// OrderRepository описывает требования к хранилищу заказов.
// Хранится только ссылка на пользователя и товар; при чтении они подставляются актуальными.
type OrderRepository interface {
	// Get возвращает заказ по идентификатору или ошибку вида ErrNotFound.
	Get(ctx context.Context, id int64) (Order, error)
	// List возвращает все заказы, упорядоченные по дате и ID.
	List(ctx context.Context) ([]Order, error)
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	// ListByDateRange возвращает заказы с OrderDate в [start, end] включительно.
	ListByDateRange(ctx context.Context, start, end time.Time) ([]Order, error)
	// Create присваивает ID и сохраняет новый заказ.
	Create(ctx context.Context, order Order) (Order, error)
	// Update применяет изменения статуса/количества/суммы с учётом optimistic locking.
	Update(ctx context.Context, order Order) (Order, error)
}
