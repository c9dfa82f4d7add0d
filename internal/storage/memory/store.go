package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/stockorders/internal/domain"
)

// orderRow — запись заказа в хранилище: только ссылки на пользователя и товар.
type orderRow struct {
	id          int64
	orderDate   time.Time
	userID      int64
	productID   int64
	quantity    int
	status      domain.OrderStatus
	totalAmount float64
	version     int64
}

// Store — in-memory реализация domain.Store для локальной разработки и тестов.
type Store struct {
	mu       sync.RWMutex
	users    map[int64]domain.User
	products map[int64]domain.Product
	orders   map[int64]orderRow

	nextUserID    int64
	nextProductID int64
	nextOrderID   int64

	outbox *outboxRepositoryInMemory
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{
		users:    make(map[int64]domain.User),
		products: make(map[int64]domain.Product),
		orders:   make(map[int64]orderRow),
		outbox:   NewOutboxRepository(),
	}
}

// WithinTx выполняет fn над буфером транзакции и применяет его атомарно.
// Версии изменённых товаров и заказов перепроверяются при фиксации.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t := newTx(s)
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(ctx, t)
}

// Outbox возвращает репозиторий outbox для воркера публикации.
func (s *Store) Outbox() domain.OutboxRepository {
	return s.outbox
}

// Ping всегда успешен для in-memory хранилища.
func (s *Store) Ping(context.Context) error { return nil }

// Close ничего не освобождает.
func (s *Store) Close() error { return nil }

func (s *Store) commit(ctx context.Context, t *tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, base := range t.productBase {
		if current, ok := s.products[id]; !ok || current.Version != base {
			return domain.ErrVersionConflict
		}
	}
	for id, base := range t.orderBase {
		if current, ok := s.orders[id]; !ok || current.version != base {
			return domain.ErrVersionConflict
		}
	}

	for id, user := range t.users {
		s.users[id] = user
	}
	for id, product := range t.products {
		s.products[id] = product
	}
	for id, row := range t.orders {
		s.orders[id] = row
	}
	for _, msg := range t.outbox {
		if _, err := s.outbox.Enqueue(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) allocateID(counter *int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	*counter++
	return *counter
}

// tx буферизует записи одной единицы работы.
type tx struct {
	store *Store

	users       map[int64]domain.User
	products    map[int64]domain.Product
	orders      map[int64]orderRow
	productBase map[int64]int64
	orderBase   map[int64]int64
	outbox      []domain.OutboxMessage
}

func newTx(s *Store) *tx {
	return &tx{
		store:       s,
		users:       make(map[int64]domain.User),
		products:    make(map[int64]domain.Product),
		orders:      make(map[int64]orderRow),
		productBase: make(map[int64]int64),
		orderBase:   make(map[int64]int64),
	}
}

func (t *tx) Users() domain.UserRepository       { return &userRepository{tx: t} }
func (t *tx) Products() domain.ProductRepository { return &productRepository{tx: t} }
func (t *tx) Orders() domain.OrderRepository     { return &orderRepository{tx: t} }
func (t *tx) Outbox() domain.OutboxWriter        { return &outboxWriter{tx: t} }

func (t *tx) user(id int64) (domain.User, bool) {
	if user, ok := t.users[id]; ok {
		return user, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	user, ok := t.store.users[id]
	return user, ok
}

func (t *tx) product(id int64) (domain.Product, bool) {
	if product, ok := t.products[id]; ok {
		return product, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	product, ok := t.store.products[id]
	return product, ok
}

func (t *tx) order(id int64) (orderRow, bool) {
	if row, ok := t.orders[id]; ok {
		return row, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	row, ok := t.store.orders[id]
	return row, ok
}

// orderRows возвращает видимые в транзакции заказы, отфильтрованные match.
func (t *tx) orderRows(match func(orderRow) bool) []orderRow {
	t.store.mu.RLock()
	rows := make([]orderRow, 0, len(t.store.orders)+len(t.orders))
	for id, row := range t.store.orders {
		if _, staged := t.orders[id]; staged {
			continue
		}
		if match(row) {
			rows = append(rows, row)
		}
	}
	t.store.mu.RUnlock()

	for _, row := range t.orders {
		if match(row) {
			rows = append(rows, row)
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].orderDate.Equal(rows[j].orderDate) {
			return rows[i].orderDate.Before(rows[j].orderDate)
		}
		return rows[i].id < rows[j].id
	})
	return rows
}

var _ domain.Store = (*Store)(nil)
