package orders_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/stockorders/internal/domain"
	"github.com/vladislavdragonenkov/stockorders/internal/metrics"
	"github.com/vladislavdragonenkov/stockorders/internal/service/orders"
	"github.com/vladislavdragonenkov/stockorders/internal/storage/memory"
)

func loggerForTests() *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: false, DisableTimestamp: true})
	logger.SetLevel(logrus.DebugLevel)
	return logger.WithField("component", "test")
}

type testEnv struct {
	store  *memory.Store
	engine *orders.Engine
}

func newTestEnv(t *testing.T, options ...orders.Option) testEnv {
	t.Helper()

	store := memory.NewStore()
	base := []orders.Option{
		orders.WithLogger(loggerForTests()),
		orders.WithMetrics(metrics.NewOrderMetricsWithRegisterer(prometheus.NewRegistry())),
		orders.WithRetryConfig(orders.RetryConfig{MaxAttempts: 20, InitialDelay: 0, MaxDelay: time.Millisecond, BackoffFactor: 2}),
	}
	return testEnv{
		store:  store,
		engine: orders.NewEngine(store, append(base, options...)...),
	}
}

func (env testEnv) seedUser(t *testing.T, name string) domain.User {
	t.Helper()

	var user domain.User
	err := env.store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		var err error
		user, err = tx.Users().Create(ctx, domain.User{Username: name, Email: name + "@example.com"})
		return err
	})
	require.NoError(t, err)
	return user
}

func (env testEnv) seedProduct(t *testing.T, price float64, stock int) domain.Product {
	t.Helper()

	var product domain.Product
	err := env.store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		var err error
		product, err = tx.Products().Create(ctx, domain.Product{Name: "Widget", Price: price, Stock: stock})
		return err
	})
	require.NoError(t, err)
	return product
}

func (env testEnv) stock(t *testing.T, productID int64) int {
	t.Helper()

	var stock int
	err := env.store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		product, err := tx.Products().Get(ctx, productID)
		stock = product.Stock
		return err
	})
	require.NoError(t, err)
	return stock
}

func (env testEnv) setPrice(t *testing.T, productID int64, price float64) {
	t.Helper()

	err := env.store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		product, err := tx.Products().Get(ctx, productID)
		if err != nil {
			return err
		}
		product.Price = price
		_, err = tx.Products().Update(ctx, product)
		return err
	})
	require.NoError(t, err)
}

func TestEngine_ConcreteLifecycleScenario(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "alice")
	product := env.seedProduct(t, 100.0, 50)
	ctx := context.Background()

	order, err := env.engine.CreateOrder(ctx, user.ID, product.ID, 5)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusPending, order.Status)
	require.Equal(t, 500.0, order.TotalAmount)
	require.Equal(t, 45, env.stock(t, product.ID))
	require.Equal(t, 45, order.Product.Stock)
	require.Equal(t, user.ID, order.User.ID)

	order, err = env.engine.UpdateOrderQuantity(ctx, order.ID, 4)
	require.NoError(t, err)
	require.Equal(t, 4, order.Quantity)
	require.Equal(t, 400.0, order.TotalAmount)
	require.Equal(t, 46, env.stock(t, product.ID))

	order, err = env.engine.CancelOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusCanceled, order.Status)
	require.Equal(t, 50, env.stock(t, product.ID))
	require.Equal(t, 4, order.Quantity)
	require.Equal(t, 400.0, order.TotalAmount)
}

func TestEngine_CreateOrderReservesStock(t *testing.T) {
	cases := []struct {
		name     string
		stock    int
		quantity int
	}{
		{name: "single unit", stock: 10, quantity: 1},
		{name: "exact stock", stock: 7, quantity: 7},
		{name: "part of stock", stock: 100, quantity: 33},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			user := env.seedUser(t, "bob")
			product := env.seedProduct(t, 2.5, tc.stock)

			order, err := env.engine.CreateOrder(context.Background(), user.ID, product.ID, tc.quantity)
			require.NoError(t, err)
			require.Equal(t, domain.OrderStatusPending, order.Status)
			require.Equal(t, 2.5*float64(tc.quantity), order.TotalAmount)
			require.Equal(t, tc.stock-tc.quantity, env.stock(t, product.ID))
		})
	}
}

func TestEngine_CreateOrderRejections(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "carol")
	product := env.seedProduct(t, 10, 3)
	ctx := context.Background()

	cases := []struct {
		name      string
		userID    int64
		productID int64
		quantity  int
		notFound  bool
		wantMsg   string
	}{
		{name: "unknown user", userID: 999, productID: product.ID, quantity: 1, notFound: true, wantMsg: "User not found with id 999"},
		{name: "unknown product", userID: user.ID, productID: 888, quantity: 1, notFound: true, wantMsg: "Product not found with id 888"},
		{name: "not found before quantity check", userID: 999, productID: product.ID, quantity: 0, notFound: true, wantMsg: "User not found with id 999"},
		{name: "zero quantity", userID: user.ID, productID: product.ID, quantity: 0, wantMsg: domain.MsgQuantityNotPositive},
		{name: "negative quantity", userID: user.ID, productID: product.ID, quantity: -2, wantMsg: domain.MsgQuantityNotPositive},
		{name: "insufficient stock", userID: user.ID, productID: product.ID, quantity: 4, wantMsg: "Insufficient stock for product id 1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.engine.CreateOrder(ctx, tc.userID, tc.productID, tc.quantity)
			require.Error(t, err)
			require.Equal(t, tc.notFound, domain.IsNotFound(err))
			require.Equal(t, !tc.notFound, domain.IsInvalidOperation(err))
			require.EqualError(t, err, tc.wantMsg)
			require.Equal(t, 3, env.stock(t, product.ID))
		})
	}

	all, err := env.engine.GetAllOrders(ctx)
	require.NoError(t, err)
	require.Empty(t, all)

	pending, err := env.store.Outbox().PullPending(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestEngine_CancelOrderIsNotRepeatable(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "dave")
	product := env.seedProduct(t, 1, 10)
	ctx := context.Background()

	order, err := env.engine.CreateOrder(ctx, user.ID, product.ID, 6)
	require.NoError(t, err)
	require.Equal(t, 4, env.stock(t, product.ID))

	_, err = env.engine.CancelOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, 10, env.stock(t, product.ID))

	_, err = env.engine.CancelOrder(ctx, order.ID)
	require.True(t, domain.IsInvalidOperation(err))
	require.EqualError(t, err, domain.MsgOnlyPendingCanCancel)
	require.Equal(t, 10, env.stock(t, product.ID))

	_, err = env.engine.UpdateOrderQuantity(ctx, order.ID, 2)
	require.True(t, domain.IsInvalidOperation(err))
	require.EqualError(t, err, domain.MsgOnlyPendingCanUpdate)

	_, err = env.engine.CancelOrder(ctx, 404)
	require.True(t, domain.IsNotFound(err))
	require.EqualError(t, err, "Order not found with id 404")
}

func TestEngine_CompletedOrderIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "erin")
	product := env.seedProduct(t, 1, 10)
	ctx := context.Background()

	order, err := env.engine.CreateOrder(ctx, user.ID, product.ID, 2)
	require.NoError(t, err)

	// Завершение заказа выполняется вне движка.
	err = env.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		o, err := tx.Orders().Get(ctx, order.ID)
		if err != nil {
			return err
		}
		o.Status = domain.OrderStatusCompleted
		_, err = tx.Orders().Update(ctx, o)
		return err
	})
	require.NoError(t, err)

	_, err = env.engine.CancelOrder(ctx, order.ID)
	require.EqualError(t, err, domain.MsgOnlyPendingCanCancel)
	_, err = env.engine.UpdateOrderQuantity(ctx, order.ID, 1)
	require.EqualError(t, err, domain.MsgOnlyPendingCanUpdate)
	require.Equal(t, 8, env.stock(t, product.ID))
}

func TestEngine_UpdateOrderQuantity(t *testing.T) {
	cases := []struct {
		name        string
		stock       int
		initial     int
		newQuantity int
		wantErr     string
		wantStock   int
	}{
		{name: "increase within stock", stock: 10, initial: 2, newQuantity: 5, wantStock: 5},
		{name: "increase consumes all stock", stock: 10, initial: 2, newQuantity: 10, wantStock: 0},
		{name: "decrease returns stock", stock: 10, initial: 6, newQuantity: 1, wantStock: 9},
		{name: "same quantity", stock: 10, initial: 3, newQuantity: 3, wantStock: 7},
		{name: "increase beyond stock", stock: 10, initial: 2, newQuantity: 11, wantErr: domain.MsgInsufficientToIncrease, wantStock: 8},
		{name: "zero quantity", stock: 10, initial: 2, newQuantity: 0, wantErr: domain.MsgQuantityNotPositive, wantStock: 8},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			user := env.seedUser(t, "frank")
			product := env.seedProduct(t, 3, tc.stock)
			ctx := context.Background()

			order, err := env.engine.CreateOrder(ctx, user.ID, product.ID, tc.initial)
			require.NoError(t, err)

			updated, err := env.engine.UpdateOrderQuantity(ctx, order.ID, tc.newQuantity)
			if tc.wantErr != "" {
				require.True(t, domain.IsInvalidOperation(err))
				require.EqualError(t, err, tc.wantErr)

				current, getErr := env.engine.GetOrderByID(ctx, order.ID)
				require.NoError(t, getErr)
				require.Equal(t, tc.initial, current.Quantity)
			} else {
				require.NoError(t, err)
				require.Equal(t, tc.newQuantity, updated.Quantity)
				require.Equal(t, 3*float64(tc.newQuantity), updated.TotalAmount)
			}
			require.Equal(t, tc.wantStock, env.stock(t, product.ID))
		})
	}
}

func TestEngine_UpdateQuantityRefreshesPrice(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "gina")
	product := env.seedProduct(t, 10, 10)
	ctx := context.Background()

	order, err := env.engine.CreateOrder(ctx, user.ID, product.ID, 2)
	require.NoError(t, err)
	require.Equal(t, 20.0, order.TotalAmount)

	env.setPrice(t, product.ID, 15)

	// Сумма хранится и не пересчитывается при чтении.
	total, err := env.engine.CalculateTotalAmount(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, 20.0, total)

	reread, err := env.engine.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, 15.0, reread.Product.Price)

	updated, err := env.engine.UpdateOrderQuantity(ctx, order.ID, 2)
	require.NoError(t, err)
	require.Equal(t, 30.0, updated.TotalAmount)
	require.Equal(t, 8, env.stock(t, product.ID))
}

func TestEngine_GetOrdersByUserID(t *testing.T) {
	env := newTestEnv(t)
	withOrders := env.seedUser(t, "hank")
	withoutOrders := env.seedUser(t, "ivy")
	product := env.seedProduct(t, 1, 10)
	ctx := context.Background()

	_, err := env.engine.CreateOrder(ctx, withOrders.ID, product.ID, 1)
	require.NoError(t, err)
	_, err = env.engine.CreateOrder(ctx, withOrders.ID, product.ID, 2)
	require.NoError(t, err)

	list, err := env.engine.GetOrdersByUserID(ctx, withOrders.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)

	empty, err := env.engine.GetOrdersByUserID(ctx, withoutOrders.ID)
	require.NoError(t, err)
	require.Empty(t, empty)

	_, err = env.engine.GetOrdersByUserID(ctx, 12345)
	require.True(t, domain.IsNotFound(err))
	require.EqualError(t, err, "User not found with id 12345")
}

func TestEngine_GetOrdersByDateRangeInclusive(t *testing.T) {
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	var tick atomic.Int64
	clock := func() time.Time {
		return base.Add(time.Duration(tick.Add(1)-1) * time.Hour)
	}

	env := newTestEnv(t, orders.WithClock(clock))
	user := env.seedUser(t, "jack")
	product := env.seedProduct(t, 1, 10)
	ctx := context.Background()

	created := make([]domain.Order, 0, 4)
	for i := 0; i < 4; i++ {
		order, err := env.engine.CreateOrder(ctx, user.ID, product.ID, 1)
		require.NoError(t, err)
		created = append(created, order)
	}
	require.True(t, created[1].OrderDate.Equal(base.Add(time.Hour)))

	got, err := env.engine.GetOrdersByDateRange(ctx, created[1].OrderDate, created[2].OrderDate)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, created[1].ID, got[0].ID)
	require.Equal(t, created[2].ID, got[1].ID)

	single, err := env.engine.GetOrdersByDateRange(ctx, created[3].OrderDate, created[3].OrderDate)
	require.NoError(t, err)
	require.Len(t, single, 1)

	none, err := env.engine.GetOrdersByDateRange(ctx, base.Add(-2*time.Hour), base.Add(-time.Hour))
	require.NoError(t, err)
	require.Empty(t, none)

	_, err = env.engine.GetOrdersByDateRange(ctx, created[2].OrderDate, created[1].OrderDate)
	require.True(t, domain.IsInvalidOperation(err))
}

func TestEngine_QueriesNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.engine.GetOrderByID(ctx, 5)
	require.EqualError(t, err, "Order not found with id 5")
	_, err = env.engine.CalculateTotalAmount(ctx, 6)
	require.True(t, domain.IsNotFound(err))
	_, err = env.engine.UpdateOrderQuantity(ctx, 7, 1)
	require.True(t, domain.IsNotFound(err))
}

func TestEngine_EnqueuesOutboxEvents(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "kate")
	product := env.seedProduct(t, 2, 10)
	ctx := context.Background()

	order, err := env.engine.CreateOrder(ctx, user.ID, product.ID, 3)
	require.NoError(t, err)
	_, err = env.engine.UpdateOrderQuantity(ctx, order.ID, 5)
	require.NoError(t, err)
	_, err = env.engine.CancelOrder(ctx, order.ID)
	require.NoError(t, err)

	pending, err := env.store.Outbox().PullPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)

	wantTypes := []string{domain.EventOrderCreated, domain.EventOrderQuantityChanged, domain.EventOrderCanceled}
	wantStock := []int{7, 5, 10}
	for i, msg := range pending {
		require.Equal(t, wantTypes[i], msg.EventType)
		require.Equal(t, domain.AggregateOrder, msg.AggregateType)

		var event domain.OrderEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		require.Equal(t, order.ID, event.OrderID)
		require.Equal(t, wantStock[i], event.ProductStock)
	}
}

func TestEngine_ConcurrentCreateNeverOversells(t *testing.T) {
	env := newTestEnv(t, orders.WithRetryConfig(orders.RetryConfig{
		MaxAttempts:   200,
		InitialDelay:  0,
		MaxDelay:      time.Millisecond,
		BackoffFactor: 2,
	}))
	user := env.seedUser(t, "lena")
	const stock = 25
	product := env.seedProduct(t, 1, stock)

	const workers = 60
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
		rejected  atomic.Int64
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := env.engine.CreateOrder(context.Background(), user.ID, product.ID, 1)
			switch {
			case err == nil:
				succeeded.Add(1)
			case domain.IsInvalidOperation(err):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, int64(stock), succeeded.Load())
	require.Equal(t, int64(workers-stock), rejected.Load())
	require.Equal(t, 0, env.stock(t, product.ID))

	all, err := env.engine.GetAllOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, all, stock)
}

func TestEngine_ConcurrentCancelRestoresOnce(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "mike")
	product := env.seedProduct(t, 1, 10)
	ctx := context.Background()

	order, err := env.engine.CreateOrder(ctx, user.ID, product.ID, 4)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.engine.CancelOrder(ctx, order.ID); err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(1), succeeded.Load())
	require.Equal(t, 10, env.stock(t, product.ID))
}

// conflictingStore возвращает ErrVersionConflict первые failures раз, затем делегирует.
type conflictingStore struct {
	domain.Store
	failures int
	calls    int
}

func (s *conflictingStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	s.calls++
	if s.calls <= s.failures {
		return domain.ErrVersionConflict
	}
	return s.Store.WithinTx(ctx, fn)
}

func TestEngine_RetriesVersionConflicts(t *testing.T) {
	store := &conflictingStore{Store: memory.NewStore(), failures: 2}
	engine := orders.NewEngine(store,
		orders.WithLogger(loggerForTests()),
		orders.WithRetryConfig(orders.RetryConfig{MaxAttempts: 3, InitialDelay: time.Microsecond, MaxDelay: time.Millisecond, BackoffFactor: 2}),
	)

	_, err := engine.GetAllOrders(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, store.calls)
}

func TestEngine_ExhaustedRetriesSurfaceConcurrentModification(t *testing.T) {
	store := &conflictingStore{Store: memory.NewStore(), failures: 100}
	engine := orders.NewEngine(store,
		orders.WithLogger(loggerForTests()),
		orders.WithRetryConfig(orders.RetryConfig{MaxAttempts: 4, InitialDelay: 0, MaxDelay: time.Millisecond, BackoffFactor: 2}),
	)

	_, err := engine.CancelOrder(context.Background(), 1)
	require.ErrorIs(t, err, domain.ErrConcurrentModification)
	require.True(t, domain.IsVersionConflict(err))
	require.False(t, domain.IsNotFound(err))
	require.Equal(t, 4, store.calls)
}

func TestEngine_BusinessErrorsAreNotRetried(t *testing.T) {
	var calls int
	store := &countingStore{Store: memory.NewStore(), calls: &calls}
	engine := orders.NewEngine(store, orders.WithLogger(loggerForTests()))

	_, err := engine.GetOrderByID(context.Background(), 1)
	require.True(t, domain.IsNotFound(err))
	require.Equal(t, 1, calls)
}

func TestEngine_CanceledContextStopsRetry(t *testing.T) {
	store := &conflictingStore{Store: memory.NewStore(), failures: 100}
	engine := orders.NewEngine(store,
		orders.WithLogger(loggerForTests()),
		orders.WithRetryConfig(orders.RetryConfig{MaxAttempts: 50, InitialDelay: time.Second, MaxDelay: time.Second, BackoffFactor: 1}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := engine.GetAllOrders(ctx)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	require.Equal(t, 1, store.calls)
}

type countingStore struct {
	domain.Store
	calls *int
}

func (s *countingStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	*s.calls++
	return s.Store.WithinTx(ctx, fn)
}
