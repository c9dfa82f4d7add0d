package orders

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/stockorders/internal/domain"
	"github.com/vladislavdragonenkov/stockorders/internal/metrics"
)

const tracerName = "github.com/vladislavdragonenkov/stockorders/internal/service/orders"

// Имена операций для логов, метрик и спанов.
const (
	OpCreate         = "create"
	OpCancel         = "cancel"
	OpUpdateQuantity = "update_quantity"
	OpGet            = "get"
	OpList           = "list"
	OpListByUser     = "list_by_user"
	OpListByDate     = "list_by_date"
	OpTotalAmount    = "total_amount"
)

// Options задаёт зависимости движка.
type Options struct {
	Logger  *log.Entry
	Metrics *metrics.OrderMetrics
	Tracer  trace.Tracer
	Retry   RetryConfig
	Clock   func() time.Time
}

// Option настраивает Engine.
type Option func(*Options)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) { opts.Logger = logger }
}

// WithMetrics задаёт prometheus-метрики движка.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(opts *Options) { opts.Metrics = m }
}

// WithTracer задаёт tracer; по умолчанию берётся из глобального провайдера otel.
func WithTracer(tracer trace.Tracer) Option {
	return func(opts *Options) { opts.Tracer = tracer }
}

// WithRetryConfig задаёт политику повторов при конфликте версий.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(opts *Options) { opts.Retry = cfg }
}

// WithClock подменяет источник времени для даты заказа.
func WithClock(clock func() time.Time) Option {
	return func(opts *Options) { opts.Clock = clock }
}

// Engine — движок жизненного цикла заказов: держит согласованными заказы и сток товаров.
// Каждая публичная операция выполняется в одной единице работы хранилища.
type Engine struct {
	store   domain.Store
	logger  *log.Entry
	metrics *metrics.OrderMetrics
	tracer  trace.Tracer
	retry   RetryConfig
	now     func() time.Time
}

// NewEngine создаёт движок поверх хранилища.
func NewEngine(store domain.Store, options ...Option) *Engine {
	opts := Options{Retry: DefaultRetryConfig()}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "order-engine")
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	clock := opts.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	return &Engine{
		store:   store,
		logger:  logger,
		metrics: opts.Metrics,
		tracer:  tracer,
		retry:   opts.Retry.normalized(),
		now:     clock,
	}
}

// CreateOrder резервирует quantity единиц товара и создаёт заказ в статусе PENDING.
func (e *Engine) CreateOrder(ctx context.Context, userID, productID int64, quantity int) (domain.Order, error) {
	var created domain.Order
	err := e.execute(ctx, OpCreate, []attribute.KeyValue{
		attribute.Int64("user.id", userID),
		attribute.Int64("product.id", productID),
		attribute.Int("order.quantity", quantity),
	}, func(ctx context.Context, tx domain.Tx) error {
		user, err := tx.Users().Get(ctx, userID)
		if err != nil {
			return err
		}
		product, err := tx.Products().Get(ctx, productID)
		if err != nil {
			return err
		}
		if err := domain.ValidateQuantity(quantity); err != nil {
			return err
		}
		if !product.HasStock(quantity) {
			return domain.InsufficientStock(product.ID)
		}

		product.Stock -= quantity
		if product, err = tx.Products().Update(ctx, product); err != nil {
			return err
		}

		now := e.orderDate()
		order, err := tx.Orders().Create(ctx, domain.Order{
			OrderDate:   now,
			User:        user,
			Product:     product,
			Quantity:    quantity,
			Status:      domain.OrderStatusPending,
			TotalAmount: domain.CalculateTotal(product.Price, quantity),
		})
		if err != nil {
			return err
		}
		if err := e.enqueue(ctx, tx, domain.EventOrderCreated, order, now); err != nil {
			return err
		}

		created = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	e.metrics.RecordStockDelta(quantity)
	return created, nil
}

// CancelOrder отменяет PENDING-заказ и возвращает его количество на склад.
func (e *Engine) CancelOrder(ctx context.Context, orderID int64) (domain.Order, error) {
	var canceled domain.Order
	err := e.execute(ctx, OpCancel, []attribute.KeyValue{
		attribute.Int64("order.id", orderID),
	}, func(ctx context.Context, tx domain.Tx) error {
		order, err := tx.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}
		if err := order.EnsureCancelable(); err != nil {
			return err
		}

		product := order.Product
		product.Stock += order.Quantity
		if _, err := tx.Products().Update(ctx, product); err != nil {
			return err
		}

		order.Status = domain.OrderStatusCanceled
		if order, err = tx.Orders().Update(ctx, order); err != nil {
			return err
		}
		if err := e.enqueue(ctx, tx, domain.EventOrderCanceled, order, e.now()); err != nil {
			return err
		}

		canceled = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	e.metrics.RecordStockDelta(-canceled.Quantity)
	return canceled, nil
}

// UpdateOrderQuantity меняет количество PENDING-заказа и ребалансирует сток на разницу.
// Сумма пересчитывается по текущей цене товара даже при неизменном количестве.
func (e *Engine) UpdateOrderQuantity(ctx context.Context, orderID int64, newQuantity int) (domain.Order, error) {
	var (
		updated    domain.Order
		difference int
	)
	err := e.execute(ctx, OpUpdateQuantity, []attribute.KeyValue{
		attribute.Int64("order.id", orderID),
		attribute.Int("order.quantity", newQuantity),
	}, func(ctx context.Context, tx domain.Tx) error {
		order, err := tx.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}
		if err := order.EnsureUpdatable(); err != nil {
			return err
		}
		if err := domain.ValidateQuantity(newQuantity); err != nil {
			return err
		}

		product := order.Product
		difference = newQuantity - order.Quantity
		if difference > 0 && !product.HasStock(difference) {
			return domain.InvalidOperation(domain.MsgInsufficientToIncrease)
		}
		if difference != 0 {
			product.Stock -= difference
			if product, err = tx.Products().Update(ctx, product); err != nil {
				return err
			}
		}

		order.Quantity = newQuantity
		order.TotalAmount = domain.CalculateTotal(product.Price, newQuantity)
		if order, err = tx.Orders().Update(ctx, order); err != nil {
			return err
		}
		if err := e.enqueue(ctx, tx, domain.EventOrderQuantityChanged, order, e.now()); err != nil {
			return err
		}

		updated = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	e.metrics.RecordStockDelta(difference)
	return updated, nil
}

// GetOrderByID возвращает заказ с актуальными пользователем и товаром.
func (e *Engine) GetOrderByID(ctx context.Context, orderID int64) (domain.Order, error) {
	var order domain.Order
	err := e.execute(ctx, OpGet, []attribute.KeyValue{
		attribute.Int64("order.id", orderID),
	}, func(ctx context.Context, tx domain.Tx) error {
		var err error
		order, err = tx.Orders().Get(ctx, orderID)
		return err
	})
	return order, err
}

// GetAllOrders возвращает все заказы по дате и ID.
func (e *Engine) GetAllOrders(ctx context.Context) ([]domain.Order, error) {
	var result []domain.Order
	err := e.execute(ctx, OpList, nil, func(ctx context.Context, tx domain.Tx) error {
		var err error
		result, err = tx.Orders().List(ctx)
		return err
	})
	return result, err
}

// GetOrdersByUserID требует существования пользователя даже при пустом списке заказов.
func (e *Engine) GetOrdersByUserID(ctx context.Context, userID int64) ([]domain.Order, error) {
	var result []domain.Order
	err := e.execute(ctx, OpListByUser, []attribute.KeyValue{
		attribute.Int64("user.id", userID),
	}, func(ctx context.Context, tx domain.Tx) error {
		if _, err := tx.Users().Get(ctx, userID); err != nil {
			return err
		}
		var err error
		result, err = tx.Orders().ListByUser(ctx, userID)
		return err
	})
	return result, err
}

// GetOrdersByDateRange возвращает заказы с датой в [start, end] включительно.
func (e *Engine) GetOrdersByDateRange(ctx context.Context, start, end time.Time) ([]domain.Order, error) {
	var result []domain.Order
	err := e.execute(ctx, OpListByDate, []attribute.KeyValue{
		attribute.String("range.start", start.Format(time.RFC3339)),
		attribute.String("range.end", end.Format(time.RFC3339)),
	}, func(ctx context.Context, tx domain.Tx) error {
		if start.After(end) {
			return domain.InvalidOperation(domain.MsgInvalidDateRange)
		}
		var err error
		result, err = tx.Orders().ListByDateRange(ctx, start, end)
		return err
	})
	return result, err
}

// CalculateTotalAmount возвращает сохранённую сумму заказа без пересчёта.
func (e *Engine) CalculateTotalAmount(ctx context.Context, orderID int64) (float64, error) {
	order, err := e.GetOrderByID(ctx, orderID)
	if err != nil {
		return 0, err
	}
	return order.TotalAmount, nil
}

// execute оборачивает единицу работы в спан, повторы, метрики и логирование результата.
func (e *Engine) execute(ctx context.Context, operation string, attrs []attribute.KeyValue, fn func(ctx context.Context, tx domain.Tx) error) error {
	ctx, span := e.tracer.Start(ctx, "orders."+operation, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	err := e.withRetry(ctx, operation, func() error {
		return e.store.WithinTx(ctx, fn)
	})
	result := resultOf(err)
	e.metrics.ObserveOperation(operation, result, time.Since(start))

	if err == nil {
		span.SetStatus(codes.Ok, "")
		return nil
	}

	span.RecordError(err)
	span.SetAttributes(attribute.String("result", result))
	entry := e.logger.WithError(err).WithField("operation", operation)
	switch result {
	case metrics.ResultNotFound, metrics.ResultInvalidOperation:
		entry.Info("order operation rejected")
	case metrics.ResultConcurrentConflict:
		span.SetStatus(codes.Error, err.Error())
		entry.Warn("order operation exhausted retries")
	default:
		span.SetStatus(codes.Error, err.Error())
		entry.Error("order operation failed")
	}
	return err
}

func (e *Engine) enqueue(ctx context.Context, tx domain.Tx, eventType string, order domain.Order, at time.Time) error {
	msg, err := domain.NewOrderOutboxMessage(eventType, order, at)
	if err != nil {
		return err
	}
	_, err = tx.Outbox().Enqueue(ctx, msg)
	return err
}

// orderDate обрезает время до микросекунд, чтобы совпадать с точностью TIMESTAMPTZ.
func (e *Engine) orderDate() time.Time {
	return e.now().UTC().Truncate(time.Microsecond)
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case domain.IsNotFound(err):
		return metrics.ResultNotFound
	case domain.IsInvalidOperation(err):
		return metrics.ResultInvalidOperation
	case errors.Is(err, domain.ErrConcurrentModification):
		return metrics.ResultConcurrentConflict
	default:
		return metrics.ResultError
	}
}
