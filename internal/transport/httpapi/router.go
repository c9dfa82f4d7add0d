package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/stockorders/internal/domain"
)

const defaultRequestTimeout = 15 * time.Second

// OrderEngine описывает операции жизненного цикла заказов.
type OrderEngine interface {
	CreateOrder(ctx context.Context, userID, productID int64, quantity int) (domain.Order, error)
	CancelOrder(ctx context.Context, orderID int64) (domain.Order, error)
	UpdateOrderQuantity(ctx context.Context, orderID int64, newQuantity int) (domain.Order, error)
	GetOrderByID(ctx context.Context, orderID int64) (domain.Order, error)
	GetAllOrders(ctx context.Context) ([]domain.Order, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]domain.Order, error)
	GetOrdersByDateRange(ctx context.Context, start, end time.Time) ([]domain.Order, error)
	CalculateTotalAmount(ctx context.Context, orderID int64) (float64, error)
}

// ProductCatalog описывает операции каталога.
type ProductCatalog interface {
	CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error)
	GetProduct(ctx context.Context, id int64) (domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// UserDirectory описывает операции с пользователями.
type UserDirectory interface {
	CreateUser(ctx context.Context, user domain.User) (domain.User, error)
	GetUser(ctx context.Context, id int64) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// Config задаёт зависимости роутера.
type Config struct {
	Orders         OrderEngine
	Products       ProductCatalog
	Users          UserDirectory
	Logger         *log.Entry
	RequestTimeout time.Duration
}

// NewRouter собирает chi-роутер публичного API.
// Параметры startDate и endDate в /orders/date задаются как локальное время ISO-8601
// (2006-01-02T15:04:05 или 2006-01-02T15:04) и трактуются как UTC.
func NewRouter(cfg Config) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	h := &handler{
		orders:   cfg.Orders,
		products: cfg.Products,
		users:    cfg.Users,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, accessLog(logger), middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.listOrders)
		r.Post("/", h.createOrder)
		r.Get("/date", h.listOrdersByDate)
		r.Get("/user/{userId}", h.listOrdersByUser)
		r.Get("/{id}", h.getOrder)
		r.Delete("/{id}/cancel", h.cancelOrder)
		r.Put("/{id}/quantity", h.updateOrderQuantity)
		r.Get("/{id}/totalAmount", h.totalAmount)
	})
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.listProducts)
		r.Post("/", h.createProduct)
		r.Get("/{id}", h.getProduct)
	})
	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.listUsers)
		r.Post("/", h.createUser)
		r.Get("/{id}", h.getUser)
	})

	return r
}

// accessLog пишет одну строку logrus на запрос.
func accessLog(logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			logger.WithFields(log.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start),
			}).Debug("http request")
		})
	}
}
