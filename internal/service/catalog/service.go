package catalog

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/stockorders/internal/domain"
)

// Service управляет каталогом товаров. Сток после создания меняет только движок заказов.
type Service struct {
	store  domain.Store
	logger *log.Entry
}

// NewService создаёт сервис каталога.
func NewService(store domain.Store, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "catalog")
	}
	return &Service{store: store, logger: logger}
}

// CreateProduct валидирует и сохраняет новый товар с версией 0.
func (s *Service) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	if err := domain.ValidateNewProduct(product); err != nil {
		return domain.Product{}, err
	}

	var created domain.Product
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		created, err = tx.Products().Create(ctx, product)
		return err
	})
	if err != nil {
		s.logger.WithError(err).Error("failed to create product")
		return domain.Product{}, err
	}

	s.logger.WithFields(log.Fields{
		"product_id": created.ID,
		"stock":      created.Stock,
	}).Info("product created")
	return created, nil
}

// GetProduct возвращает товар или ошибку "Product not found".
func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	var product domain.Product
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		product, err = tx.Products().Get(ctx, id)
		return err
	})
	return product, err
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		products, err = tx.Products().List(ctx)
		return err
	})
	return products, err
}
