package memory

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/stockorders/internal/domain"
)

// productRepository — представление каталога внутри транзакции.
type productRepository struct {
	tx *tx
}

func (r *productRepository) Get(_ context.Context, id int64) (domain.Product, error) {
	product, ok := r.tx.product(id)
	if !ok {
		return domain.Product{}, domain.ProductNotFound(id)
	}
	return product, nil
}

func (r *productRepository) List(context.Context) ([]domain.Product, error) {
	r.tx.store.mu.RLock()
	result := make([]domain.Product, 0, len(r.tx.store.products)+len(r.tx.products))
	for id, product := range r.tx.store.products {
		if _, staged := r.tx.products[id]; staged {
			continue
		}
		result = append(result, product)
	}
	r.tx.store.mu.RUnlock()

	for _, product := range r.tx.products {
		result = append(result, product)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *productRepository) Create(_ context.Context, product domain.Product) (domain.Product, error) {
	product.ID = r.tx.store.allocateID(&r.tx.store.nextProductID)
	product.Version = 0
	r.tx.products[product.ID] = product
	return product, nil
}

// Update перезаписывает товар, проверяя версию (optimistic locking).
// Базовая версия запоминается для повторной проверки при фиксации.
func (r *productRepository) Update(_ context.Context, product domain.Product) (domain.Product, error) {
	current, ok := r.tx.product(product.ID)
	if !ok {
		return domain.Product{}, domain.ProductNotFound(product.ID)
	}
	if current.Version != product.Version {
		return domain.Product{}, domain.ErrVersionConflict
	}

	if _, tracked := r.tx.productBase[product.ID]; !tracked {
		if _, created := r.tx.products[product.ID]; !created {
			r.tx.productBase[product.ID] = current.Version
		}
	}
	product.Version++
	r.tx.products[product.ID] = product
	return product, nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
