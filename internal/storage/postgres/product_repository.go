package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/stockorders/internal/domain"
)

const productSelect = `
	SELECT id, name, description, price, stock, version
	FROM products`

type productRepository struct {
	q querier
}

func (r *productRepository) Get(ctx context.Context, id int64) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var rec productRecord
	err := r.q.QueryRowContext(ctx, productSelect+` WHERE id = $1`, id).Scan(
		&rec.ID, &rec.Name, &rec.Description, &rec.Price, &rec.Stock, &rec.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ProductNotFound(id)
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	return rec.toDomain(), nil
}

func (r *productRepository) List(ctx context.Context) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.q.QueryContext(ctx, productSelect+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Product, 0)
	for rows.Next() {
		var rec productRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Description, &rec.Price, &rec.Stock, &rec.Version); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		result = append(result, rec.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return result, nil
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	product.Version = 0
	if err := r.q.QueryRowContext(ctx, `
		INSERT INTO products (name, description, price, stock, version)
		VALUES ($1, $2, $3, $4, 0)
		RETURNING id
	`, product.Name, product.Description, product.Price, product.Stock).Scan(&product.ID); err != nil {
		return domain.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return product, nil
}

// Update выполняет compare-and-write по колонке version.
func (r *productRepository) Update(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var newVersion int64
	err := r.q.QueryRowContext(ctx, `
		UPDATE products
		SET name = $3,
		    description = $4,
		    price = $5,
		    stock = $6,
		    version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING version
	`, product.ID, product.Version, product.Name, product.Description, product.Price, product.Stock).Scan(&newVersion)
	if err == nil {
		product.Version = newVersion
		return product, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("update product: %w", err)
	}

	exists, existsErr := rowExists(ctx, r.q, `SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, product.ID)
	if existsErr != nil {
		return domain.Product{}, existsErr
	}
	if !exists {
		return domain.Product{}, domain.ProductNotFound(product.ID)
	}
	return domain.Product{}, domain.ErrVersionConflict
}

func rowExists(ctx context.Context, q querier, query string, id int64) (bool, error) {
	var exists bool
	if err := q.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check row exists: %w", err)
	}
	return exists, nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
