package postgres

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/stockorders/internal/domain"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// userRecord — строка таблицы users.
type userRecord struct {
	ID       int64
	Username string
	Email    string
}

func (r userRecord) toDomain() domain.User {
	return domain.User{ID: r.ID, Username: r.Username, Email: r.Email}
}

// productRecord — строка таблицы products.
type productRecord struct {
	ID          int64
	Name        string
	Description sql.NullString
	Price       float64
	Stock       int
	Version     int64
}

func (r productRecord) toDomain() domain.Product {
	return domain.Product{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description.String,
		Price:       r.Price,
		Stock:       r.Stock,
		Version:     r.Version,
	}
}

// orderRecord — строка orders вместе с колонками связанных users и products.
type orderRecord struct {
	ID          int64
	OrderDate   time.Time
	Quantity    int
	Status      string
	TotalAmount float64
	Version     int64
	User        userRecord
	Product     productRecord
}

func (r orderRecord) toDomain() domain.Order {
	return domain.Order{
		ID:          r.ID,
		OrderDate:   r.OrderDate.UTC(),
		User:        r.User.toDomain(),
		Product:     r.Product.toDomain(),
		Quantity:    r.Quantity,
		Status:      domain.OrderStatus(r.Status),
		TotalAmount: r.TotalAmount,
		Version:     r.Version,
	}
}

// scanTargets возвращает поля записи в порядке колонок orderSelect.
func (r *orderRecord) scanTargets() []any {
	return []any{
		&r.ID, &r.OrderDate, &r.Quantity, &r.Status, &r.TotalAmount, &r.Version,
		&r.User.ID, &r.User.Username, &r.User.Email,
		&r.Product.ID, &r.Product.Name, &r.Product.Description,
		&r.Product.Price, &r.Product.Stock, &r.Product.Version,
	}
}

func pgErrorCode(err error) (string, string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

func isUniqueViolation(err error) bool {
	code, _ := pgErrorCode(err)
	return code == pgUniqueViolation
}
