package httpapi

import (
	"time"

	"github.com/vladislavdragonenkov/stockorders/internal/domain"
)

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type productResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
}

type orderResponse struct {
	ID          int64           `json:"id"`
	OrderDate   string          `json:"orderDate"`
	User        userResponse    `json:"user"`
	Product     productResponse `json:"product"`
	Quantity    int             `json:"quantity"`
	Status      string          `json:"status"`
	TotalAmount float64         `json:"totalAmount"`
}

type createProductRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
}

type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// orderDateLayout соответствует локальному ISO-8601 без зоны.
const orderDateLayout = "2006-01-02T15:04:05.999999"

func toUserResponse(u domain.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Email: u.Email}
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
	}
}

func toOrderResponse(o domain.Order) orderResponse {
	return orderResponse{
		ID:          o.ID,
		OrderDate:   o.OrderDate.UTC().Format(orderDateLayout),
		User:        toUserResponse(o.User),
		Product:     toProductResponse(o.Product),
		Quantity:    o.Quantity,
		Status:      string(o.Status),
		TotalAmount: o.TotalAmount,
	}
}

func toOrderResponses(orders []domain.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return out
}

func toProductResponses(products []domain.Product) []productResponse {
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	return out
}

func toUserResponses(users []domain.User) []userResponse {
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return out
}

// parseDateTime принимает локальную дату-время ISO-8601 с секундами и без них.
// Значение без смещения трактуется как UTC, в той же зоне хранится дата заказа.
func parseDateTime(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range []string{orderDateLayout, "2006-01-02T15:04"} {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
