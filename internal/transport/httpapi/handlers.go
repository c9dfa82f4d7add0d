package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/stockorders/internal/domain"
)

const msgInternalError = "Internal server error"

type handler struct {
	orders   OrderEngine
	products ProductCatalog
	users    UserDirectory
	logger   *log.Entry
}

func (h *handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.GetAllOrders(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

func (h *handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	order, err := h.orders.GetOrderByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *handler) createOrder(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	userID, err := strconv.ParseInt(query.Get("userId"), 10, 64)
	if err != nil {
		writeText(w, http.StatusBadRequest, "Invalid userId")
		return
	}
	productID, err := strconv.ParseInt(query.Get("productId"), 10, 64)
	if err != nil {
		writeText(w, http.StatusBadRequest, "Invalid productId")
		return
	}
	quantity, err := strconv.Atoi(query.Get("quantity"))
	if err != nil {
		writeText(w, http.StatusBadRequest, "Invalid quantity")
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), userID, productID, quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	order, err := h.orders.CancelOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *handler) updateOrderQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	quantity, err := strconv.Atoi(r.URL.Query().Get("newQuantity"))
	if err != nil {
		writeText(w, http.StatusBadRequest, "Invalid newQuantity")
		return
	}
	order, err := h.orders.UpdateOrderQuantity(r.Context(), id, quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *handler) listOrdersByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	orders, err := h.orders.GetOrdersByUserID(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

func (h *handler) listOrdersByDate(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	start, err := parseDateTime(query.Get("startDate"))
	if err != nil {
		writeText(w, http.StatusBadRequest, "Invalid startDate")
		return
	}
	end, err := parseDateTime(query.Get("endDate"))
	if err != nil {
		writeText(w, http.StatusBadRequest, "Invalid endDate")
		return
	}
	orders, err := h.orders.GetOrdersByDateRange(r.Context(), start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

func (h *handler) totalAmount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	total, err := h.orders.CalculateTotalAmount(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, total)
}

func (h *handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.ListProducts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponses(products))
}

func (h *handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	product, err := h.products.GetProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

func (h *handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeText(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	product, err := h.products.CreateProduct(r.Context(), domain.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponses(users))
}

func (h *handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	user, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeText(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	user, err := h.users.CreateUser(r.Context(), domain.User{Username: req.Username, Email: req.Email})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// writeError переводит ошибку домена в HTTP-статус с текстом ошибки в теле.
// Для 5xx клиент получает общий текст, полная ошибка остаётся в логе.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithFields(log.Fields{
			"path":       r.URL.Path,
			"request_id": middleware.GetReqID(r.Context()),
		}).Error("request failed")
		writeText(w, status, msgInternalError)
		return
	}
	writeText(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsInvalidOperation(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConcurrentModification):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeText(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s", name))
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(msg))
}
