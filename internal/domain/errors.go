package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound — пользователь, товар или заказ с указанным идентификатором не существует.
	ErrNotFound = errors.New("not found")
	// ErrInvalidOperation — операция нарушает бизнес-правило (сток, статус) или вход некорректен.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrVersionConflict сигнализирует о конфликте версий при compare-and-write.
	ErrVersionConflict = errors.New("version conflict")
	// ErrConcurrentModification — конфликт версий не разрешился за отведённые попытки.
	ErrConcurrentModification = errors.New("concurrent modification")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// Тексты бизнес-ошибок, которые видит клиент.
const (
	MsgOnlyPendingCanCancel   = "Only pending orders can be canceled."
	MsgOnlyPendingCanUpdate   = "Only pending orders can be updated."
	MsgInsufficientToIncrease = "Insufficient stock to increase quantity."
	MsgQuantityNotPositive    = "Quantity must be greater than zero."
	MsgInvalidDateRange       = "Start date must not be after end date."

	MsgProductNameRequired = "Product name is required."
	MsgProductPriceInvalid = "Product price cannot be negative."
	MsgProductStockInvalid = "Product stock cannot be negative."
	MsgUsernameRequired    = "Username is required."
	MsgEmailRequired       = "Email is required."
	MsgEmailInvalid        = "Invalid email format."
)

// Error — бизнес-ошибка: сообщение для клиента плюс вид (ErrNotFound / ErrInvalidOperation).
type Error struct {
	kind error
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Unwrap позволяет сравнивать ошибку с видом через errors.Is.
func (e *Error) Unwrap() error { return e.kind }

// NotFoundf создаёт ошибку вида ErrNotFound.
func NotFoundf(format string, args ...any) error {
	return &Error{kind: ErrNotFound, msg: fmt.Sprintf(format, args...)}
}

// InvalidOperation создаёт ошибку вида ErrInvalidOperation с готовым сообщением.
func InvalidOperation(msg string) error {
	return &Error{kind: ErrInvalidOperation, msg: msg}
}

// InvalidOperationf — форматирующий вариант InvalidOperation.
func InvalidOperationf(format string, args ...any) error {
	return InvalidOperation(fmt.Sprintf(format, args...))
}

func UserNotFound(id int64) error    { return NotFoundf("User not found with id %d", id) }
func ProductNotFound(id int64) error { return NotFoundf("Product not found with id %d", id) }
func OrderNotFound(id int64) error   { return NotFoundf("Order not found with id %d", id) }

// InsufficientStock — сток товара меньше запрошенного количества при создании заказа.
func InsufficientStock(productID int64) error {
	return InvalidOperationf("Insufficient stock for product id %d", productID)
}

// IsNotFound проверяет, относится ли ошибка к виду ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidOperation проверяет, относится ли ошибка к виду ErrInvalidOperation.
func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
