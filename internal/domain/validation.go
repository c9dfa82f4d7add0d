package domain

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@(.+)$`)

// IsValidEmail проверяет адрес по упрощённому шаблону local@domain.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidateNewProduct проверяет поля товара перед созданием.
func ValidateNewProduct(p Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return InvalidOperation(MsgProductNameRequired)
	}
	if p.Price < 0 {
		return InvalidOperation(MsgProductPriceInvalid)
	}
	if p.Stock < 0 {
		return InvalidOperation(MsgProductStockInvalid)
	}
	return nil
}

// ValidateNewUser проверяет поля пользователя перед созданием.
func ValidateNewUser(u User) error {
	if strings.TrimSpace(u.Username) == "" {
		return InvalidOperation(MsgUsernameRequired)
	}
	if strings.TrimSpace(u.Email) == "" {
		return InvalidOperation(MsgEmailRequired)
	}
	if !IsValidEmail(u.Email) {
		return InvalidOperation(MsgEmailInvalid)
	}
	return nil
}

// ValidateQuantity требует строго положительное количество.
func ValidateQuantity(qty int) error {
	if qty <= 0 {
		return InvalidOperation(MsgQuantityNotPositive)
	}
	return nil
}
