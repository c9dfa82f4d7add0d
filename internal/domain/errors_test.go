package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantMsg     string
		notFound    bool
		invalidOp   bool
		versionConf bool
	}{
		{
			name:     "order not found",
			err:      OrderNotFound(42),
			wantMsg:  "Order not found with id 42",
			notFound: true,
		},
		{
			name:     "user not found",
			err:      UserNotFound(7),
			wantMsg:  "User not found with id 7",
			notFound: true,
		},
		{
			name:     "product not found",
			err:      ProductNotFound(3),
			wantMsg:  "Product not found with id 3",
			notFound: true,
		},
		{
			name:      "insufficient stock",
			err:       InsufficientStock(5),
			wantMsg:   "Insufficient stock for product id 5",
			invalidOp: true,
		},
		{
			name:      "status barrier",
			err:       InvalidOperation(MsgOnlyPendingCanCancel),
			wantMsg:   "Only pending orders can be canceled.",
			invalidOp: true,
		},
		{
			name:        "wrapped version conflict",
			err:         fmt.Errorf("update product 1: %w", ErrVersionConflict),
			wantMsg:     "update product 1: version conflict",
			versionConf: true,
		},
		{
			name:        "concurrent modification keeps conflict in chain",
			err:         errors.Join(ErrConcurrentModification, ErrVersionConflict),
			wantMsg:     "concurrent modification\nversion conflict",
			versionConf: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if got := IsNotFound(tt.err); got != tt.notFound {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.notFound)
			}
			if got := IsInvalidOperation(tt.err); got != tt.invalidOp {
				t.Errorf("IsInvalidOperation() = %v, want %v", got, tt.invalidOp)
			}
			if got := IsVersionConflict(tt.err); got != tt.versionConf {
				t.Errorf("IsVersionConflict() = %v, want %v", got, tt.versionConf)
			}
		})
	}
}

func TestIsHelpersOnNil(t *testing.T) {
	if IsNotFound(nil) || IsInvalidOperation(nil) || IsVersionConflict(nil) {
		t.Fatal("nil error must not match any kind")
	}
}
