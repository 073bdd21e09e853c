package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("invalid order request")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrTransient         = errors.New("transient storage failure")
	ErrOrderNotFound     = errors.New("order not found")
	ErrIllegalTransition = errors.New("illegal order status transition")
)

// ValidationError is a caller error; retrying the same request will fail again.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

func (e *ProductNotFoundError) Is(target error) bool { return target == ErrProductNotFound }

type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// TransientError wraps a storage or context failure that aborted the
// transaction. The abort leaves nothing behind, so the caller may retry.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Is(target error) bool { return target == ErrTransient }

func (e *TransientError) Unwrap() error { return e.Err }
