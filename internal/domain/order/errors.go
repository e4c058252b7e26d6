package order

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for checkout operations.
var (
	ErrUnauthorized     = errors.New("user is not authenticated")
	ErrNotFound         = errors.New("order not found")
	ErrInvalidState     = errors.New("invalid order status")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrConcurrentUpdate = errors.New("order was modified concurrently")

	ErrNonPositiveQuantity = errors.New("quantity must be greater than 0")
	ErrNonPositivePrice    = errors.New("unit price must be greater than 0")
)

// StateError indicates an operation attempted on an order that is not NEW.
type StateError struct {
	OrderID string
	Status  Status
	Op      string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s: order %s is %s", e.Op, e.OrderID, e.Status)
}

// Is reports ErrInvalidState.
func (e *StateError) Is(target error) bool {
	return target == ErrInvalidState
}

// ArgumentError wraps a validation failure of caller-supplied input.
type ArgumentError struct {
	Err error
}

func (e *ArgumentError) Error() string {
	return e.Err.Error()
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

// Is reports ErrInvalidArgument.
func (e *ArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// NotFoundError indicates the order does not exist.
type NotFoundError struct {
	OrderID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("order %s not found", e.OrderID)
}

// Is reports ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// UserNotFoundError indicates the caller's login does not resolve to a user.
type UserNotFoundError struct {
	Login string
}

func (e *UserNotFoundError) Error() string {
	return fmt.Sprintf("user %s not found", e.Login)
}

// ProductNotFoundError indicates a product does not exist, or exists without
// an active price when NoActivePrice is set.
type ProductNotFoundError struct {
	ProductID     string
	NoActivePrice bool
	Err           error
}

func (e *ProductNotFoundError) Error() string {
	if e.NoActivePrice {
		return fmt.Sprintf("no active price found for product %s", e.ProductID)
	}
	return fmt.Sprintf("product %s not found", e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error {
	return e.Err
}

// DiscountNotFoundError indicates no discount exists for a code.
type DiscountNotFoundError struct {
	Code string
}

func (e *DiscountNotFoundError) Error() string {
	return fmt.Sprintf("discount code %s not found", e.Code)
}

// PaymentFailedError indicates the payment gateway declined the charge,
// timed out or failed. The order stays NEW, so finalize may be retried.
type PaymentFailedError struct {
	OrderID    string
	FinalPrice decimal.Decimal
	// Err is the gateway failure; nil for a plain decline.
	Err error
}

func (e *PaymentFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment of %s for order %s failed: %v", e.FinalPrice.StringFixed(2), e.OrderID, e.Err)
	}
	return fmt.Sprintf("payment of %s for order %s declined", e.FinalPrice.StringFixed(2), e.OrderID)
}

func (e *PaymentFailedError) Unwrap() error {
	return e.Err
}
