package discount

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the discount strategies a code can carry.
type Type string

const (
	// TypePercentage takes a percentage off the subtotal.
	TypePercentage Type = "PERCENTAGE"
	// TypeFixed takes a fixed monetary amount off the subtotal.
	TypeFixed Type = "FIXED"
	// TypeBuyOneGetOneFree is defined by the catalog but has no pricing rule
	// yet; applying it is rejected.
	TypeBuyOneGetOneFree Type = "BUY_ONE_GET_ONE_FREE"
)

// ParseType converts a stored discount type into a Type.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypePercentage, TypeFixed, TypeBuyOneGetOneFree:
		return t, nil
	default:
		return "", errors.Errorf("unknown discount type %q", s)
	}
}

var (
	// ErrNotFound is returned when no discount record exists for a code.
	ErrNotFound = errors.New("discount code not found")
	// ErrAlreadyUsed is returned when a single-use code was already consumed.
	ErrAlreadyUsed = errors.New("discount code already used")
	// ErrPercentageOutOfRange is returned when a percentage is outside [0, 100].
	ErrPercentageOutOfRange = errors.New("percentage discount must be between 0 and 100")
	// ErrFixedExceedsSubtotal is returned when a fixed discount is not
	// strictly less than the subtotal.
	ErrFixedExceedsSubtotal = errors.New("fixed discount must be less than subtotal")
	// ErrNegativeAmount is returned for fixed discounts below zero.
	ErrNegativeAmount = errors.New("discount amount must not be negative")
)

// UnsupportedTypeError indicates a discount type without a pricing rule.
type UnsupportedTypeError struct {
	Type Type
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported discount type %q", e.Type)
}

// AmbiguousCodeError indicates that more than one discount record shares a
// code. Codes are unique by contract, so this is a data integrity problem.
type AmbiguousCodeError struct {
	Code  string
	Count int
}

func (e *AmbiguousCodeError) Error() string {
	return fmt.Sprintf("discount code %s matches %d records", e.Code, e.Count)
}

// Discount is a redeemable discount definition.
type Discount struct {
	ID     string
	Code   string
	Type   Type
	Amount decimal.Decimal
	Used   bool
	// OrderID references the order the discount was consumed on. Empty while unused.
	OrderID string
}

// Repository provides lookup of discount records by code.
type Repository interface {
	FindByCode(ctx context.Context, code string) ([]Discount, error)
	// Claim marks the discount used by orderID. It fails with ErrAlreadyUsed
	// when another order holds it and ErrNotFound when it does not exist.
	// Claiming again for the same order succeeds.
	Claim(ctx context.Context, id, orderID string) error
	// Release clears a claim held by orderID. Claims held by other orders
	// are left alone.
	Release(ctx context.Context, id, orderID string) error
}
