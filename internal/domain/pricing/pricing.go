package pricing

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNoActivePrice is returned when a product exists but has no active
	// priced record.
	ErrNoActivePrice = errors.New("no active price")
	// ErrInvalidPrice is returned when a new price is not strictly positive.
	ErrInvalidPrice = errors.New("price must be greater than 0")
)

// Price is a monetary amount.
type Price struct {
	ID    string
	Value decimal.Decimal
}

// PricedProduct binds a price to a product. Superseded records are
// deactivated rather than deleted, so the records of a product form its
// price history.
type PricedProduct struct {
	ID        string
	ProductID string
	Price     Price
	Active    bool
	UpdatedAt time.Time
}

// Quote is the price to charge for a product right now.
type Quote struct {
	PricedProductID string
	Value           decimal.Decimal
}

// Repository persists priced records.
type Repository interface {
	// FindActive returns the active records of a product, oldest first.
	FindActive(ctx context.Context, productID string) ([]PricedProduct, error)
	// ReplaceActive deactivates every active record of the product and
	// stores a new active record with the given value, atomically.
	ReplaceActive(ctx context.Context, productID string, value decimal.Decimal, now time.Time) (*PricedProduct, error)
	// History returns every record of a product, newest first.
	History(ctx context.Context, productID string) ([]PricedProduct, error)
}
