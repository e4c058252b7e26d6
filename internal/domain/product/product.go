package product

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase. Its price lives
// in the pricing catalog, not on the product itself.
type Product struct {
	ID          string
	Name        string
	Description string
}

// Repository defines read operations for the product catalog.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	// SearchByName returns products whose name contains s, ignoring case.
	SearchByName(ctx context.Context, s string) ([]Product, error)
}
