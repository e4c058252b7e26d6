package pricing

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/store-checkout/internal/domain/product"
)

// Catalog answers what to charge for a product and handles price changes.
type Catalog struct {
	products product.Repository
	prices   Repository
	now      func() time.Time
}

// NewCatalog creates a Catalog over the product and price stores.
func NewCatalog(products product.Repository, prices Repository) *Catalog {
	return &Catalog{
		products: products,
		prices:   prices,
		now:      time.Now,
	}
}

// CurrentPrice returns the active price of a product. It returns
// product.ErrNotFound when the product does not exist and ErrNoActivePrice
// when it has no active priced record.
func (c *Catalog) CurrentPrice(ctx context.Context, productID string) (Quote, error) {
	if _, err := c.products.GetByID(ctx, productID); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return Quote{}, product.ErrNotFound
		}
		return Quote{}, errors.Wrapf(err, "get product %s", productID)
	}

	active, err := c.prices.FindActive(ctx, productID)
	if err != nil {
		return Quote{}, errors.Wrapf(err, "find active price for product %s", productID)
	}
	if len(active) == 0 {
		return Quote{}, ErrNoActivePrice
	}
	if len(active) > 1 {
		// Only ChangePrice writes prices, so this is a data error. The
		// oldest record wins.
		zctx.From(ctx).Warn("Product has several active prices",
			zap.String("product_id", productID),
			zap.Int("count", len(active)),
		)
	}

	pp := active[0]
	return Quote{
		PricedProductID: pp.ID,
		Value:           pp.Price.Value,
	}, nil
}

// ChangePrice makes newPrice the active price of a product. Previously
// active records are deactivated and kept as history.
func (c *Catalog) ChangePrice(ctx context.Context, productID string, newPrice decimal.Decimal) (*PricedProduct, error) {
	if !newPrice.IsPositive() {
		return nil, ErrInvalidPrice
	}

	p, err := c.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %s", productID)
	}

	pp, err := c.prices.ReplaceActive(ctx, p.ID, newPrice.Round(2), c.now().UTC())
	if err != nil {
		return nil, errors.Wrapf(err, "replace active price for product %s", productID)
	}

	zctx.From(ctx).Info("Price changed",
		zap.String("product_id", productID),
		zap.String("priced_product_id", pp.ID),
		zap.Stringer("price", pp.Price.Value),
	)
	return pp, nil
}

// History returns the price history of a product, newest first.
func (c *Catalog) History(ctx context.Context, productID string) ([]PricedProduct, error) {
	if _, err := c.products.GetByID(ctx, productID); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %s", productID)
	}

	history, err := c.prices.History(ctx, productID)
	if err != nil {
		return nil, errors.Wrapf(err, "price history for product %s", productID)
	}
	return history, nil
}
