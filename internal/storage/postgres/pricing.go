package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/store-checkout/internal/domain/pricing"
)

const (
	pricedProductColumns = `pp.id, pp.product_id, p.id, p.value, pp.active, pp.updated_at`

	findActivePricesSQL = `SELECT ` + pricedProductColumns + `
		FROM priced_products pp JOIN prices p ON p.id = pp.price_id
		WHERE pp.product_id = $1 AND pp.active
		ORDER BY pp.created_at, pp.id`

	priceHistorySQL = `SELECT ` + pricedProductColumns + `
		FROM priced_products pp JOIN prices p ON p.id = pp.price_id
		WHERE pp.product_id = $1
		ORDER BY pp.created_at DESC, pp.id DESC`

	deactivatePricesSQL = `UPDATE priced_products SET active = FALSE, updated_at = $2
		WHERE product_id = $1 AND active`

	insertPriceSQL = `INSERT INTO prices (id, value) VALUES ($1, $2)`

	insertPricedProductSQL = `INSERT INTO priced_products (id, product_id, price_id, active, created_at, updated_at)
		VALUES ($1, $2, $3, TRUE, $4, $4)`

	lockProductSQL = `SELECT id FROM products WHERE id = $1 FOR UPDATE`
)

var _ pricing.Repository = (*PriceRepository)(nil)

// PriceRepository implements pricing.Repository backed by PostgreSQL.
type PriceRepository struct {
	pool *pgxpool.Pool
}

// NewPriceRepository returns a PriceRepository that uses the given pool.
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool}
}

// FindActive returns the active priced records of a product, oldest first.
func (r *PriceRepository) FindActive(ctx context.Context, productID string) ([]pricing.PricedProduct, error) {
	rows, err := r.pool.Query(ctx, findActivePricesSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("finding active prices for %q: %w", productID, err)
	}
	return pgx.CollectRows(rows, scanPricedProduct)
}

// History returns every priced record of a product, newest first.
func (r *PriceRepository) History(ctx context.Context, productID string) ([]pricing.PricedProduct, error) {
	rows, err := r.pool.Query(ctx, priceHistorySQL, productID)
	if err != nil {
		return nil, fmt.Errorf("listing price history for %q: %w", productID, err)
	}
	return pgx.CollectRows(rows, scanPricedProduct)
}

// ReplaceActive deactivates the current price of a product and stores a new
// active one in a single transaction. The product row is locked so
// concurrent changes of the same product serialize.
func (r *PriceRepository) ReplaceActive(ctx context.Context, productID string, value decimal.Decimal, now time.Time) (*pricing.PricedProduct, error) {
	pp := &pricing.PricedProduct{
		ID:        uuid.NewString(),
		ProductID: productID,
		Price:     pricing.Price{ID: uuid.NewString(), Value: value},
		Active:    true,
		UpdatedAt: now,
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, lockProductSQL, productID); err != nil {
			return fmt.Errorf("locking product: %w", err)
		}
		if _, err := tx.Exec(ctx, deactivatePricesSQL, productID, now); err != nil {
			return fmt.Errorf("deactivating prices: %w", err)
		}
		if _, err := tx.Exec(ctx, insertPriceSQL, pp.Price.ID, pp.Price.Value); err != nil {
			return fmt.Errorf("inserting price: %w", err)
		}
		if _, err := tx.Exec(ctx, insertPricedProductSQL, pp.ID, productID, pp.Price.ID, now); err != nil {
			return fmt.Errorf("inserting priced product: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("replacing active price for %q: %w", productID, err)
	}
	return pp, nil
}

func scanPricedProduct(row pgx.CollectableRow) (pricing.PricedProduct, error) {
	var pp pricing.PricedProduct
	err := row.Scan(
		&pp.ID, &pp.ProductID, &pp.Price.ID, &pp.Price.Value, &pp.Active, &pp.UpdatedAt,
	)
	return pp, err
}
