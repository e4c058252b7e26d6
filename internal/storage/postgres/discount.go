package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/store-checkout/internal/domain/discount"
)

const (
	findDiscountsByCodeSQL = `SELECT id, code, type, amount, used, COALESCE(order_id, '')
		FROM discounts WHERE code = $1`

	claimDiscountSQL = `UPDATE discounts SET used = TRUE, order_id = $2
		WHERE id = $1 AND (NOT used OR order_id = $2)`

	releaseDiscountSQL = `UPDATE discounts SET used = FALSE, order_id = NULL
		WHERE id = $1 AND used AND order_id = $2`

	discountExistsSQL = `SELECT EXISTS (SELECT 1 FROM discounts WHERE id = $1)`

	insertDiscountSQL = `INSERT INTO discounts (id, code, type, amount) VALUES ($1, $2, $3, $4)
		ON CONFLICT (code) DO NOTHING`
)

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

// FindByCode returns every discount record with the given code. Codes are
// matched exactly.
func (r *DiscountRepository) FindByCode(ctx context.Context, code string) ([]discount.Discount, error) {
	rows, err := r.pool.Query(ctx, findDiscountsByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding discount by code %q: %w", code, err)
	}
	return pgx.CollectRows(rows, scanDiscount)
}

// Claim marks the discount used by orderID with a conditional update, so
// concurrent claims on one code have a single winner.
func (r *DiscountRepository) Claim(ctx context.Context, id, orderID string) error {
	tag, err := r.pool.Exec(ctx, claimDiscountSQL, id, orderID)
	if err != nil {
		return fmt.Errorf("claiming discount %q: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, discountExistsSQL, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking discount %q: %w", id, err)
	}
	if !exists {
		return discount.ErrNotFound
	}
	return discount.ErrAlreadyUsed
}

// Release clears a claim held by orderID.
func (r *DiscountRepository) Release(ctx context.Context, id, orderID string) error {
	if _, err := r.pool.Exec(ctx, releaseDiscountSQL, id, orderID); err != nil {
		return fmt.Errorf("releasing discount %q: %w", id, err)
	}
	return nil
}

// InsertNew stores discounts in one batch, skipping codes that already
// exist. It returns the number of inserted records.
func (r *DiscountRepository) InsertNew(ctx context.Context, discounts []discount.Discount) (int64, error) {
	if len(discounts) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, d := range discounts {
		batch.Queue(insertDiscountSQL, d.ID, d.Code, string(d.Type), d.Amount)
	}

	var inserted int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		for _, d := range discounts {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return fmt.Errorf("inserting discount %q: %w", d.Code, err)
			}
			inserted += tag.RowsAffected()
		}
		return br.Close()
	})
	if err != nil {
		return 0, fmt.Errorf("inserting discounts: %w", err)
	}
	return inserted, nil
}

func scanDiscount(row pgx.CollectableRow) (discount.Discount, error) {
	var (
		d   discount.Discount
		typ string
	)
	if err := row.Scan(&d.ID, &d.Code, &typ, &d.Amount, &d.Used, &d.OrderID); err != nil {
		return d, err
	}
	t, err := discount.ParseType(typ)
	if err != nil {
		return d, err
	}
	d.Type = t
	return d, nil
}
