package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/store-checkout/internal/domain/discount"
	"github.com/xenking/store-checkout/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, created_at, status, owner, subtotal, final_price, discount_id, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	getOrderSQL = `SELECT o.id, o.created_at, o.status, o.owner, o.subtotal, o.final_price, o.version,
			d.id, d.code, d.type, d.amount
		FROM orders o LEFT JOIN discounts d ON d.id = o.discount_id
		WHERE o.id = $1`

	getOrderItemsSQL = `SELECT id, product_id, priced_product_id, unit_price, quantity
		FROM order_items WHERE order_id = $1 ORDER BY position`

	updateOrderSQL = `UPDATE orders
		SET status = $3, subtotal = $4, final_price = $5, discount_id = $6, version = version + 1
		WHERE id = $1 AND version = $2`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`

	insertOrderItemSQL = `INSERT INTO order_items (id, order_id, position, product_id, priced_product_id, unit_price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	consumeDiscountSQL = `UPDATE discounts SET used = TRUE, order_id = $2
		WHERE id = $1 AND (NOT used OR order_id = $2)`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Items
// are append-only rows keyed by id, so saving re-sends every item and the
// database keeps the ones it already has.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order and its items.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, createOrderSQL,
			o.ID, o.Date, string(o.Status), o.Owner, o.Subtotal, o.FinalPrice, discountID(o), o.Version,
		); err != nil {
			return err
		}
		return insertItems(ctx, tx, o)
	})
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// Get loads an order with its items from a single snapshot.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	var o *order.Order
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	}, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, getOrderSQL, id)
		if err != nil {
			return err
		}
		got, err := pgx.CollectExactlyOneRow(rows, scanOrder)
		if err != nil {
			return err
		}

		rows, err = tx.Query(ctx, getOrderItemsSQL, id)
		if err != nil {
			return err
		}
		if got.Items, err = pgx.CollectRows(rows, pgx.RowToStructByPos[order.Item]); err != nil {
			return err
		}

		o = got
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return o, nil
}

// Save writes o back if nobody else saved it since it was loaded. Paying an
// order with a discount consumes the discount in the same transaction,
// unless another order holds it.
func (r *OrderRepository) Save(ctx context.Context, o *order.Order) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, updateOrderSQL,
			o.ID, o.Version, string(o.Status), o.Subtotal, o.FinalPrice, discountID(o),
		)
		if err != nil {
			return fmt.Errorf("updating order: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, orderExistsSQL, o.ID).Scan(&exists); err != nil {
				return fmt.Errorf("checking order: %w", err)
			}
			if !exists {
				return order.ErrNotFound
			}
			return order.ErrConcurrentUpdate
		}

		if err := insertItems(ctx, tx, o); err != nil {
			return err
		}

		if o.Status == order.StatusPaid && o.Discount != nil {
			tag, err := tx.Exec(ctx, consumeDiscountSQL, o.Discount.ID, o.ID)
			if err != nil {
				return fmt.Errorf("consuming discount: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return discount.ErrAlreadyUsed
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, order.ErrNotFound) ||
			errors.Is(err, order.ErrConcurrentUpdate) ||
			errors.Is(err, discount.ErrAlreadyUsed) {
			return err
		}
		return fmt.Errorf("saving order %q: %w", o.ID, err)
	}

	o.Version++
	return nil
}

// Delete removes an order; its items go with it.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteOrderSQL, id)
	if err != nil {
		return fmt.Errorf("deleting order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func insertItems(ctx context.Context, tx pgx.Tx, o *order.Order) error {
	if len(o.Items) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, it := range o.Items {
		batch.Queue(insertOrderItemSQL,
			it.ID, o.ID, i, it.ProductID, it.PricedProductID, it.UnitPrice, it.Quantity,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting order items: %w", err)
	}
	return nil
}

func discountID(o *order.Order) *string {
	if o.Discount == nil {
		return nil
	}
	return &o.Discount.ID
}

func scanOrder(row pgx.CollectableRow) (*order.Order, error) {
	var (
		o       order.Order
		status  string
		dID     *string
		dCode   *string
		dType   *string
		dAmount *decimal.Decimal
	)
	err := row.Scan(
		&o.ID, &o.Date, &status, &o.Owner, &o.Subtotal, &o.FinalPrice, &o.Version,
		&dID, &dCode, &dType, &dAmount,
	)
	if err != nil {
		return nil, err
	}

	o.Status = order.Status(status)
	o.Date = o.Date.UTC()
	if dID != nil {
		t, err := discount.ParseType(*dType)
		if err != nil {
			return nil, err
		}
		o.Discount = &order.AppliedDiscount{
			ID:     *dID,
			Code:   *dCode,
			Type:   t,
			Amount: *dAmount,
		}
	}
	return &o, nil
}
