package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/store-checkout/internal/domain/product"
)

const (
	getProductByIDSQL = `SELECT id, name, description FROM products WHERE id = $1`

	searchProductsSQL = `SELECT id, name, description FROM products
		WHERE name ILIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY name, id`

	upsertProductSQL = `INSERT INTO products (id, name, description) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[product.Product])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// SearchByName returns products whose name contains s, ignoring case.
// LIKE wildcards in s match literally.
func (r *ProductRepository) SearchByName(ctx context.Context, s string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, searchProductsSQL, escapeLike(s))
	if err != nil {
		return nil, fmt.Errorf("searching products by %q: %w", s, err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[product.Product])
}

// Upsert inserts p or updates its name and description.
func (r *ProductRepository) Upsert(ctx context.Context, p product.Product) error {
	if _, err := r.pool.Exec(ctx, upsertProductSQL, p.ID, p.Name, p.Description); err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
