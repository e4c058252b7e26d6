package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/store-checkout/internal/domain/user"
)

const (
	findUserByLoginSQL = `SELECT id, login FROM users WHERE login = $1`

	upsertUserSQL = `INSERT INTO users (id, login) VALUES ($1, $2)
		ON CONFLICT (login) DO NOTHING`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// FindByLogin returns the user with the given login.
func (r *UserRepository) FindByLogin(ctx context.Context, login string) (*user.User, error) {
	rows, err := r.pool.Query(ctx, findUserByLoginSQL, login)
	if err != nil {
		return nil, fmt.Errorf("finding user %q: %w", login, err)
	}

	u, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[user.User])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("finding user %q: %w", login, err)
	}
	return &u, nil
}

// Upsert stores u unless its login already exists.
func (r *UserRepository) Upsert(ctx context.Context, u user.User) error {
	if _, err := r.pool.Exec(ctx, upsertUserSQL, u.ID, u.Login); err != nil {
		return fmt.Errorf("upserting user %q: %w", u.Login, err)
	}
	return nil
}
