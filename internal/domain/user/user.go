package user

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when no user matches the requested login.
var ErrNotFound = errors.New("user not found")

// User is a registered customer or administrator.
type User struct {
	ID    string
	Login string
}

// Repository provides lookup of stored users.
type Repository interface {
	FindByLogin(ctx context.Context, login string) (*User, error)
}
