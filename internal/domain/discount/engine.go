package discount

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Resolver resolves a discount code to a usable discount definition and
// reserves it for the order being paid.
type Resolver interface {
	Resolve(ctx context.Context, code string) (*Discount, error)
	Claim(ctx context.Context, d Discount, orderID string) error
	Release(ctx context.Context, d Discount, orderID string) error
}

var _ Resolver = (*Engine)(nil)

// Engine implements Resolver on top of a Repository.
type Engine struct {
	repo Repository
}

// NewEngine creates an Engine backed by the given Repository.
func NewEngine(repo Repository) *Engine {
	return &Engine{repo: repo}
}

// Resolve looks up the discount for code. It returns ErrNotFound when no
// record exists, *AmbiguousCodeError when several records share the code and
// ErrAlreadyUsed when the code has been consumed by another order.
//
// Resolve does not mark the discount used; Claim does, right before the
// order it was applied to is charged.
func (e *Engine) Resolve(ctx context.Context, code string) (*Discount, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrNotFound
	}

	found, err := e.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, errors.Wrap(err, "lookup discount")
	}

	switch len(found) {
	case 0:
		return nil, ErrNotFound
	case 1:
	default:
		zctx.From(ctx).Error("Discount code is not unique",
			zap.String("code", code),
			zap.Int("count", len(found)),
		)
		return nil, &AmbiguousCodeError{Code: code, Count: len(found)}
	}

	d := found[0]
	if d.Used {
		return nil, ErrAlreadyUsed
	}
	return &d, nil
}

// Claim reserves d for orderID. A code held by another order yields
// ErrAlreadyUsed.
func (e *Engine) Claim(ctx context.Context, d Discount, orderID string) error {
	if err := e.repo.Claim(ctx, d.ID, orderID); err != nil {
		if errors.Is(err, ErrAlreadyUsed) || errors.Is(err, ErrNotFound) {
			return err
		}
		return errors.Wrapf(err, "claim discount %s", d.Code)
	}
	zctx.From(ctx).Debug("Discount claimed",
		zap.String("code", d.Code),
		zap.String("order_id", orderID),
	)
	return nil
}

// Release gives back a claim made by orderID.
func (e *Engine) Release(ctx context.Context, d Discount, orderID string) error {
	if err := e.repo.Release(ctx, d.ID, orderID); err != nil {
		return errors.Wrapf(err, "release discount %s", d.Code)
	}
	return nil
}
