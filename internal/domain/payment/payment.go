package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrTimeout is returned when the gateway does not answer in time.
var ErrTimeout = errors.New("payment timed out")

// Charge is a request to collect money for an order.
type Charge struct {
	OrderID string
	Amount  decimal.Decimal
}

// Gateway attempts to charge an order. It returns true when the payment
// succeeded and false when it was declined; an error means the outcome could
// not be obtained.
type Gateway interface {
	Charge(ctx context.Context, c Charge) (bool, error)
}

// WithTimeout bounds every charge attempt of g by d. A gateway that ignores
// context cancellation is abandoned once d elapses.
func WithTimeout(g Gateway, d time.Duration) Gateway {
	return &timeoutGateway{next: g, timeout: d}
}

type timeoutGateway struct {
	next    Gateway
	timeout time.Duration
}

type chargeResult struct {
	ok  bool
	err error
}

func (g *timeoutGateway) Charge(ctx context.Context, c Charge) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan chargeResult, 1)
	go func() {
		ok, err := g.next.Charge(ctx, c)
		done <- chargeResult{ok: ok, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && errors.Is(res.err, context.DeadlineExceeded) {
			return false, ErrTimeout
		}
		return res.ok, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return false, ErrTimeout
		}
		return false, ctx.Err()
	}
}
