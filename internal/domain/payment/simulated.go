package payment

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SimulatedConfig controls the behaviour of the Simulated gateway.
type SimulatedConfig struct {
	// SuccessRate is the probability in [0, 1] that a charge succeeds.
	SuccessRate float64
	// MaxAmount declines every charge above it. Zero disables the ceiling.
	MaxAmount decimal.Decimal
	// Latency is waited before answering.
	Latency time.Duration
}

var _ Gateway = (*Simulated)(nil)

// Simulated is a stand-in payment provider used until a real one is wired.
type Simulated struct {
	cfg SimulatedConfig

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSimulated creates a Simulated gateway with a deterministic random source.
func NewSimulated(cfg SimulatedConfig, seed uint64) *Simulated {
	return &Simulated{
		cfg: cfg,
		rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Charge declines amounts above the ceiling and otherwise succeeds with the
// configured probability.
func (s *Simulated) Charge(ctx context.Context, c Charge) (bool, error) {
	if s.cfg.Latency > 0 {
		t := time.NewTimer(s.cfg.Latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-t.C:
		}
	}

	lg := zctx.From(ctx).With(
		zap.String("order_id", c.OrderID),
		zap.Stringer("amount", c.Amount),
	)

	if s.cfg.MaxAmount.IsPositive() && c.Amount.GreaterThan(s.cfg.MaxAmount) {
		lg.Info("Charge declined: amount exceeds limit")
		return false, nil
	}

	s.mu.Lock()
	roll := s.rnd.Float64()
	s.mu.Unlock()

	if roll >= s.cfg.SuccessRate {
		lg.Info("Charge declined: insufficient funds")
		return false, nil
	}

	lg.Debug("Charge succeeded")
	return true, nil
}
