package payment

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gatewayFunc func(ctx context.Context, c Charge) (bool, error)

func (f gatewayFunc) Charge(ctx context.Context, c Charge) (bool, error) {
	return f(ctx, c)
}

func testCharge(amount string) Charge {
	return Charge{OrderID: "o-1", Amount: decimal.RequireFromString(amount)}
}

func TestWithTimeout_PassesThrough(t *testing.T) {
	for _, want := range []bool{true, false} {
		g := WithTimeout(gatewayFunc(func(_ context.Context, _ Charge) (bool, error) {
			return want, nil
		}), time.Second)

		ok, err := g.Charge(context.Background(), testCharge("10"))
		require.NoError(t, err)
		assert.Equal(t, want, ok)
	}
}

func TestWithTimeout_SlowGateway(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	// Ignores the context on purpose.
	g := WithTimeout(gatewayFunc(func(_ context.Context, _ Charge) (bool, error) {
		<-release
		return true, nil
	}), 20*time.Millisecond)

	start := time.Now()
	ok, err := g.Charge(context.Background(), testCharge("10"))
	require.ErrorIs(t, err, ErrTimeout)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWithTimeout_GatewayHonoursDeadline(t *testing.T) {
	g := WithTimeout(gatewayFunc(func(ctx context.Context, _ Charge) (bool, error) {
		<-ctx.Done()
		return false, ctx.Err()
	}), 10*time.Millisecond)

	_, err := g.Charge(context.Background(), testCharge("10"))
	require.ErrorIs(t, err, ErrTimeout)
}

func TestWithTimeout_GatewayError(t *testing.T) {
	g := WithTimeout(gatewayFunc(func(_ context.Context, _ Charge) (bool, error) {
		return false, errors.New("connection refused")
	}), time.Second)

	_, err := g.Charge(context.Background(), testCharge("10"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestSimulated(t *testing.T) {
	t.Run("always succeeds", func(t *testing.T) {
		s := NewSimulated(SimulatedConfig{SuccessRate: 1}, 1)
		for range 20 {
			ok, err := s.Charge(context.Background(), testCharge("10"))
			require.NoError(t, err)
			assert.True(t, ok)
		}
	})

	t.Run("always declines", func(t *testing.T) {
		s := NewSimulated(SimulatedConfig{SuccessRate: 0}, 1)
		ok, err := s.Charge(context.Background(), testCharge("10"))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("amount ceiling", func(t *testing.T) {
		s := NewSimulated(SimulatedConfig{
			SuccessRate: 1,
			MaxAmount:   decimal.NewFromInt(500),
		}, 1)

		ok, err := s.Charge(context.Background(), testCharge("500"))
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.Charge(context.Background(), testCharge("500.01"))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("latency honours context", func(t *testing.T) {
		s := NewSimulated(SimulatedConfig{SuccessRate: 1, Latency: time.Minute}, 1)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := s.Charge(ctx, testCharge("10"))
		require.ErrorIs(t, err, context.Canceled)
	})
}
