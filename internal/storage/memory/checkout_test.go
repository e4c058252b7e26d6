package memory_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/store-checkout/internal/domain/discount"
	"github.com/xenking/store-checkout/internal/domain/order"
	"github.com/xenking/store-checkout/internal/domain/payment"
	"github.com/xenking/store-checkout/internal/domain/pricing"
	"github.com/xenking/store-checkout/internal/domain/product"
	"github.com/xenking/store-checkout/internal/domain/user"
	"github.com/xenking/store-checkout/internal/storage/memory"
)

type checkout struct {
	store   *memory.Store
	catalog *pricing.Catalog
	svc     *order.Service
	gateway *countingGateway
	widget  product.Product
	gadget  product.Product
}

// countingGateway counts the charges that reach the wrapped gateway.
type countingGateway struct {
	payment.Gateway
	charges atomic.Int64
}

func (g *countingGateway) Charge(ctx context.Context, c payment.Charge) (bool, error) {
	g.charges.Add(1)
	return g.Gateway.Charge(ctx, c)
}

func newCheckout(t *testing.T, successRate float64) *checkout {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore()
	store.AddUser(user.User{Login: "johndoe"})
	c := &checkout{
		store:  store,
		widget: store.AddProduct(product.Product{Name: "Widget"}),
		gadget: store.AddProduct(product.Product{Name: "Gadget"}),
	}
	store.AddDiscount(discount.Discount{Code: "FIVE", Type: discount.TypeFixed, Amount: decimal.NewFromInt(5)})
	store.AddDiscount(discount.Discount{Code: "OVER", Type: discount.TypePercentage, Amount: decimal.NewFromInt(150)})

	c.catalog = pricing.NewCatalog(store, store)
	_, err := c.catalog.ChangePrice(ctx, c.widget.ID, decimal.RequireFromString("10.00"))
	require.NoError(t, err)
	_, err = c.catalog.ChangePrice(ctx, c.gadget.ID, decimal.RequireFromString("100.00"))
	require.NoError(t, err)

	c.gateway = &countingGateway{Gateway: payment.NewSimulated(payment.SimulatedConfig{SuccessRate: successRate}, 7)}
	c.svc, err = order.NewService(store, store, c.catalog, discount.NewEngine(store), c.gateway, store,
		order.WithPaymentTimeout(time.Second),
	)
	require.NoError(t, err)
	return c
}

func TestCheckout_FixedDiscountAndPay(t *testing.T) {
	c := newCheckout(t, 1)
	ctx := context.Background()

	o, err := c.svc.CreateOrder(ctx, "johndoe")
	require.NoError(t, err)

	o, err = c.svc.AddItem(ctx, o.ID, c.widget.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, "20", o.Subtotal.String())

	o, err = c.svc.ApplyDiscount(ctx, o.ID, "FIVE")
	require.NoError(t, err)
	assert.Equal(t, "15", o.FinalPrice.String())

	o, err = c.svc.Finalize(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaid, o.Status)

	_, err = c.svc.AddItem(ctx, o.ID, c.widget.ID, 1)
	require.ErrorIs(t, err, order.ErrInvalidState)

	// The code is single use.
	other, err := c.svc.CreateOrder(ctx, "johndoe")
	require.NoError(t, err)
	_, err = c.svc.AddItem(ctx, other.ID, c.gadget.ID, 1)
	require.NoError(t, err)
	_, err = c.svc.ApplyDiscount(ctx, other.ID, "FIVE")
	require.ErrorIs(t, err, discount.ErrAlreadyUsed)
}

func TestCheckout_RejectedPercentageKeepsPrices(t *testing.T) {
	c := newCheckout(t, 1)
	ctx := context.Background()

	o, err := c.svc.CreateOrder(ctx, "johndoe")
	require.NoError(t, err)
	_, err = c.svc.AddItem(ctx, o.ID, c.gadget.ID, 1)
	require.NoError(t, err)

	_, err = c.svc.ApplyDiscount(ctx, o.ID, "OVER")
	require.ErrorIs(t, err, order.ErrInvalidArgument)

	o, err = c.svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "100", o.Subtotal.String())
	assert.Equal(t, "100", o.FinalPrice.String())
}

func TestCheckout_PriceChangeDoesNotTouchExistingItems(t *testing.T) {
	c := newCheckout(t, 1)
	ctx := context.Background()

	o, err := c.svc.CreateOrder(ctx, "johndoe")
	require.NoError(t, err)
	_, err = c.svc.AddItem(ctx, o.ID, c.widget.ID, 1)
	require.NoError(t, err)

	_, err = c.catalog.ChangePrice(ctx, c.widget.ID, decimal.RequireFromString("11.50"))
	require.NoError(t, err)

	o, err = c.svc.AddItem(ctx, o.ID, c.widget.ID, 1)
	require.NoError(t, err)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "10", o.Items[0].UnitPrice.String())
	assert.Equal(t, "11.5", o.Items[1].UnitPrice.String())
	assert.NotEqual(t, o.Items[0].PricedProductID, o.Items[1].PricedProductID)
	assert.Equal(t, "21.5", o.Subtotal.String())

	history, err := c.catalog.History(ctx, c.widget.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].Active)
	assert.False(t, history[1].Active)
}

func TestCheckout_DeclinedPaymentKeepsOrderNew(t *testing.T) {
	c := newCheckout(t, 0)
	ctx := context.Background()

	o, err := c.svc.CreateOrder(ctx, "johndoe")
	require.NoError(t, err)
	_, err = c.svc.AddItem(ctx, o.ID, c.widget.ID, 3)
	require.NoError(t, err)

	_, err = c.svc.Finalize(ctx, o.ID)
	var pe *order.PaymentFailedError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "30", pe.FinalPrice.String())

	o, err = c.svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusNew, o.Status)

	// Still mutable after the failed attempt.
	_, err = c.svc.AddItem(ctx, o.ID, c.widget.ID, 1)
	require.NoError(t, err)
}

func TestCheckout_ConcurrentFinalizeOnSharedDiscount(t *testing.T) {
	c := newCheckout(t, 1)
	ctx := context.Background()

	ids := make([]string, 4)
	for i := range ids {
		o, err := c.svc.CreateOrder(ctx, "johndoe")
		require.NoError(t, err)
		_, err = c.svc.AddItem(ctx, o.ID, c.widget.ID, 1)
		require.NoError(t, err)
		_, err = c.svc.ApplyDiscount(ctx, o.ID, "FIVE")
		require.NoError(t, err)
		ids[i] = o.ID
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		paid int
	)
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.svc.Finalize(ctx, id)
			if err == nil {
				mu.Lock()
				paid++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, discount.ErrAlreadyUsed)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, paid)
	assert.Equal(t, int64(paid), c.gateway.charges.Load())

	found, err := c.store.FindByCode(ctx, "FIVE")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Contains(t, ids, found[0].OrderID)
}

func TestCheckout_DeclinedPaymentFreesDiscount(t *testing.T) {
	c := newCheckout(t, 0)
	ctx := context.Background()

	o, err := c.svc.CreateOrder(ctx, "johndoe")
	require.NoError(t, err)
	_, err = c.svc.AddItem(ctx, o.ID, c.widget.ID, 1)
	require.NoError(t, err)
	_, err = c.svc.ApplyDiscount(ctx, o.ID, "FIVE")
	require.NoError(t, err)

	_, err = c.svc.Finalize(ctx, o.ID)
	var pe *order.PaymentFailedError
	require.ErrorAs(t, err, &pe)

	found, err := c.store.FindByCode(ctx, "FIVE")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.False(t, found[0].Used)
	assert.Empty(t, found[0].OrderID)
	assert.Equal(t, int64(1), c.gateway.charges.Load())
}
