package app

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/store-checkout/internal/domain/auth"
	"github.com/xenking/store-checkout/internal/domain/discount"
	"github.com/xenking/store-checkout/internal/domain/order"
	"github.com/xenking/store-checkout/internal/domain/pricing"
	"github.com/xenking/store-checkout/internal/domain/product"
	"github.com/xenking/store-checkout/internal/domain/user"
	"github.com/xenking/store-checkout/internal/storage/memory"
	"github.com/xenking/store-checkout/internal/storage/postgres"
)

// repositories groups the stores behind one backend.
type repositories struct {
	users     user.Repository
	products  product.Repository
	prices    pricing.Repository
	discounts discount.Repository
	orders    order.Repository
	apikeys   auth.Repository

	ping  func(ctx context.Context) error
	close func()
}

func openPostgres(ctx context.Context, cfg *Config) (*repositories, error) {
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}

	return &repositories{
		users:     postgres.NewUserRepository(pool),
		products:  postgres.NewProductRepository(pool),
		prices:    postgres.NewPriceRepository(pool),
		discounts: postgres.NewDiscountRepository(pool),
		orders:    postgres.NewOrderRepository(pool),
		apikeys:   postgres.NewAPIKeyRepository(pool),
		ping:      pool.Ping,
		close:     pool.Close,
	}, nil
}

// Development keys for the memory backend.
const (
	devCustomerKey = "dev-customer-key"
	devAdminKey    = "dev-admin-key"
)

// openMemory returns an in-process store seeded with a small demo catalog
// and development API keys. Nothing survives a restart.
func openMemory(ctx context.Context, lg *zap.Logger, cfg *Config) (*repositories, error) {
	store := memory.NewStore()
	pepper := []byte(cfg.APIKeyPepper)

	store.AddUser(user.User{Login: "johndoe"})
	store.AddUser(user.User{Login: "admin"})
	store.AddAPIKey(auth.APIKeyInfo{
		KeyHash: auth.HashKey(pepper, devCustomerKey),
		Login:   "johndoe",
		Scopes:  []string{auth.ScopeCustomer},
	})
	store.AddAPIKey(auth.APIKeyInfo{
		KeyHash: auth.HashKey(pepper, devAdminKey),
		Login:   "admin",
		Scopes:  []string{auth.ScopeAdmin},
	})

	for _, item := range []struct {
		name  string
		price string
	}{
		{"Coffee mug", "8.50"},
		{"Notebook", "4.20"},
		{"Desk lamp", "39.90"},
	} {
		p := store.AddProduct(product.Product{Name: item.name})
		if _, err := store.ReplaceActive(ctx, p.ID, decimal.RequireFromString(item.price), time.Now().UTC()); err != nil {
			return nil, errors.Wrapf(err, "seed price for %s", item.name)
		}
	}
	store.AddDiscount(discount.Discount{Code: "WELCOME10", Type: discount.TypePercentage, Amount: decimal.NewFromInt(10)})

	lg.Warn("Using in-memory storage with development API keys",
		zap.String("customer_key", devCustomerKey),
		zap.String("admin_key", devAdminKey),
	)

	return &repositories{
		users:     store,
		products:  store,
		prices:    store,
		discounts: store,
		orders:    store,
		apikeys:   store,
		ping:      store.Ping,
		close:     func() {},
	}, nil
}
