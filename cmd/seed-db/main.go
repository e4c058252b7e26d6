package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/store-checkout/internal/domain/auth"
	"github.com/xenking/store-checkout/internal/domain/discount"
	"github.com/xenking/store-checkout/internal/domain/pricing"
	"github.com/xenking/store-checkout/internal/domain/product"
	"github.com/xenking/store-checkout/internal/domain/user"
	"github.com/xenking/store-checkout/internal/storage/postgres"
)

type catalogJSON struct {
	Users []struct {
		Login string `json:"login"`
	} `json:"users"`
	Products []struct {
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Price       decimal.Decimal `json:"price"`
	} `json:"products"`
	Discounts []struct {
		Code   string          `json:"code"`
		Type   string          `json:"type"`
		Amount decimal.Decimal `json:"amount"`
	} `json:"discounts"`
}

type keySpec struct {
	id     string
	key    string
	login  string
	scopes []string
}

func main() {
	var (
		databaseURL  string
		catalogFile  string
		customerKey  string
		customerUser string
		adminKey     string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to the users/products/discounts JSON file")
	flag.StringVar(&customerKey, "customer-key", "", "customer API key to seed (or STORE_SEED_CUSTOMER_KEY env)")
	flag.StringVar(&customerUser, "customer-login", "johndoe", "user the customer API key acts for")
	flag.StringVar(&adminKey, "admin-key", "", "admin API key to seed (or STORE_SEED_ADMIN_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or STORE_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if customerKey == "" {
		customerKey = os.Getenv("STORE_SEED_CUSTOMER_KEY")
	}
	if adminKey == "" {
		adminKey = os.Getenv("STORE_SEED_ADMIN_KEY")
	}
	if customerKey == "" && adminKey == "" {
		slog.Error("at least one API key is required: set --customer-key or --admin-key")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("STORE_API_KEY_PEPPER")
	}

	var keys []keySpec
	if customerKey != "" {
		keys = append(keys, keySpec{id: "seed-customer", key: customerKey, login: customerUser, scopes: []string{auth.ScopeCustomer}})
	}
	if adminKey != "" {
		keys = append(keys, keySpec{id: "seed-admin", key: adminKey, login: "admin", scopes: []string{auth.ScopeAdmin}})
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile, keys, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile string, keys []keySpec, pepper string) error {
	slog.Info("reading catalog file", slog.String("path", catalogFile))

	data, err := os.ReadFile(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}
	var catalog catalogJSON
	if err := json.Unmarshal(data, &catalog); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedUsers(ctx, pool, catalog); err != nil {
		return errors.Wrap(err, "seed users")
	}
	if err := seedProducts(ctx, pool, catalog); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedDiscounts(ctx, pool, catalog); err != nil {
		return errors.Wrap(err, "seed discounts")
	}
	if err := seedAPIKeys(ctx, pool, keys, pepper); err != nil {
		return errors.Wrap(err, "seed api keys")
	}
	return nil
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool, catalog catalogJSON) error {
	users := postgres.NewUserRepository(pool)
	for _, u := range catalog.Users {
		if err := users.Upsert(ctx, user.User{ID: uuid.NewString(), Login: u.Login}); err != nil {
			return err
		}
		slog.Info("upserted user", slog.String("login", u.Login))
	}
	return nil
}

// seedProducts upserts products and changes their price only when the
// active price differs, so re-running the seed keeps the price history flat.
func seedProducts(ctx context.Context, pool *pgxpool.Pool, catalog catalogJSON) error {
	products := postgres.NewProductRepository(pool)
	prices := postgres.NewPriceRepository(pool)
	pricer := pricing.NewCatalog(products, prices)

	for _, p := range catalog.Products {
		if err := products.Upsert(ctx, product.Product{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
		}); err != nil {
			return err
		}

		quote, err := pricer.CurrentPrice(ctx, p.ID)
		switch {
		case err == nil && quote.Value.Equal(p.Price):
			slog.Info("price unchanged", slog.String("id", p.ID), slog.String("price", p.Price.StringFixed(2)))
			continue
		case err != nil && !errors.Is(err, pricing.ErrNoActivePrice):
			return errors.Wrapf(err, "current price of %s", p.ID)
		}

		pp, err := pricer.ChangePrice(ctx, p.ID, p.Price)
		if err != nil {
			return errors.Wrapf(err, "set price of %s", p.ID)
		}
		slog.Info("upserted product",
			slog.String("id", p.ID),
			slog.String("name", p.Name),
			slog.String("price", pp.Price.Value.StringFixed(2)),
		)
	}
	return nil
}

func seedDiscounts(ctx context.Context, pool *pgxpool.Pool, catalog catalogJSON) error {
	batch := make([]discount.Discount, 0, len(catalog.Discounts))
	for _, d := range catalog.Discounts {
		t, err := discount.ParseType(d.Type)
		if err != nil {
			return errors.Wrapf(err, "discount %s", d.Code)
		}
		batch = append(batch, discount.Discount{
			ID:     uuid.NewString(),
			Code:   d.Code,
			Type:   t,
			Amount: d.Amount,
		})
	}

	inserted, err := postgres.NewDiscountRepository(pool).InsertNew(ctx, batch)
	if err != nil {
		return err
	}
	slog.Info("seeded discounts",
		slog.Int64("inserted", inserted),
		slog.Int64("existing", int64(len(batch))-inserted),
	)
	return nil
}

func seedAPIKeys(ctx context.Context, pool *pgxpool.Pool, keys []keySpec, pepper string) error {
	repo := postgres.NewAPIKeyRepository(pool)
	for _, k := range keys {
		if err := repo.Upsert(ctx, auth.APIKeyInfo{
			ID:      k.id,
			KeyHash: auth.HashKey([]byte(pepper), k.key),
			Login:   k.login,
			Scopes:  k.scopes,
		}); err != nil {
			return err
		}
		slog.Info("upserted API key", slog.String("id", k.id), slog.String("login", k.login))
	}
	return nil
}
