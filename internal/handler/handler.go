// Package handler exposes the checkout and pricing operations over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/store-checkout/internal/domain/auth"
	"github.com/xenking/store-checkout/internal/domain/order"
	"github.com/xenking/store-checkout/internal/domain/pricing"
	"github.com/xenking/store-checkout/internal/domain/product"
)

// Checkout is the order workflow, implemented by *order.Service.
type Checkout interface {
	CreateOrder(ctx context.Context, login string) (order.Snapshot, error)
	GetOrder(ctx context.Context, orderID string) (order.Snapshot, error)
	AddItem(ctx context.Context, orderID, productID string, quantity int64) (order.Snapshot, error)
	ApplyDiscount(ctx context.Context, orderID, code string) (order.Snapshot, error)
	Finalize(ctx context.Context, orderID string) (order.Snapshot, error)
	CancelOrder(ctx context.Context, orderID string) (order.Snapshot, error)
	FindProducts(ctx context.Context, name string) ([]product.Product, error)
}

// Pricing is the admin side of the price catalog, implemented by
// *pricing.Catalog.
type Pricing interface {
	ChangePrice(ctx context.Context, productID string, newPrice decimal.Decimal) (*pricing.PricedProduct, error)
	History(ctx context.Context, productID string) ([]pricing.PricedProduct, error)
}

var (
	_ Checkout = (*order.Service)(nil)
	_ Pricing  = (*pricing.Catalog)(nil)
)

// Handler serves the /api routes.
type Handler struct {
	checkout Checkout
	pricing  Pricing
}

// NewHandler creates a Handler.
func NewHandler(checkout Checkout, pricing Pricing) *Handler {
	return &Handler{
		checkout: checkout,
		pricing:  pricing,
	}
}

// Routes returns the API router. Every route requires an API key; customer
// and admin routes additionally require the matching scope.
func (h *Handler) Routes(sec *SecurityHandler) chi.Router {
	r := chi.NewRouter()
	r.Use(sec.Authenticate)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/customer", func(r chi.Router) {
		r.Use(RequireScope(auth.ScopeCustomer))

		r.Post("/orders", h.CreateOrder)
		r.Get("/orders/{orderId}", h.GetOrder)
		r.Post("/orders/{orderId}/items", h.AddItem)
		r.Post("/orders/{orderId}/discount", h.ApplyDiscount)
		r.Post("/orders/{orderId}/finalize", h.Finalize)
		r.Get("/products", h.FindProducts)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(RequireScope(auth.ScopeAdmin))

		r.Put("/products/{productId}/price", h.ChangePrice)
		r.Get("/products/{productId}/prices", h.PriceHistory)
		r.Post("/orders/{orderId}/cancel", h.CancelOrder)
	})

	return r
}
