package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/store-checkout/internal/domain/auth"
)

// CreateOrder opens a NEW order for the authenticated caller.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var login string
	if info, ok := auth.PrincipalFrom(r.Context()); ok {
		login = info.Login
	}

	o, err := h.checkout.CreateOrder(r.Context(), login)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeOrder(w, http.StatusCreated, o)
}

// GetOrder returns an order by id.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.checkout.GetOrder(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeOrder(w, http.StatusOK, o)
}

// AddItem adds ?quantity= (default 1) units of ?productId= at the current
// price.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	productID := strings.TrimSpace(q.Get("productId"))
	if productID == "" {
		writeError(w, http.StatusBadRequest, "productId is required")
		return
	}

	quantity := int64(1)
	if raw := q.Get("quantity"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "quantity must be an integer")
			return
		}
		quantity = n
	}

	o, err := h.checkout.AddItem(r.Context(), chi.URLParam(r, "orderId"), productID, quantity)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeOrder(w, http.StatusOK, o)
}

// ApplyDiscount applies ?discountCode= to an order.
func (h *Handler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("discountCode"))
	if code == "" {
		writeError(w, http.StatusBadRequest, "discountCode is required")
		return
	}

	o, err := h.checkout.ApplyDiscount(r.Context(), chi.URLParam(r, "orderId"), code)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeOrder(w, http.StatusOK, o)
}

// Finalize charges the order's final price and marks it PAID.
func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	o, err := h.checkout.Finalize(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeOrder(w, http.StatusOK, o)
}

// FindProducts lists products whose name contains ?name=.
func (h *Handler) FindProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.checkout.FindProducts(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeProducts(w, products)
}
