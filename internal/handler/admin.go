package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// ChangePrice makes ?newPrice= the active price of a product.
func (h *Handler) ChangePrice(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("newPrice")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "newPrice is required")
		return
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "newPrice must be a decimal number")
		return
	}

	pp, err := h.pricing.ChangePrice(r.Context(), chi.URLParam(r, "productId"), price)
	if err != nil {
		fail(w, r, err)
		return
	}
	writePricedProduct(w, pp)
}

// PriceHistory lists every price a product had, newest first.
func (h *Handler) PriceHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.pricing.History(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writePriceHistory(w, history)
}

// CancelOrder moves a NEW order to CANCELED.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.checkout.CancelOrder(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeOrder(w, http.StatusOK, o)
}
