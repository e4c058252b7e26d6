package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/store-checkout/internal/domain/discount"
	"github.com/xenking/store-checkout/internal/domain/order"
	"github.com/xenking/store-checkout/internal/domain/pricing"
	"github.com/xenking/store-checkout/internal/domain/product"
)

// errorStatus maps a domain error to its HTTP status. Zero means the error
// is unexpected.
func errorStatus(err error) int {
	var (
		paymentErr   *order.PaymentFailedError
		userErr      *order.UserNotFoundError
		productErr   *order.ProductNotFoundError
		discountErr  *order.DiscountNotFoundError
		ambiguousErr *discount.AmbiguousCodeError
	)
	switch {
	case errors.As(err, &paymentErr):
		return http.StatusPaymentRequired
	case errors.Is(err, order.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.As(err, &userErr),
		errors.As(err, &productErr),
		errors.As(err, &discountErr),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pricing.ErrInvalidPrice):
		return http.StatusBadRequest
	case errors.Is(err, order.ErrInvalidArgument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, order.ErrInvalidState),
		errors.Is(err, order.ErrConcurrentUpdate),
		errors.As(err, &ambiguousErr):
		return http.StatusConflict
	default:
		return 0
	}
}

// fail writes the error response for err. Unexpected errors are logged and
// answered with a generic 500.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status == 0 {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var paymentErr *order.PaymentFailedError
	if !errors.As(err, &paymentErr) {
		writeError(w, status, err.Error())
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		encodeErrorFields(e, status, err.Error())
		e.Field("orderId", func(e *jx.Encoder) { e.Str(paymentErr.OrderID) })
		e.Field("finalPrice", func(e *jx.Encoder) { money(e, paymentErr.FinalPrice) })
	})
	writeJSON(w, status, &e)
}
