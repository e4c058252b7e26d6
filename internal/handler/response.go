package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/store-checkout/internal/domain/order"
	"github.com/xenking/store-checkout/internal/domain/pricing"
	"github.com/xenking/store-checkout/internal/domain/product"
)

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		encodeErrorFields(e, status, msg)
	})
	writeJSON(w, status, &e)
}

func encodeErrorFields(e *jx.Encoder, status int, msg string) {
	e.Field("code", func(e *jx.Encoder) { e.Int(status) })
	e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
}

// money encodes an amount as a JSON number with two decimals.
func money(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

func writeOrder(w http.ResponseWriter, status int, o order.Snapshot) {
	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, status, &e)
}

func encodeOrder(e *jx.Encoder, o order.Snapshot) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("date", func(e *jx.Encoder) { e.Str(o.Date.Format(time.RFC3339Nano)) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("userLogin", func(e *jx.Encoder) { e.Str(o.Owner) })
		e.Field("subtotal", func(e *jx.Encoder) { money(e, o.Subtotal) })
		e.Field("finalPrice", func(e *jx.Encoder) { money(e, o.FinalPrice) })
		if o.DiscountCode != "" {
			e.Field("discountCode", func(e *jx.Encoder) { e.Str(o.DiscountCode) })
		}
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					encodeItem(e, it)
				}
			})
		})
	})
}

func encodeItem(e *jx.Encoder, it order.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(it.ID) })
		e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
		e.Field("pricedProductId", func(e *jx.Encoder) { e.Str(it.PricedProductID) })
		e.Field("unitPrice", func(e *jx.Encoder) { money(e, it.UnitPrice) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int64(it.Quantity) })
		e.Field("total", func(e *jx.Encoder) { money(e, it.Total()) })
	})
}

func writeProducts(w http.ResponseWriter, products []product.Product) {
	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for _, p := range products {
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
				e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
				if p.Description != "" {
					e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
				}
			})
		}
	})
	writeJSON(w, http.StatusOK, &e)
}

func writePricedProduct(w http.ResponseWriter, pp *pricing.PricedProduct) {
	var e jx.Encoder
	encodePricedProduct(&e, *pp)
	writeJSON(w, http.StatusOK, &e)
}

func writePriceHistory(w http.ResponseWriter, history []pricing.PricedProduct) {
	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for _, pp := range history {
			encodePricedProduct(e, pp)
		}
	})
	writeJSON(w, http.StatusOK, &e)
}

func encodePricedProduct(e *jx.Encoder, pp pricing.PricedProduct) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(pp.ID) })
		e.Field("productId", func(e *jx.Encoder) { e.Str(pp.ProductID) })
		e.Field("price", func(e *jx.Encoder) { money(e, pp.Price.Value) })
		e.Field("active", func(e *jx.Encoder) { e.Bool(pp.Active) })
		e.Field("updatedAt", func(e *jx.Encoder) { e.Str(pp.UpdatedAt.Format(time.RFC3339Nano)) })
	})
}
