//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestFindProducts(t *testing.T) {
	all := expect[[]productResponse](t, http.MethodGet, "/api/customer/products", customerKey, http.StatusOK)
	if len(all) != seededCount {
		t.Fatalf("expected %d products, got %d", seededCount, len(all))
	}

	mugs := expect[[]productResponse](t, http.MethodGet, "/api/customer/products?name=MUG", customerKey, http.StatusOK)
	if len(mugs) != 2 {
		t.Fatalf("expected 2 mugs, got %d", len(mugs))
	}
	for _, p := range mugs {
		if p.ID == "" || p.Name == "" {
			t.Errorf("incomplete product: %+v", p)
		}
	}

	none := expect[[]productResponse](t, http.MethodGet, "/api/customer/products?name=teapot", customerKey, http.StatusOK)
	if len(none) != 0 {
		t.Fatalf("expected no products, got %d", len(none))
	}
}

func TestChangePriceKeepsHistory(t *testing.T) {
	filters := findProduct(t, "filters")

	before := expect[[]priceResponse](t, http.MethodGet, "/api/admin/products/"+filters.ID+"/prices", adminKey, http.StatusOK)

	changed := expect[priceResponse](t, http.MethodPut, "/api/admin/products/"+filters.ID+"/price?newPrice=4.75", adminKey, http.StatusOK)
	if changed.Price.String() != "4.75" || !changed.Active {
		t.Fatalf("unexpected new price: %+v", changed)
	}

	history := expect[[]priceResponse](t, http.MethodGet, "/api/admin/products/"+filters.ID+"/prices", adminKey, http.StatusOK)
	if len(history) != len(before)+1 {
		t.Fatalf("expected %d history entries, got %d", len(before)+1, len(history))
	}
	if history[0].ID != changed.ID {
		t.Errorf("newest entry: got %s, want %s", history[0].ID, changed.ID)
	}
	active := 0
	for _, pp := range history {
		if pp.Active {
			active++
		}
	}
	if active != 1 {
		t.Errorf("expected exactly one active price, got %d", active)
	}
}

func TestChangePriceValidation(t *testing.T) {
	kettle := findProduct(t, "kettle")

	for _, price := range []string{"0", "-3", "abc"} {
		body := expect[errorResponse](t, http.MethodPut, "/api/admin/products/"+kettle.ID+"/price?newPrice="+price, adminKey, http.StatusBadRequest)
		if body.Code != http.StatusBadRequest {
			t.Errorf("newPrice=%s: code %d", price, body.Code)
		}
	}

	expect[errorResponse](t, http.MethodPut, "/api/admin/products/missing/price?newPrice=1", adminKey, http.StatusNotFound)
}
