// Package httpmiddleware contains net/http middleware shared by the API
// server. Middleware here expects to be mounted with chi's Router.Use so the
// matched route pattern is known once the inner handler returns.
package httpmiddleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Middleware wraps an http.Handler.
type Middleware = func(http.Handler) http.Handler

// routePattern returns the chi route pattern matched for r, or "" when the
// request did not go through a chi router or matched nothing.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	return rctx.RoutePattern()
}
