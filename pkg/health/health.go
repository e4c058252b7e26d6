// Package health serves liveness and readiness endpoints.
//
// Checks run on every request, concurrently and each bounded by its
// own timeout. An endpoint answers 200 {"status":"ok"} when every check passes and
// 503 {"status":"unhealthy"} otherwise. "checks" maps every check name to
// "ok" or its error.
package health

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"golang.org/x/sync/errgroup"
)

// CheckFunc reports whether a dependency is healthy.
type CheckFunc func(ctx context.Context) error

type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc
}

// Health holds the registered checks and the manual readiness flag.
type Health struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []check
	readiness []check
}

// New creates a Health that reports not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a check served by LiveEndpoint.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, check{name: name, timeout: timeout, fn: fn})
}

// AddReadinessCheck registers a check served by ReadyEndpoint.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, check{name: name, timeout: timeout, fn: fn})
}

// SetReady flips the manual readiness flag. It is set after start-up and
// cleared when draining for shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	checks := slices.Clone(h.liveness)
	h.mu.RUnlock()

	writeResponse(w, runChecks(r.Context(), checks))
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	checks := slices.Clone(h.readiness)
	h.mu.RUnlock()

	results := runChecks(r.Context(), checks)
	if !h.ready.Load() {
		results = append(results, result{name: "_readiness", err: errNotReady})
	}
	writeResponse(w, results)
}

var errNotReady = errors.New("service is not ready")

type result struct {
	name string
	err  error
}

// runChecks runs checks concurrently and returns their results in
// registration order.
func runChecks(ctx context.Context, checks []check) []result {
	results := make([]result, len(checks))

	var g errgroup.Group
	for i, c := range checks {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			results[i] = result{name: c.name, err: c.fn(ctx)}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func writeResponse(w http.ResponseWriter, results []result) {
	status := http.StatusOK
	for _, r := range results {
		if r.err != nil {
			status = http.StatusServiceUnavailable
		}
	}
	slices.SortFunc(results, func(a, b result) int { return strings.Compare(a.name, b.name) })

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) {
			if status == http.StatusOK {
				e.Str("ok")
			} else {
				e.Str("unhealthy")
			}
		})
		if len(results) == 0 {
			return
		}
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, r := range results {
					e.Field(r.name, func(e *jx.Encoder) {
						if r.err != nil {
							e.Str(r.err.Error())
						} else {
							e.Str("ok")
						}
					})
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
