package handler

import (
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/store-checkout/internal/domain/auth"
)

// HeaderAPIKey carries the caller's raw API key.
const HeaderAPIKey = "api_key"

// SecurityHandler authenticates requests by the HMAC-SHA256 hash of their
// API key and stores the resolved caller in the request context.
type SecurityHandler struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurityHandler creates a SecurityHandler with the given API key
// repository and HMAC pepper.
func NewSecurityHandler(apikeys auth.Repository, pepper []byte) *SecurityHandler {
	return &SecurityHandler{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// Authenticate rejects requests without a known API key with 401.
func (s *SecurityHandler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(HeaderAPIKey)
		if key == "" {
			writeError(w, http.StatusUnauthorized, "missing api key")
			return
		}

		info, err := s.resolve(r, key)
		if err != nil {
			if errors.Is(err, auth.ErrKeyNotFound) {
				writeError(w, http.StatusUnauthorized, "invalid api key")
				return
			}
			fail(w, r, err)
			return
		}

		ctx := zctx.With(auth.WithPrincipal(r.Context(), info), zap.String("login", info.Login))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *SecurityHandler) resolve(r *http.Request, key string) (*auth.APIKeyInfo, error) {
	hash := auth.HashKey(s.pepper, key)
	info, err := s.apikeys.FindByHash(r.Context(), hash)
	if err != nil {
		return nil, err
	}

	// The stored hash must match the computed one, compared in constant time.
	want, err := hex.DecodeString(hash)
	if err != nil {
		return nil, errors.Wrap(err, "decode computed hash")
	}
	got, err := hex.DecodeString(info.KeyHash)
	if err != nil || subtle.ConstantTimeCompare(want, got) != 1 {
		return nil, auth.ErrKeyNotFound
	}
	return info, nil
}

// RequireScope rejects callers whose key lacks scope with 403. It must run
// after Authenticate.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, ok := auth.PrincipalFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !info.HasScope(scope) {
				writeError(w, http.StatusForbidden, "api key lacks scope "+scope)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
