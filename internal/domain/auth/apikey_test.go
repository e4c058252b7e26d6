package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashKey(t *testing.T) {
	pepper := []byte("pepper")
	h := HashKey(pepper, "secret")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashKey(pepper, "secret"))
	assert.NotEqual(t, h, HashKey(pepper, "other"))
	assert.NotEqual(t, h, HashKey([]byte("salt"), "secret"))
}

func TestPrincipal(t *testing.T) {
	_, ok := PrincipalFrom(context.Background())
	assert.False(t, ok)

	info := &APIKeyInfo{Login: "johndoe", Scopes: []string{ScopeCustomer}}
	got, ok := PrincipalFrom(WithPrincipal(context.Background(), info))
	assert.True(t, ok)
	assert.Same(t, info, got)
	assert.True(t, got.HasScope(ScopeCustomer))
	assert.False(t, got.HasScope(ScopeAdmin))
}
