package discount

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDiscountRepo struct {
	found    []Discount
	err      error
	lastCode string

	claimErr error
	claimed  map[string]string // discount id -> order id
}

func (m *mockDiscountRepo) FindByCode(_ context.Context, code string) ([]Discount, error) {
	m.lastCode = code
	return m.found, m.err
}

func (m *mockDiscountRepo) Claim(_ context.Context, id, orderID string) error {
	if m.claimErr != nil {
		return m.claimErr
	}
	if m.claimed == nil {
		m.claimed = map[string]string{}
	}
	if holder, ok := m.claimed[id]; ok && holder != orderID {
		return ErrAlreadyUsed
	}
	m.claimed[id] = orderID
	return nil
}

func (m *mockDiscountRepo) Release(_ context.Context, id, orderID string) error {
	if m.claimed[id] == orderID {
		delete(m.claimed, id)
	}
	return nil
}

func TestEngine_Resolve(t *testing.T) {
	fixed := Discount{ID: "1", Code: "SAVE5", Type: TypeFixed, Amount: d("5")}
	used := Discount{ID: "2", Code: "USED", Type: TypeFixed, Amount: d("5"), Used: true, OrderID: "o-1"}

	tests := []struct {
		name    string
		repo    *mockDiscountRepo
		code    string
		want    *Discount
		wantErr error
	}{
		{
			name: "single match",
			repo: &mockDiscountRepo{found: []Discount{fixed}},
			code: "SAVE5",
			want: &fixed,
		},
		{
			name:    "no match",
			repo:    &mockDiscountRepo{},
			code:    "NOPE",
			wantErr: ErrNotFound,
		},
		{
			name:    "blank code",
			repo:    &mockDiscountRepo{found: []Discount{fixed}},
			code:    "   ",
			wantErr: ErrNotFound,
		},
		{
			name:    "used code",
			repo:    &mockDiscountRepo{found: []Discount{used}},
			code:    "USED",
			wantErr: ErrAlreadyUsed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewEngine(tt.repo).Resolve(context.Background(), tt.code)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEngine_Resolve_Ambiguous(t *testing.T) {
	repo := &mockDiscountRepo{found: []Discount{
		{ID: "1", Code: "DUP", Type: TypeFixed, Amount: d("1")},
		{ID: "2", Code: "DUP", Type: TypePercentage, Amount: d("50")},
	}}

	_, err := NewEngine(repo).Resolve(context.Background(), "DUP")

	var ambErr *AmbiguousCodeError
	require.ErrorAs(t, err, &ambErr)
	assert.Equal(t, 2, ambErr.Count)
}

func TestEngine_Resolve_TrimsCode(t *testing.T) {
	repo := &mockDiscountRepo{found: []Discount{{ID: "1", Code: "SAVE5", Type: TypeFixed, Amount: d("5")}}}

	_, err := NewEngine(repo).Resolve(context.Background(), " SAVE5 ")
	require.NoError(t, err)
	assert.Equal(t, "SAVE5", repo.lastCode)
}

func TestEngine_Resolve_RepoError(t *testing.T) {
	repo := &mockDiscountRepo{err: errors.New("db down")}

	_, err := NewEngine(repo).Resolve(context.Background(), "SAVE5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup discount")
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestEngine_Claim(t *testing.T) {
	ctx := context.Background()
	repo := &mockDiscountRepo{}
	e := NewEngine(repo)
	five := Discount{ID: "1", Code: "SAVE5", Type: TypeFixed, Amount: d("5")}

	require.NoError(t, e.Claim(ctx, five, "o-1"))
	require.NoError(t, e.Claim(ctx, five, "o-1"))
	require.ErrorIs(t, e.Claim(ctx, five, "o-2"), ErrAlreadyUsed)

	// Only the holder can release.
	require.NoError(t, e.Release(ctx, five, "o-2"))
	require.ErrorIs(t, e.Claim(ctx, five, "o-2"), ErrAlreadyUsed)

	require.NoError(t, e.Release(ctx, five, "o-1"))
	require.NoError(t, e.Claim(ctx, five, "o-2"))
}

func TestEngine_Claim_RepoError(t *testing.T) {
	repo := &mockDiscountRepo{claimErr: errors.New("db down")}

	err := NewEngine(repo).Claim(context.Background(), Discount{ID: "1", Code: "SAVE5"}, "o-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "claim discount SAVE5")
	assert.NotErrorIs(t, err, ErrAlreadyUsed)
}
