package discount

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestFinalPrice(t *testing.T) {
	tests := []struct {
		name     string
		subtotal decimal.Decimal
		typ      Type
		amount   decimal.Decimal
		want     decimal.Decimal
		wantErr  error
	}{
		{
			name:     "percentage 18% off 100",
			subtotal: d("100"),
			typ:      TypePercentage,
			amount:   d("18"),
			want:     d("82"),
		},
		{
			name:     "percentage 0% keeps subtotal",
			subtotal: d("20"),
			typ:      TypePercentage,
			amount:   d("0"),
			want:     d("20"),
		},
		{
			name:     "percentage 100% is free",
			subtotal: d("42.50"),
			typ:      TypePercentage,
			amount:   d("100"),
			want:     d("0"),
		},
		{
			name:     "percentage rounds to cents",
			subtotal: d("29.97"),
			typ:      TypePercentage,
			amount:   d("15"),
			// 29.97 * 0.85 = 25.4745
			want: d("25.47"),
		},
		{
			name:     "percentage above 100 rejected",
			subtotal: d("100"),
			typ:      TypePercentage,
			amount:   d("150"),
			wantErr:  ErrPercentageOutOfRange,
		},
		{
			name:     "negative percentage rejected",
			subtotal: d("100"),
			typ:      TypePercentage,
			amount:   d("-1"),
			wantErr:  ErrPercentageOutOfRange,
		},
		{
			name:     "fixed 5 off 20",
			subtotal: d("20"),
			typ:      TypeFixed,
			amount:   d("5"),
			want:     d("15"),
		},
		{
			name:     "fixed equal to subtotal rejected",
			subtotal: d("20"),
			typ:      TypeFixed,
			amount:   d("20"),
			wantErr:  ErrFixedExceedsSubtotal,
		},
		{
			name:     "fixed above subtotal rejected",
			subtotal: d("20"),
			typ:      TypeFixed,
			amount:   d("25.01"),
			wantErr:  ErrFixedExceedsSubtotal,
		},
		{
			name:     "negative fixed rejected",
			subtotal: d("20"),
			typ:      TypeFixed,
			amount:   d("-5"),
			wantErr:  ErrNegativeAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FinalPrice(tt.subtotal, tt.typ, tt.amount)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "expected %s, got %s", tt.want, got)
		})
	}
}

func TestFinalPrice_UnsupportedType(t *testing.T) {
	for _, typ := range []Type{TypeBuyOneGetOneFree, Type("bogus")} {
		_, err := FinalPrice(d("10"), typ, d("1"))

		var utErr *UnsupportedTypeError
		require.ErrorAs(t, err, &utErr)
		assert.Equal(t, typ, utErr.Type)
	}
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("FIXED")
	require.NoError(t, err)
	assert.Equal(t, TypeFixed, typ)

	_, err = ParseType("fixed")
	require.Error(t, err)
}
