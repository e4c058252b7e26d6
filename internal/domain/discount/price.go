package discount

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// FinalPrice computes the price of a subtotal after a discount of the given
// type and amount. The result is rounded to 2 decimal places.
func FinalPrice(subtotal decimal.Decimal, t Type, amount decimal.Decimal) (decimal.Decimal, error) {
	switch t {
	case TypePercentage:
		if amount.IsNegative() || amount.GreaterThan(hundred) {
			return decimal.Zero, ErrPercentageOutOfRange
		}
		// subtotal * (1 - amount/100)
		return subtotal.Mul(hundred.Sub(amount)).Div(hundred).Round(2), nil
	case TypeFixed:
		if amount.IsNegative() {
			return decimal.Zero, ErrNegativeAmount
		}
		if amount.GreaterThanOrEqual(subtotal) {
			return decimal.Zero, ErrFixedExceedsSubtotal
		}
		return subtotal.Sub(amount).Round(2), nil
	case TypeBuyOneGetOneFree:
		return decimal.Zero, &UnsupportedTypeError{Type: t}
	default:
		return decimal.Zero, &UnsupportedTypeError{Type: t}
	}
}
