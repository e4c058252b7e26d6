package order

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/store-checkout/internal/domain/discount"
)

// Status is the lifecycle state of an order.
type Status string

const (
	// StatusNew orders accept items and discounts.
	StatusNew Status = "NEW"
	// StatusPaid orders were finalized with a successful payment.
	StatusPaid Status = "PAID"
	// StatusCanceled orders were canceled by an administrator.
	StatusCanceled Status = "CANCELED"
)

// Order is a customer's purchase: the unit of checkout state. It is mutated
// only through its methods, which enforce the NEW -> PAID / NEW -> CANCELED
// state machine.
type Order struct {
	ID     string
	Date   time.Time
	Status Status
	// Owner is the login of the user who created the order.
	Owner      string
	Items      []Item
	Subtotal   decimal.Decimal
	FinalPrice decimal.Decimal
	// Discount is set while a discount is applied to the current subtotal.
	Discount *AppliedDiscount
	// Version is incremented by the store on every successful save.
	Version int64
}

// Item is a line item. UnitPrice is a snapshot taken when the item was
// added, so later price changes never alter existing orders.
type Item struct {
	ID              string
	ProductID       string
	PricedProductID string
	UnitPrice       decimal.Decimal
	Quantity        int64
}

// Total returns UnitPrice * Quantity.
func (i Item) Total() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(i.Quantity))
}

// AppliedDiscount records the discount behind the current FinalPrice.
type AppliedDiscount struct {
	ID     string
	Code   string
	Type   discount.Type
	Amount decimal.Decimal
}

func (a AppliedDiscount) definition() discount.Discount {
	return discount.Discount{ID: a.ID, Code: a.Code, Type: a.Type, Amount: a.Amount}
}

// New creates an empty order owned by owner.
func New(owner string, now time.Time) *Order {
	return &Order{
		ID:         uuid.NewString(),
		Date:       now.UTC(),
		Status:     StatusNew,
		Owner:      owner,
		Subtotal:   decimal.Zero,
		FinalPrice: decimal.Zero,
	}
}

// AddItem appends a line item priced at unitPrice. The subtotal grows by
// unitPrice * quantity and FinalPrice is reset to the new subtotal, which
// drops any applied discount.
func (o *Order) AddItem(productID, pricedProductID string, unitPrice decimal.Decimal, quantity int64) (Item, error) {
	if o.Status != StatusNew {
		return Item{}, &StateError{OrderID: o.ID, Status: o.Status, Op: "add item"}
	}
	if quantity <= 0 {
		return Item{}, &ArgumentError{Err: ErrNonPositiveQuantity}
	}
	if !unitPrice.IsPositive() {
		return Item{}, &ArgumentError{Err: ErrNonPositivePrice}
	}

	item := Item{
		ID:              uuid.NewString(),
		ProductID:       productID,
		PricedProductID: pricedProductID,
		UnitPrice:       unitPrice,
		Quantity:        quantity,
	}
	o.Items = append(o.Items, item)
	o.Subtotal = o.Subtotal.Add(item.Total())
	o.FinalPrice = o.Subtotal
	o.Discount = nil

	return item, nil
}

// ApplyDiscount sets FinalPrice to the subtotal discounted by d and returns
// it. The order is left untouched when the discount cannot be applied.
func (o *Order) ApplyDiscount(d discount.Discount) (decimal.Decimal, error) {
	if o.Status != StatusNew {
		return decimal.Zero, &StateError{OrderID: o.ID, Status: o.Status, Op: "apply discount"}
	}

	final, err := discount.FinalPrice(o.Subtotal, d.Type, d.Amount)
	if err != nil {
		return decimal.Zero, &ArgumentError{Err: err}
	}

	o.FinalPrice = final
	o.Discount = &AppliedDiscount{
		ID:     d.ID,
		Code:   d.Code,
		Type:   d.Type,
		Amount: d.Amount,
	}
	return final, nil
}

// MarkPaid moves the order to PAID.
func (o *Order) MarkPaid() error {
	if o.Status != StatusNew {
		return &StateError{OrderID: o.ID, Status: o.Status, Op: "finalize"}
	}
	o.Status = StatusPaid
	return nil
}

// Cancel moves the order to CANCELED.
func (o *Order) Cancel() error {
	if o.Status != StatusNew {
		return &StateError{OrderID: o.ID, Status: o.Status, Op: "cancel"}
	}
	o.Status = StatusCanceled
	return nil
}

// Clone returns a deep copy of o.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = slices.Clone(o.Items)
	if o.Discount != nil {
		d := *o.Discount
		c.Discount = &d
	}
	return &c
}

// Snapshot is an immutable read view of an order.
type Snapshot struct {
	ID           string
	Date         time.Time
	Status       Status
	Owner        string
	Subtotal     decimal.Decimal
	FinalPrice   decimal.Decimal
	DiscountCode string
	Items        []Item
}

// Snapshot returns a read view that shares no memory with o.
func (o *Order) Snapshot() Snapshot {
	s := Snapshot{
		ID:         o.ID,
		Date:       o.Date,
		Status:     o.Status,
		Owner:      o.Owner,
		Subtotal:   o.Subtotal,
		FinalPrice: o.FinalPrice,
		Items:      slices.Clone(o.Items),
	}
	if o.Discount != nil {
		s.DiscountCode = o.Discount.Code
	}
	return s
}

// Repository persists orders.
type Repository interface {
	// Create stores a new order.
	Create(ctx context.Context, o *Order) error
	// Get returns the order with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (*Order, error)
	// Save stores o if the stored version still equals o.Version and bumps
	// o.Version. It returns ErrConcurrentUpdate otherwise. Saving a PAID
	// order that carries a discount marks the discount used in the same
	// transaction, failing with discount.ErrAlreadyUsed if another order
	// consumed it first.
	Save(ctx context.Context, o *Order) error
	// Delete removes an order and its items.
	Delete(ctx context.Context, id string) error
}
