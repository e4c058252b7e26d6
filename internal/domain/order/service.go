package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/store-checkout/internal/domain/discount"
	"github.com/xenking/store-checkout/internal/domain/payment"
	"github.com/xenking/store-checkout/internal/domain/pricing"
	"github.com/xenking/store-checkout/internal/domain/product"
	"github.com/xenking/store-checkout/internal/domain/user"
)

const instrumentationName = "github.com/xenking/store-checkout/internal/domain/order"

// DefaultPaymentTimeout bounds a single payment gateway call.
const DefaultPaymentTimeout = 5 * time.Second

// PriceQuoter returns the price to charge for a product.
type PriceQuoter interface {
	CurrentPrice(ctx context.Context, productID string) (pricing.Quote, error)
}

var _ PriceQuoter = (*pricing.Catalog)(nil)

// Option configures a Service.
type Option func(*Service)

// WithLocker sets the per-order lock. Defaults to a LocalLocker.
func WithLocker(l Locker) Option {
	return func(s *Service) { s.locks = l }
}

// WithPublisher sets the order event publisher. Defaults to NopPublisher.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithPaymentTimeout bounds each payment gateway call.
func WithPaymentTimeout(d time.Duration) Option {
	return func(s *Service) { s.paymentTimeout = d }
}

// WithTracerProvider sets the tracer provider. Defaults to a noop provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the meter provider. Defaults to a noop provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meter = mp.Meter(instrumentationName) }
}

// WithClock overrides the time source used for order dates and events.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service orchestrates the checkout workflow: order creation, item and
// discount changes, payment and cancellation. Mutations of one order are
// serialized through the Locker and persisted with an optimistic version
// check; a failed operation never persists partial changes.
type Service struct {
	users     user.Repository
	products  product.Repository
	prices    PriceQuoter
	discounts discount.Resolver
	payments  payment.Gateway
	orders    Repository

	locks          Locker
	events         Publisher
	paymentTimeout time.Duration
	now            func() time.Time

	tracer trace.Tracer
	meter  metric.Meter

	operations metric.Int64Counter
	charges    metric.Int64Counter
}

// NewService creates a checkout Service with the required domain
// dependencies.
func NewService(
	users user.Repository,
	products product.Repository,
	prices PriceQuoter,
	discounts discount.Resolver,
	payments payment.Gateway,
	orders Repository,
	opts ...Option,
) (*Service, error) {
	s := &Service{
		users:          users,
		products:       products,
		prices:         prices,
		discounts:      discounts,
		orders:         orders,
		locks:          NewLocalLocker(),
		events:         NopPublisher{},
		paymentTimeout: DefaultPaymentTimeout,
		now:            time.Now,
		tracer:         tracenoop.NewTracerProvider().Tracer(instrumentationName),
		meter:          metricnoop.NewMeterProvider().Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.payments = payment.WithTimeout(payments, s.paymentTimeout)

	var err error
	if s.operations, err = s.meter.Int64Counter("store.checkout.operations",
		metric.WithDescription("Checkout operations by outcome"),
	); err != nil {
		return nil, errors.Wrap(err, "create operations counter")
	}
	if s.charges, err = s.meter.Int64Counter("store.checkout.payments",
		metric.WithDescription("Payment attempts by outcome"),
	); err != nil {
		return nil, errors.Wrap(err, "create payments counter")
	}

	return s, nil
}

// CreateOrder creates an empty NEW order owned by the user with the given
// login. An empty login means the caller is not authenticated.
func (s *Service) CreateOrder(ctx context.Context, login string) (_ Snapshot, rerr error) {
	ctx, done := s.start(ctx, "create_order")
	defer func() { done(rerr) }()

	login = strings.TrimSpace(login)
	if login == "" {
		return Snapshot{}, ErrUnauthorized
	}

	u, err := s.users.FindByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return Snapshot{}, &UserNotFoundError{Login: login}
		}
		return Snapshot{}, errors.Wrap(err, "find user")
	}

	o := New(u.Login, s.now())
	if err := s.orders.Create(ctx, o); err != nil {
		return Snapshot{}, errors.Wrap(err, "create order")
	}

	zctx.From(ctx).Info("Order created",
		zap.String("order_id", o.ID),
		zap.String("owner", o.Owner),
	)
	return o.Snapshot(), nil
}

// GetOrder returns the current state of an order.
func (s *Service) GetOrder(ctx context.Context, orderID string) (_ Snapshot, rerr error) {
	ctx, done := s.start(ctx, "get_order", attribute.String("order.id", orderID))
	defer func() { done(rerr) }()

	o, err := s.load(ctx, orderID)
	if err != nil {
		return Snapshot{}, err
	}
	return o.Snapshot(), nil
}

// AddItem adds quantity units of a product to a NEW order at the product's
// current active price. Any applied discount is dropped, so FinalPrice
// equals the new subtotal.
func (s *Service) AddItem(ctx context.Context, orderID, productID string, quantity int64) (_ Snapshot, rerr error) {
	ctx, done := s.start(ctx, "add_item",
		attribute.String("order.id", orderID),
		attribute.String("product.id", productID),
	)
	defer func() { done(rerr) }()

	if quantity <= 0 {
		return Snapshot{}, &ArgumentError{Err: ErrNonPositiveQuantity}
	}

	lg := zctx.From(ctx).With(zap.String("order_id", orderID))
	return s.mutate(ctx, orderID, func(o *Order) error {
		if o.Status != StatusNew {
			return &StateError{OrderID: o.ID, Status: o.Status, Op: "add item"}
		}

		q, err := s.prices.CurrentPrice(ctx, productID)
		switch {
		case errors.Is(err, product.ErrNotFound):
			return &ProductNotFoundError{ProductID: productID, Err: err}
		case errors.Is(err, pricing.ErrNoActivePrice):
			return &ProductNotFoundError{ProductID: productID, NoActivePrice: true, Err: err}
		case err != nil:
			return errors.Wrap(err, "get current price")
		}

		hadDiscount := o.Discount != nil
		if _, err := o.AddItem(productID, q.PricedProductID, q.Value, quantity); err != nil {
			return err
		}
		if hadDiscount {
			lg.Info("Applied discount cleared by new item")
		}

		lg.Info("Item added",
			zap.String("product_id", productID),
			zap.Int64("quantity", quantity),
			zap.String("unit_price", q.Value.StringFixed(2)),
			zap.String("subtotal", o.Subtotal.StringFixed(2)),
		)
		return nil
	})
}

// ApplyDiscount applies the discount identified by code to a NEW order.
// FinalPrice is recomputed from the current subtotal; a previously applied
// discount is replaced.
func (s *Service) ApplyDiscount(ctx context.Context, orderID, code string) (_ Snapshot, rerr error) {
	ctx, done := s.start(ctx, "apply_discount", attribute.String("order.id", orderID))
	defer func() { done(rerr) }()

	lg := zctx.From(ctx).With(zap.String("order_id", orderID))
	return s.mutate(ctx, orderID, func(o *Order) error {
		if o.Status != StatusNew {
			return &StateError{OrderID: o.ID, Status: o.Status, Op: "apply discount"}
		}

		d, err := s.resolveDiscount(ctx, code)
		if err != nil {
			return err
		}

		final, err := o.ApplyDiscount(*d)
		if err != nil {
			lg.Info("Discount rejected",
				zap.String("code", d.Code),
				zap.Error(err),
			)
			return err
		}

		lg.Info("Discount applied",
			zap.String("code", d.Code),
			zap.String("type", string(d.Type)),
			zap.String("final_price", final.StringFixed(2)),
		)
		return nil
	})
}

// Finalize charges FinalPrice through the payment gateway and marks the
// order PAID on success. An applied discount is claimed for the order before
// the charge, so a code shared by several orders is paid for at most once.
// On a declined, failed or timed out payment the claim is released, the
// order stays NEW and *PaymentFailedError is returned.
func (s *Service) Finalize(ctx context.Context, orderID string) (_ Snapshot, rerr error) {
	ctx, done := s.start(ctx, "finalize", attribute.String("order.id", orderID))
	defer func() { done(rerr) }()

	lg := zctx.From(ctx).With(zap.String("order_id", orderID))
	var charged bool
	snap, err := s.mutate(ctx, orderID, func(o *Order) error {
		if o.Status != StatusNew {
			return &StateError{OrderID: o.ID, Status: o.Status, Op: "finalize"}
		}
		if o.Discount != nil {
			if err := s.claimDiscount(ctx, o); err != nil {
				return err
			}
		}

		ok, err := s.payments.Charge(ctx, payment.Charge{OrderID: o.ID, Amount: o.FinalPrice})
		s.recordCharge(ctx, ok, err)
		if err != nil || !ok {
			lg.Warn("Payment failed",
				zap.String("final_price", o.FinalPrice.StringFixed(2)),
				zap.Bool("declined", err == nil),
				zap.Error(err),
			)
			if o.Discount != nil {
				s.releaseDiscount(ctx, o)
			}
			return &PaymentFailedError{OrderID: o.ID, FinalPrice: o.FinalPrice, Err: err}
		}
		charged = true

		return o.MarkPaid()
	})
	if err != nil {
		if charged {
			lg.Error("Payment captured but order was not marked paid", zap.Error(err))
		}
		return Snapshot{}, err
	}

	lg.Info("Order paid", zap.String("final_price", snap.FinalPrice.StringFixed(2)))
	s.publish(ctx, newEvent(EventOrderPaid, snap, s.now()))
	return snap, nil
}

// CancelOrder cancels a NEW order.
func (s *Service) CancelOrder(ctx context.Context, orderID string) (_ Snapshot, rerr error) {
	ctx, done := s.start(ctx, "cancel_order", attribute.String("order.id", orderID))
	defer func() { done(rerr) }()

	snap, err := s.mutate(ctx, orderID, func(o *Order) error {
		return o.Cancel()
	})
	if err != nil {
		return Snapshot{}, err
	}

	zctx.From(ctx).Info("Order canceled", zap.String("order_id", orderID))
	s.publish(ctx, newEvent(EventOrderCanceled, snap, s.now()))
	return snap, nil
}

// FindProducts returns products whose name contains the given fragment,
// case-insensitively. An empty fragment matches every product.
func (s *Service) FindProducts(ctx context.Context, name string) (_ []product.Product, rerr error) {
	ctx, done := s.start(ctx, "find_products")
	defer func() { done(rerr) }()

	found, err := s.products.SearchByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, errors.Wrap(err, "search products")
	}
	if found == nil {
		found = []product.Product{}
	}
	return found, nil
}

// mutate loads the order under its lock, applies fn and saves the result.
// Nothing is saved when fn fails.
func (s *Service) mutate(ctx context.Context, orderID string, fn func(o *Order) error) (Snapshot, error) {
	unlock, err := s.locks.Lock(ctx, orderID)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "lock order")
	}
	defer unlock()

	o, err := s.load(ctx, orderID)
	if err != nil {
		return Snapshot{}, err
	}
	if err := fn(o); err != nil {
		return Snapshot{}, err
	}
	if err := s.orders.Save(ctx, o); err != nil {
		if errors.Is(err, discount.ErrAlreadyUsed) {
			return Snapshot{}, &ArgumentError{Err: err}
		}
		return Snapshot{}, errors.Wrap(err, "save order")
	}
	return o.Snapshot(), nil
}

func (s *Service) load(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &NotFoundError{OrderID: orderID}
		}
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}

func (s *Service) resolveDiscount(ctx context.Context, code string) (*discount.Discount, error) {
	d, err := s.discounts.Resolve(ctx, code)
	switch {
	case err == nil:
		return d, nil
	case errors.Is(err, discount.ErrNotFound):
		return nil, &DiscountNotFoundError{Code: strings.TrimSpace(code)}
	case errors.Is(err, discount.ErrAlreadyUsed):
		return nil, &ArgumentError{Err: err}
	default:
		var ambiguous *discount.AmbiguousCodeError
		if errors.As(err, &ambiguous) {
			return nil, err
		}
		return nil, errors.Wrap(err, "resolve discount")
	}
}

func (s *Service) claimDiscount(ctx context.Context, o *Order) error {
	err := s.discounts.Claim(ctx, o.Discount.definition(), o.ID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, discount.ErrAlreadyUsed):
		return &ArgumentError{Err: err}
	case errors.Is(err, discount.ErrNotFound):
		return &DiscountNotFoundError{Code: o.Discount.Code}
	default:
		return errors.Wrap(err, "claim discount")
	}
}

// releaseDiscount gives the order's claim back after a failed payment, even
// when ctx is already canceled.
func (s *Service) releaseDiscount(ctx context.Context, o *Order) {
	if err := s.discounts.Release(context.WithoutCancel(ctx), o.Discount.definition(), o.ID); err != nil {
		zctx.From(ctx).Error("Release discount claim",
			zap.String("order_id", o.ID),
			zap.String("code", o.Discount.Code),
			zap.Error(err),
		)
	}
}

func (s *Service) publish(ctx context.Context, e Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		zctx.From(ctx).Warn("Publish order event",
			zap.String("type", e.Type),
			zap.String("order_id", e.OrderID),
			zap.Error(err),
		)
	}
}

func (s *Service) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, "checkout."+op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		s.operations.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", op),
			attribute.String("outcome", outcome(err)),
		))
	}
}

func (s *Service) recordCharge(ctx context.Context, ok bool, err error) {
	result := "approved"
	switch {
	case errors.Is(err, payment.ErrTimeout):
		result = "timeout"
	case err != nil:
		result = "error"
	case !ok:
		result = "declined"
	}
	s.charges.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", result)))
}

// outcome classifies err for metrics.
func outcome(err error) string {
	var (
		paymentErr  *PaymentFailedError
		userErr     *UserNotFoundError
		productErr  *ProductNotFoundError
		discountErr *DiscountNotFoundError
		ambiguous   *discount.AmbiguousCodeError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrConcurrentUpdate), errors.As(err, &ambiguous):
		return "conflict"
	case errors.As(err, &paymentErr):
		return "payment_failed"
	case errors.Is(err, ErrNotFound),
		errors.As(err, &userErr),
		errors.As(err, &productErr),
		errors.As(err, &discountErr):
		return "not_found"
	default:
		return "error"
	}
}
