// Package memory provides in-process implementations of the domain
// repositories for tests and single-instance development runs.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/store-checkout/internal/domain/auth"
	"github.com/xenking/store-checkout/internal/domain/discount"
	"github.com/xenking/store-checkout/internal/domain/order"
	"github.com/xenking/store-checkout/internal/domain/pricing"
	"github.com/xenking/store-checkout/internal/domain/product"
	"github.com/xenking/store-checkout/internal/domain/user"
)

var (
	_ order.Repository    = (*Store)(nil)
	_ user.Repository     = (*Store)(nil)
	_ product.Repository  = (*Store)(nil)
	_ pricing.Repository  = (*Store)(nil)
	_ discount.Repository = (*Store)(nil)
	_ auth.Repository     = (*Store)(nil)
)

// Store keeps every entity behind a single lock, so saving a paid order and
// consuming its discount happen atomically.
type Store struct {
	mu sync.RWMutex

	users     map[string]user.User
	products  map[string]product.Product
	prices    map[string][]pricing.PricedProduct // by product id, oldest first
	discounts map[string]*discount.Discount      // by id
	orders    map[string]*order.Order
	apiKeys   map[string]auth.APIKeyInfo // by hash
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		users:     make(map[string]user.User),
		products:  make(map[string]product.Product),
		prices:    make(map[string][]pricing.PricedProduct),
		discounts: make(map[string]*discount.Discount),
		orders:    make(map[string]*order.Order),
		apiKeys:   make(map[string]auth.APIKeyInfo),
	}
}

// AddUser stores u, assigning an id when empty.
func (s *Store) AddUser(u user.User) user.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	s.users[u.Login] = u
	return u
}

// AddProduct stores p, assigning an id when empty.
func (s *Store) AddProduct(p product.Product) product.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.products[p.ID] = p
	return p
}

// AddDiscount stores d, assigning an id when empty.
func (s *Store) AddDiscount(d discount.Discount) discount.Discount {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	s.discounts[d.ID] = &d
	return d
}

// AddAPIKey stores info under its hash.
func (s *Store) AddAPIKey(info auth.APIKeyInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if info.ID == "" {
		info.ID = uuid.NewString()
	}
	s.apiKeys[info.KeyHash] = info
}

// FindByLogin implements user.Repository.
func (s *Store) FindByLogin(_ context.Context, login string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[login]
	if !ok {
		return nil, user.ErrNotFound
	}
	return &u, nil
}

// GetByID implements product.Repository.
func (s *Store) GetByID(_ context.Context, id string) (*product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

// SearchByName implements product.Repository. Results are ordered by name.
func (s *Store) SearchByName(_ context.Context, name string) ([]product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(name)
	var out []product.Product
	for _, p := range s.products {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b product.Product) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// FindActive implements pricing.Repository.
func (s *Store) FindActive(_ context.Context, productID string) ([]pricing.PricedProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []pricing.PricedProduct
	for _, pp := range s.prices[productID] {
		if pp.Active {
			out = append(out, pp)
		}
	}
	return out, nil
}

// ReplaceActive implements pricing.Repository.
func (s *Store) ReplaceActive(_ context.Context, productID string, value decimal.Decimal, now time.Time) (*pricing.PricedProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.prices[productID]
	for i := range history {
		if history[i].Active {
			history[i].Active = false
			history[i].UpdatedAt = now
		}
	}
	pp := pricing.PricedProduct{
		ID:        uuid.NewString(),
		ProductID: productID,
		Price:     pricing.Price{ID: uuid.NewString(), Value: value},
		Active:    true,
		UpdatedAt: now,
	}
	s.prices[productID] = append(history, pp)
	return &pp, nil
}

// History implements pricing.Repository.
func (s *Store) History(_ context.Context, productID string) ([]pricing.PricedProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.prices[productID])
	slices.Reverse(out)
	return out, nil
}

// FindByCode implements discount.Repository. Codes match exactly.
func (s *Store) FindByCode(_ context.Context, code string) ([]discount.Discount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []discount.Discount
	for _, d := range s.discounts {
		if d.Code == code {
			out = append(out, *d)
		}
	}
	return out, nil
}

// Claim implements discount.Repository.
func (s *Store) Claim(_ context.Context, id, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.discounts[id]
	if !ok {
		return discount.ErrNotFound
	}
	if d.Used && d.OrderID != orderID {
		return discount.ErrAlreadyUsed
	}
	d.Used = true
	d.OrderID = orderID
	return nil
}

// Release implements discount.Repository.
func (s *Store) Release(_ context.Context, id, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.discounts[id]; ok && d.Used && d.OrderID == orderID {
		d.Used = false
		d.OrderID = ""
	}
	return nil
}

// FindByHash implements auth.Repository.
func (s *Store) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.apiKeys[hash]
	if !ok {
		return nil, auth.ErrKeyNotFound
	}
	info.Scopes = slices.Clone(info.Scopes)
	return &info, nil
}

// Create implements order.Repository.
func (s *Store) Create(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return order.ErrConcurrentUpdate
	}
	s.orders[o.ID] = o.Clone()
	return nil
}

// Get implements order.Repository.
func (s *Store) Get(_ context.Context, id string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o.Clone(), nil
}

// Save implements order.Repository.
func (s *Store) Save(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.orders[o.ID]
	if !ok {
		return order.ErrNotFound
	}
	if cur.Version != o.Version {
		return order.ErrConcurrentUpdate
	}
	if o.Status == order.StatusPaid && o.Discount != nil {
		d, ok := s.discounts[o.Discount.ID]
		if !ok || (d.Used && d.OrderID != o.ID) {
			return discount.ErrAlreadyUsed
		}
		d.Used = true
		d.OrderID = o.ID
	}
	o.Version++
	s.orders[o.ID] = o.Clone()
	return nil
}

// Delete implements order.Repository.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return order.ErrNotFound
	}
	delete(s.orders, id)
	return nil
}

// Ping reports whether the store is usable. It always succeeds.
func (s *Store) Ping(context.Context) error { return nil }
