// Package memory implements store.Store in process memory.
//
// Records are copied on the way in and out so callers never share state
// with the store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/certledger"
	"github.com/xraph/certledger/catalog"
	"github.com/xraph/certledger/order"
	"github.com/xraph/certledger/store"
	"github.com/xraph/certledger/types"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	entries []catalog.Entry
	orders  []order.Order

	owner    types.Address
	hasOwner bool
	nonces   map[nonceKey]struct{}
	closed   bool
}

type nonceKey struct {
	from  types.Address
	nonce string
}

func New() *Store {
	return &Store{
		entries: make([]catalog.Entry, 0),
		orders:  make([]order.Order, 0),
		nonces:  make(map[nonceKey]struct{}),
	}
}

// ==================== Catalog ====================

func (s *Store) AppendEntry(_ context.Context, e *catalog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return certledger.ErrStoreClosed
	}
	if e.Quantity > catalog.MaxQuantity {
		return certledger.ValidationError{Field: "quantity", Message: "exceeds catalog.MaxQuantity"}
	}
	e.Index = uint64(len(s.entries))
	s.entries = append(s.entries, *e)
	return nil
}

func (s *Store) GetEntry(_ context.Context, index uint64) (*catalog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index >= uint64(len(s.entries)) {
		return nil, certledger.ErrEntryNotFound
	}
	e := s.entries[index]
	return &e, nil
}

func (s *Store) ListEntries(_ context.Context) ([]*catalog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*catalog.Entry, len(s.entries))
	for i := range s.entries {
		e := s.entries[i]
		result[i] = &e
	}
	return result, nil
}

func (s *Store) CountEntries(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.entries)), nil
}

// ==================== Orders ====================

func (s *Store) CommitPurchase(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return certledger.ErrStoreClosed
	}
	if o.EntryIndex >= uint64(len(s.entries)) {
		return certledger.ErrEntryNotFound
	}
	e := &s.entries[o.EntryIndex]
	if e.Quantity == 0 {
		return certledger.ErrOutOfStock
	}

	e.Quantity--
	o.ID = uint64(len(s.orders))
	o.ExternalID = e.ExternalID
	o.Status = order.StatusPaid
	s.orders = append(s.orders, *o)
	return nil
}

func (s *Store) GetOrder(_ context.Context, orderID uint64) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if orderID >= uint64(len(s.orders)) {
		return nil, certledger.ErrOrderNotFound
	}
	return copyOrder(&s.orders[orderID]), nil
}

func (s *Store) ListOrders(_ context.Context) ([]*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*order.Order, len(s.orders))
	for i := range s.orders {
		result[i] = copyOrder(&s.orders[i])
	}
	return result, nil
}

func (s *Store) CountOrders(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.orders)), nil
}

func (s *Store) MarkDelivered(_ context.Context, orderID uint64, at time.Time) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, certledger.ErrStoreClosed
	}
	if orderID >= uint64(len(s.orders)) {
		return nil, certledger.ErrOrderNotFound
	}
	o := &s.orders[orderID]
	if !o.Status.CanTransition(order.StatusDelivered) {
		return nil, certledger.ErrInvalidState
	}

	o.Status = order.StatusDelivered
	o.DeliveredAt = &at
	return copyOrder(o), nil
}

// ==================== Owner ====================

func (s *Store) Owner(_ context.Context) (types.Address, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owner, s.hasOwner, nil
}

func (s *Store) BindOwner(_ context.Context, owner types.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasOwner {
		if s.owner != owner {
			return certledger.ErrOwnerMismatch
		}
		return nil
	}
	s.owner = owner
	s.hasOwner = true
	return nil
}

// ==================== Nonces ====================

func (s *Store) ClaimNonce(_ context.Context, from types.Address, nonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return certledger.ErrStoreClosed
	}
	key := nonceKey{from: from, nonce: nonce}
	if _, ok := s.nonces[key]; ok {
		return certledger.ErrNonceReused
	}
	s.nonces[key] = struct{}{}
	return nil
}

// ==================== Core ====================

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return certledger.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func copyOrder(o *order.Order) *order.Order {
	c := *o
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		c.DeliveredAt = &t
	}
	return &c
}
