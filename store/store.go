// Package store defines the persistence contract for certledger.
//
// Backends live in sub-packages: memory (tests and embedded use), sqlite
// (single-node file storage), postgres and mongo (grove ORM).
package store

import (
	"context"
	"time"

	"github.com/xraph/certledger/catalog"
	"github.com/xraph/certledger/order"
	"github.com/xraph/certledger/types"
)

// Store is the unified storage interface for all certledger records.
// Every mutating method commits atomically: on error nothing is persisted.
// AppendEntry rejects quantities above catalog.MaxQuantity with a
// certledger.ValidationError.
type Store interface {
	// Catalog methods
	AppendEntry(ctx context.Context, e *catalog.Entry) error
	GetEntry(ctx context.Context, index uint64) (*catalog.Entry, error)
	ListEntries(ctx context.Context) ([]*catalog.Entry, error)
	CountEntries(ctx context.Context) (uint64, error)

	// Order methods
	CommitPurchase(ctx context.Context, o *order.Order) error
	GetOrder(ctx context.Context, orderID uint64) (*order.Order, error)
	ListOrders(ctx context.Context) ([]*order.Order, error)
	CountOrders(ctx context.Context) (uint64, error)
	MarkDelivered(ctx context.Context, orderID uint64, at time.Time) (*order.Order, error)

	// Owner methods. BindOwner records owner on first use and fails with
	// certledger.ErrOwnerMismatch if a different owner is already recorded.
	Owner(ctx context.Context) (types.Address, bool, error)
	BindOwner(ctx context.Context, owner types.Address) error

	// Replay protection. ClaimNonce records that from used nonce and fails
	// with certledger.ErrNonceReused if it was recorded before.
	ClaimNonce(ctx context.Context, from types.Address, nonce string) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// compile-time checks that the domain sub-interfaces stay in sync.
var (
	_ catalog.Store = Store(nil)
	_ order.Store   = Store(nil)
)
