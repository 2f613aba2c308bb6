// Package plugin provides an extensible plugin system for certledger.
// Plugins hook into lifecycle events to extend functionality; a plugin
// implements only the hook interfaces it cares about.
package plugin

import (
	"context"

	"github.com/xraph/certledger/catalog"
	"github.com/xraph/certledger/event"
	"github.com/xraph/certledger/order"
	"github.com/xraph/certledger/payment"
	"github.com/xraph/certledger/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the ledger starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l interface{}) error
}

// OnShutdown is called when the ledger stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Catalog hooks
// ──────────────────────────────────────────────────

// OnEntryCreated is called after a catalog entry is committed.
type OnEntryCreated interface {
	Plugin
	OnEntryCreated(ctx context.Context, e *catalog.Entry) error
}

// ──────────────────────────────────────────────────
// Order hooks
// ──────────────────────────────────────────────────

// OnEntryPurchased is called after a purchase commits.
type OnEntryPurchased interface {
	Plugin
	OnEntryPurchased(ctx context.Context, ev *event.Event, o *order.Order) error
}

// OnEntryDelivered is called after a delivery is confirmed.
type OnEntryDelivered interface {
	Plugin
	OnEntryDelivered(ctx context.Context, ev *event.Event, o *order.Order) error
}

// OnPurchaseRejected is called when a purchase fails a precondition or its
// payment cannot be collected.
type OnPurchaseRejected interface {
	Plugin
	OnPurchaseRejected(ctx context.Context, customer types.Address, index uint64, err error) error
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnTransferRejected is called when value arrives outside a purchase.
type OnTransferRejected interface {
	Plugin
	OnTransferRejected(ctx context.Context, from types.Address, value types.Money) error
}

// OnPaymentReversed is called when a collected payment is returned because
// its order could not be committed.
type OnPaymentReversed interface {
	Plugin
	OnPaymentReversed(ctx context.Context, r *payment.Receipt, cause error) error
}
