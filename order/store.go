package order

import (
	"context"
	"time"
)

type Store interface {
	// CommitPurchase atomically takes one unit from entry o.EntryIndex and
	// appends o as a paid order. It sets o.ID and copies the entry's
	// ExternalID onto o.
	CommitPurchase(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, orderID uint64) (*Order, error)
	ListOrders(ctx context.Context) ([]*Order, error)
	CountOrders(ctx context.Context) (uint64, error)
	// MarkDelivered moves a paid order to delivered and returns the updated order.
	MarkDelivered(ctx context.Context, orderID uint64, at time.Time) (*Order, error)
}
