// Package event defines the notifications the ledger emits after a purchase
// or delivery commits, and an append-only in-process journal of them.
package event

import (
	"time"

	"github.com/xraph/certledger/catalog"
	"github.com/xraph/certledger/id"
	"github.com/xraph/certledger/types"
)

type Kind string

const (
	KindEntryPurchased Kind = "entry.purchased"
	KindEntryDelivered Kind = "entry.delivered"
)

// Event is one committed notification. Seq is 1-based and strictly
// increasing in emission order.
type Event struct {
	ID         id.EventID         `json:"id"`
	Seq        uint64             `json:"seq"`
	Kind       Kind               `json:"kind"`
	ExternalID catalog.ExternalID `json:"external_id"`
	Customer   types.Address      `json:"customer"`
	OrderID    uint64             `json:"order_id"`
	EntryIndex uint64             `json:"entry_index"`
	EmittedAt  time.Time          `json:"emitted_at"`
}

// Key returns a partitioning key that keeps one certificate's events together.
func (e *Event) Key() string {
	return e.ExternalID.String()
}
