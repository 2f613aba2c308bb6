// Package order defines purchase records and their delivery lifecycle.
package order

import (
	"time"

	"github.com/xraph/certledger/catalog"
	"github.com/xraph/certledger/id"
	"github.com/xraph/certledger/types"
)

type Status string

const (
	StatusPaid      Status = "paid"
	StatusDelivered Status = "delivered"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPaid || s == StatusDelivered
}

// CanTransition reports whether an order in status s may move to next.
// The only permitted move is paid to delivered.
func (s Status) CanTransition(next Status) bool {
	return s == StatusPaid && next == StatusDelivered
}

type Order struct {
	ID          uint64             `json:"id"`
	EntryIndex  uint64             `json:"entry_index"`
	ExternalID  catalog.ExternalID `json:"external_id"`
	Customer    types.Address      `json:"customer"`
	Amount      types.Money        `json:"amount"`
	ReceiptID   id.ReceiptID       `json:"receipt_id"`
	OrderedAt   time.Time          `json:"ordered_at"`
	Status      Status             `json:"status"`
	DeliveredAt *time.Time         `json:"delivered_at,omitempty"`
}
