// Package catalog defines the purchasable certificate entries held by the ledger.
package catalog

import (
	"math"
	"time"

	"github.com/xraph/certledger/types"
)

// MaxQuantity is the largest stock an entry can hold. Every backend stores
// quantities as signed 64-bit integers.
const MaxQuantity = math.MaxInt64

// Entry is a purchasable certificate with a fixed price and a depleting
// quantity. Index is its dense, zero-based position in the catalog.
type Entry struct {
	Index       uint64      `json:"index"`
	ExternalID  ExternalID  `json:"external_id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Teacher     string      `json:"teacher"`
	Price       types.Money `json:"price"`
	Quantity    uint64      `json:"quantity"`
	CreatedAt   time.Time   `json:"created_at"`
}

// InStock reports whether at least one unit remains.
func (e *Entry) InStock() bool { return e.Quantity > 0 }

// Draft carries the caller-supplied fields of a new entry.
type Draft struct {
	ExternalID  ExternalID  `json:"external_id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Teacher     string      `json:"teacher"`
	Price       types.Money `json:"price"`
	Quantity    uint64      `json:"quantity"`
}

// Entry builds an unindexed Entry from the draft. The store assigns Index.
func (d Draft) Entry(createdAt time.Time) *Entry {
	return &Entry{
		ExternalID:  d.ExternalID,
		Title:       d.Title,
		Description: d.Description,
		Teacher:     d.Teacher,
		Price:       d.Price.Normalize(),
		Quantity:    d.Quantity,
		CreatedAt:   createdAt,
	}
}
