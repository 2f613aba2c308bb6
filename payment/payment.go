// Package payment moves purchase funds into the ledger's treasury.
//
// The ledger validates a purchase first, then collects the payment, then
// commits the order. If the commit fails the collection is reversed, so a
// payment is held only when its order exists.
package payment

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/certledger/id"
	"github.com/xraph/certledger/types"
)

var (
	ErrInsufficientFunds = errors.New("payment: insufficient funds")
	ErrUnknownReceipt    = errors.New("payment: unknown receipt")
	ErrAlreadyReversed   = errors.New("payment: receipt already reversed")
)

// Charge is a request to move Amount from Payer into the treasury.
type Charge struct {
	Payer     types.Address `json:"payer"`
	Amount    types.Money   `json:"amount"`
	Reference string        `json:"reference"`
}

// Receipt records a completed collection.
type Receipt struct {
	ID          id.ReceiptID  `json:"id"`
	Payer       types.Address `json:"payer"`
	Amount      types.Money   `json:"amount"`
	Reference   string        `json:"reference"`
	CollectedAt time.Time     `json:"collected_at"`
}

// Collector takes payment for a purchase and can undo it.
type Collector interface {
	Collect(ctx context.Context, c Charge) (*Receipt, error)
	Reverse(ctx context.Context, r *Receipt) error
}
