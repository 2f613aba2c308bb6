// Package tx carries ledger calls as self-describing envelopes, optionally
// signed with ed25519, and dispatches them onto a certledger.Ledger.
package tx

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/xraph/certledger"
	"github.com/xraph/certledger/catalog"
	"github.com/xraph/certledger/id"
	"github.com/xraph/certledger/types"
)

// Method names a ledger operation.
type Method string

const (
	MethodCreateEntry   Method = "createEntry"
	MethodPurchase      Method = "purchase"
	MethodMarkDelivered Method = "markDelivered"
)

// Envelope is one call against the ledger. Value is the payment attached to
// the call; only purchase accepts one. Nonce is required for every
// recognised method and may be used once per sender.
type Envelope struct {
	ID     id.TransactionID `json:"id"`
	From   types.Address    `json:"from"`
	Method Method           `json:"method"`
	Args   json.RawMessage  `json:"args,omitempty"`
	Value  *types.Money     `json:"value,omitempty"`
	Nonce  string           `json:"nonce,omitempty"`
}

// CreateEntryArgs are the arguments of createEntry.
type CreateEntryArgs = catalog.Draft

// PurchaseArgs are the arguments of purchase.
type PurchaseArgs struct {
	Index uint64 `json:"index"`
}

// MarkDeliveredArgs are the arguments of markDelivered.
type MarkDeliveredArgs struct {
	OrderID uint64 `json:"order_id"`
}

// New builds an envelope with a fresh ID and nonce. args is JSON-encoded;
// pass nil for a call without arguments.
func New(from types.Address, method Method, args any, value *types.Money) (*Envelope, error) {
	env := &Envelope{
		ID:     id.NewTransactionID(),
		From:   from,
		Method: method,
		Value:  value,
		Nonce:  uuid.NewString(),
	}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("tx: encode args: %w", err)
		}
		env.Args = raw
	}
	return env, nil
}

// HasValue reports whether a non-zero payment is attached.
func (e *Envelope) HasValue() bool {
	return e.Value != nil && !e.Value.IsZero()
}

// payment returns the attached value, or a zero amount when none is attached.
func (e *Envelope) payment() types.Money {
	if e.Value == nil {
		return types.Money{}
	}
	return *e.Value
}

func (e *Envelope) requireNonce() error {
	if e.Nonce == "" {
		return certledger.ValidationError{Field: "nonce", Message: fmt.Sprintf("%s requires a nonce", e.Method)}
	}
	return nil
}

func (e *Envelope) decodeArgs(dst any) error {
	if len(e.Args) == 0 {
		return certledger.ValidationError{Field: "args", Message: fmt.Sprintf("%s requires arguments", e.Method)}
	}
	if err := json.Unmarshal(e.Args, dst); err != nil {
		return certledger.ValidationError{Field: "args", Message: err.Error()}
	}
	return nil
}
