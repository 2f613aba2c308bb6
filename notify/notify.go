// Package notify holds the wire form shared by the certledger notifiers in
// its sub-packages. Each notifier is a plugin that forwards committed
// purchase and delivery events to an external broker.
package notify

import (
	"time"

	"github.com/xraph/certledger/event"
	"github.com/xraph/certledger/order"
	"github.com/xraph/certledger/types"
)

// Message is the JSON document published for every committed event.
type Message struct {
	EventID    string        `json:"event_id"`
	Seq        uint64        `json:"seq"`
	Kind       event.Kind    `json:"kind"`
	ExternalID string        `json:"external_id"`
	Customer   types.Address `json:"customer"`
	OrderID    uint64        `json:"order_id"`
	EntryIndex uint64        `json:"entry_index"`
	Amount     types.Money   `json:"amount"`
	Status     order.Status  `json:"status"`
	EmittedAt  time.Time     `json:"emitted_at"`
}

// NewMessage flattens an event and the order it concerns.
func NewMessage(ev *event.Event, o *order.Order) Message {
	msg := Message{
		EventID:    ev.ID.String(),
		Seq:        ev.Seq,
		Kind:       ev.Kind,
		ExternalID: ev.ExternalID.String(),
		Customer:   ev.Customer,
		OrderID:    ev.OrderID,
		EntryIndex: ev.EntryIndex,
		EmittedAt:  ev.EmittedAt,
	}
	if o != nil {
		msg.Amount = o.Amount
		msg.Status = o.Status
	}
	return msg
}

// Key returns the partition key: every event of one certificate shares it.
func (m Message) Key() string { return m.ExternalID }
