// Package audithook bridges certledger lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import a
// particular audit backend. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/xraph/certledger/catalog"
	"github.com/xraph/certledger/event"
	"github.com/xraph/certledger/order"
	"github.com/xraph/certledger/payment"
	"github.com/xraph/certledger/plugin"
	"github.com/xraph/certledger/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Extension)(nil)
	_ plugin.OnEntryCreated     = (*Extension)(nil)
	_ plugin.OnEntryPurchased   = (*Extension)(nil)
	_ plugin.OnEntryDelivered   = (*Extension)(nil)
	_ plugin.OnPurchaseRejected = (*Extension)(nil)
	_ plugin.OnTransferRejected = (*Extension)(nil)
	_ plugin.OnPaymentReversed  = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// It is defined locally so that audit_hook carries no backend dependency.
type Recorder interface {
	Record(ctx context.Context, evt *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, evt *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, evt *AuditEvent) error {
	return f(ctx, evt)
}

// Extension bridges certledger lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Catalog hooks
// ──────────────────────────────────────────────────

// OnEntryCreated implements plugin.OnEntryCreated.
func (e *Extension) OnEntryCreated(ctx context.Context, entry *catalog.Entry) error {
	return e.record(ctx, ActionEntryCreated, SeverityInfo, OutcomeSuccess,
		ResourceEntry, strconv.FormatUint(entry.Index, 10), CategoryCatalog, nil,
		"external_id", entry.ExternalID.String(),
		"price", entry.Price.String(),
		"quantity", entry.Quantity,
	)
}

// ──────────────────────────────────────────────────
// Order hooks
// ──────────────────────────────────────────────────

// OnEntryPurchased implements plugin.OnEntryPurchased.
func (e *Extension) OnEntryPurchased(ctx context.Context, ev *event.Event, o *order.Order) error {
	return e.record(ctx, ActionEntryPurchased, SeverityInfo, OutcomeSuccess,
		ResourceOrder, strconv.FormatUint(o.ID, 10), CategoryOrder, nil,
		"event_id", ev.ID.String(),
		"entry_index", o.EntryIndex,
		"customer", o.Customer.String(),
		"amount", o.Amount.String(),
		"receipt_id", o.ReceiptID.String(),
	)
}

// OnEntryDelivered implements plugin.OnEntryDelivered.
func (e *Extension) OnEntryDelivered(ctx context.Context, ev *event.Event, o *order.Order) error {
	return e.record(ctx, ActionEntryDelivered, SeverityInfo, OutcomeSuccess,
		ResourceOrder, strconv.FormatUint(o.ID, 10), CategoryOrder, nil,
		"event_id", ev.ID.String(),
		"customer", o.Customer.String(),
	)
}

// OnPurchaseRejected implements plugin.OnPurchaseRejected.
func (e *Extension) OnPurchaseRejected(ctx context.Context, customer types.Address, index uint64, err error) error {
	return e.record(ctx, ActionPurchaseRejected, SeverityWarning, OutcomeFailure,
		ResourceEntry, strconv.FormatUint(index, 10), CategoryOrder, err,
		"customer", customer.String(),
	)
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnTransferRejected implements plugin.OnTransferRejected.
func (e *Extension) OnTransferRejected(ctx context.Context, from types.Address, value types.Money) error {
	return e.record(ctx, ActionTransferRejected, SeverityWarning, OutcomeFailure,
		ResourceTransfer, from.String(), CategoryPayment, nil,
		"value", value.String(),
	)
}

// OnPaymentReversed implements plugin.OnPaymentReversed.
func (e *Extension) OnPaymentReversed(ctx context.Context, r *payment.Receipt, cause error) error {
	return e.record(ctx, ActionPaymentReversed, SeverityCritical, OutcomeFailure,
		ResourceReceipt, r.ID.String(), CategoryPayment, cause,
		"payer", r.Payer.String(),
		"amount", r.Amount.String(),
		"reference", r.Reference,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
