// Package observability provides a metrics extension for certledger that
// records lifecycle event counts via a MetricFactory.
package observability

import (
	"context"
	"errors"

	"github.com/xraph/certledger"
	"github.com/xraph/certledger/catalog"
	"github.com/xraph/certledger/event"
	"github.com/xraph/certledger/order"
	"github.com/xraph/certledger/payment"
	"github.com/xraph/certledger/plugin"
	"github.com/xraph/certledger/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin             = (*MetricsExtension)(nil)
	_ plugin.OnEntryCreated     = (*MetricsExtension)(nil)
	_ plugin.OnEntryPurchased   = (*MetricsExtension)(nil)
	_ plugin.OnEntryDelivered   = (*MetricsExtension)(nil)
	_ plugin.OnPurchaseRejected = (*MetricsExtension)(nil)
	_ plugin.OnTransferRejected = (*MetricsExtension)(nil)
	_ plugin.OnPaymentReversed  = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a certledger plugin to track catalog and order activity.
type MetricsExtension struct {
	// Catalog metrics
	EntryCreated Counter
	UnitsListed  Counter

	// Order metrics
	EntryPurchased  Counter
	EntryDelivered  Counter
	DeliveryLatency Histogram

	// Rejection metrics
	PurchaseRejected   Counter
	RejectedOutOfStock Counter
	RejectedPayment    Counter
	RejectedNotFound   Counter

	// Payment metrics
	TransferRejected Counter
	PaymentReversed  Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Pass NewPrometheusFactory to expose the metrics over HTTP.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		EntryCreated: factory.Counter("certledger.entry.created"),
		UnitsListed:  factory.Counter("certledger.entry.units_listed"),

		EntryPurchased:  factory.Counter("certledger.entry.purchased"),
		EntryDelivered:  factory.Counter("certledger.entry.delivered"),
		DeliveryLatency: factory.Histogram("certledger.order.delivery_latency_seconds"),

		PurchaseRejected:   factory.Counter("certledger.purchase.rejected"),
		RejectedOutOfStock: factory.Counter("certledger.purchase.rejected.out_of_stock"),
		RejectedPayment:    factory.Counter("certledger.purchase.rejected.invalid_payment"),
		RejectedNotFound:   factory.Counter("certledger.purchase.rejected.not_found"),

		TransferRejected: factory.Counter("certledger.transfer.rejected"),
		PaymentReversed:  factory.Counter("certledger.payment.reversed"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ──────────────────────────────────────────────────
// Catalog hooks
// ──────────────────────────────────────────────────

// OnEntryCreated implements plugin.OnEntryCreated.
func (m *MetricsExtension) OnEntryCreated(_ context.Context, e *catalog.Entry) error {
	m.EntryCreated.Inc()
	m.UnitsListed.Add(float64(e.Quantity))
	return nil
}

// ──────────────────────────────────────────────────
// Order hooks
// ──────────────────────────────────────────────────

// OnEntryPurchased implements plugin.OnEntryPurchased.
func (m *MetricsExtension) OnEntryPurchased(_ context.Context, _ *event.Event, _ *order.Order) error {
	m.EntryPurchased.Inc()
	return nil
}

// OnEntryDelivered implements plugin.OnEntryDelivered.
func (m *MetricsExtension) OnEntryDelivered(_ context.Context, ev *event.Event, o *order.Order) error {
	m.EntryDelivered.Inc()
	if latency := ev.EmittedAt.Sub(o.OrderedAt); latency >= 0 {
		m.DeliveryLatency.Observe(latency.Seconds())
	}
	return nil
}

// OnPurchaseRejected implements plugin.OnPurchaseRejected.
func (m *MetricsExtension) OnPurchaseRejected(_ context.Context, _ types.Address, _ uint64, err error) error {
	m.PurchaseRejected.Inc()
	switch {
	case errors.Is(err, certledger.ErrOutOfStock):
		m.RejectedOutOfStock.Inc()
	case errors.Is(err, certledger.ErrInvalidPayment), errors.Is(err, certledger.ErrPaymentFailed):
		m.RejectedPayment.Inc()
	case certledger.IsNotFound(err):
		m.RejectedNotFound.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnTransferRejected implements plugin.OnTransferRejected.
func (m *MetricsExtension) OnTransferRejected(_ context.Context, _ types.Address, _ types.Money) error {
	m.TransferRejected.Inc()
	return nil
}

// OnPaymentReversed implements plugin.OnPaymentReversed.
func (m *MetricsExtension) OnPaymentReversed(_ context.Context, _ *payment.Receipt, _ error) error {
	m.PaymentReversed.Inc()
	return nil
}
