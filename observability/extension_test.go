package observability_test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/certledger"
	"github.com/xraph/certledger/catalog"
	"github.com/xraph/certledger/event"
	"github.com/xraph/certledger/observability"
	"github.com/xraph/certledger/order"
	"github.com/xraph/certledger/types"
)

func TestMetricsExtensionCounts(t *testing.T) {
	ctx := context.Background()
	factory := observability.NewPrometheusFactory(nil)
	m := observability.NewMetricsExtension(factory)

	orderedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	o := &order.Order{OrderedAt: orderedAt}

	_ = m.OnEntryCreated(ctx, &catalog.Entry{Quantity: 10})
	_ = m.OnEntryPurchased(ctx, &event.Event{}, o)
	_ = m.OnEntryDelivered(ctx, &event.Event{EmittedAt: orderedAt.Add(time.Hour)}, o)
	_ = m.OnPurchaseRejected(ctx, types.Address{}, 0, certledger.ErrOutOfStock)
	_ = m.OnPurchaseRejected(ctx, types.Address{}, 0, fmt.Errorf("%w: paid $1.00", certledger.ErrInvalidPayment))
	_ = m.OnPurchaseRejected(ctx, types.Address{}, 9, certledger.ErrEntryNotFound)
	_ = m.OnTransferRejected(ctx, types.Address{}, types.USD(1))

	got := gather(t, factory.Registry())
	want := map[string]float64{
		"certledger_entry_created_total":                         1,
		"certledger_entry_units_listed_total":                    10,
		"certledger_entry_purchased_total":                       1,
		"certledger_entry_delivered_total":                       1,
		"certledger_purchase_rejected_total":                     3,
		"certledger_purchase_rejected_out_of_stock_total":        1,
		"certledger_purchase_rejected_invalid_payment_total":     1,
		"certledger_purchase_rejected_not_found_total":           1,
		"certledger_transfer_rejected_total":                     1,
		"certledger_payment_reversed_total":                      0,
		"certledger_order_delivery_latency_seconds_sample_count": 1,
	}
	for name, w := range want {
		if got[name] != w {
			t.Errorf("%s = %v, want %v", name, got[name], w)
		}
	}
}

// gather flattens counters and histogram sample counts by metric name.
func gather(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	out := make(map[string]float64)
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				out[mf.GetName()] = c.GetValue()
			}
			if h := metric.GetHistogram(); h != nil {
				out[mf.GetName()+"_sample_count"] = float64(h.GetSampleCount())
			}
		}
	}
	return out
}

func TestPrometheusFactoryReusesMetrics(t *testing.T) {
	f := observability.NewPrometheusFactory(prometheus.NewRegistry())
	a := f.Counter("certledger.entry.created")
	b := f.Counter("certledger.entry.created")
	if a != b {
		t.Fatal("Counter returned a new metric for an existing name")
	}
	a.Inc()

	rec := httptest.NewRecorder()
	f.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "certledger_entry_created_total 1") {
		t.Errorf("exposition missing counter:\n%s", rec.Body.String())
	}
}
