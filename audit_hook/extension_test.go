package audithook_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/certledger"
	audithook "github.com/xraph/certledger/audit_hook"
	"github.com/xraph/certledger/catalog"
	"github.com/xraph/certledger/event"
	"github.com/xraph/certledger/order"
	"github.com/xraph/certledger/payment"
	"github.com/xraph/certledger/types"
)

func capture() (*[]*audithook.AuditEvent, audithook.RecorderFunc) {
	var got []*audithook.AuditEvent
	return &got, func(_ context.Context, evt *audithook.AuditEvent) error {
		got = append(got, evt)
		return nil
	}
}

func TestHooksRecordEvents(t *testing.T) {
	ctx := context.Background()
	got, rec := capture()
	ext := audithook.New(rec)

	customer := types.Address{0xc0}
	o := &order.Order{ID: 3, EntryIndex: 1, Customer: customer, Amount: types.USD(4900)}

	_ = ext.OnEntryCreated(ctx, &catalog.Entry{Index: 1, Price: types.USD(4900), Quantity: 2})
	_ = ext.OnEntryPurchased(ctx, &event.Event{}, o)
	_ = ext.OnEntryDelivered(ctx, &event.Event{}, o)
	_ = ext.OnPurchaseRejected(ctx, customer, 1, certledger.ErrOutOfStock)
	_ = ext.OnTransferRejected(ctx, customer, types.ETH(5))
	_ = ext.OnPaymentReversed(ctx, &payment.Receipt{Payer: customer, Amount: types.USD(1)}, errors.New("commit failed"))

	want := []struct {
		action     string
		resourceID string
		outcome    string
	}{
		{audithook.ActionEntryCreated, "1", audithook.OutcomeSuccess},
		{audithook.ActionEntryPurchased, "3", audithook.OutcomeSuccess},
		{audithook.ActionEntryDelivered, "3", audithook.OutcomeSuccess},
		{audithook.ActionPurchaseRejected, "1", audithook.OutcomeFailure},
		{audithook.ActionTransferRejected, customer.String(), audithook.OutcomeFailure},
		{audithook.ActionPaymentReversed, "", audithook.OutcomeFailure},
	}

	if len(*got) != len(want) {
		t.Fatalf("recorded %d events, want %d", len(*got), len(want))
	}
	for i, w := range want {
		evt := (*got)[i]
		if evt.Action != w.action || evt.Outcome != w.outcome {
			t.Errorf("event %d = %s/%s, want %s/%s", i, evt.Action, evt.Outcome, w.action, w.outcome)
		}
		if w.resourceID != "" && evt.ResourceID != w.resourceID {
			t.Errorf("event %d resource_id = %q, want %q", i, evt.ResourceID, w.resourceID)
		}
	}

	if reason := (*got)[3].Reason; reason != certledger.ErrOutOfStock.Error() {
		t.Errorf("rejection reason = %q", reason)
	}
}

func TestDisabledActionsAreSkipped(t *testing.T) {
	ctx := context.Background()
	got, rec := capture()
	ext := audithook.New(rec, audithook.WithDisabledActions(audithook.ActionEntryCreated))

	_ = ext.OnEntryCreated(ctx, &catalog.Entry{})
	_ = ext.OnTransferRejected(ctx, types.Address{}, types.USD(1))

	if len(*got) != 1 || (*got)[0].Action != audithook.ActionTransferRejected {
		t.Errorf("recorded %+v", *got)
	}
}

func TestRecorderFailureIsNotReturned(t *testing.T) {
	ext := audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("backend down")
	}))
	if err := ext.OnEntryCreated(context.Background(), &catalog.Entry{}); err != nil {
		t.Errorf("err = %v, want nil", err)
	}
}
