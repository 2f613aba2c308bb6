package plugin_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/certledger/catalog"
	"github.com/xraph/certledger/event"
	"github.com/xraph/certledger/order"
	"github.com/xraph/certledger/plugin"
	"github.com/xraph/certledger/types"
)

type recorder struct {
	name string

	mu        sync.Mutex
	created   []uint64
	purchased []uint64
	rejected  []error
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) OnEntryCreated(_ context.Context, e *catalog.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, e.Index)
	return nil
}

func (r *recorder) OnEntryPurchased(_ context.Context, _ *event.Event, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purchased = append(r.purchased, o.ID)
	return errors.New("hook errors are logged, not returned")
}

func (r *recorder) OnPurchaseRejected(_ context.Context, _ types.Address, _ uint64, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, err)
	return nil
}

type slowPlugin struct{}

func (slowPlugin) Name() string { return "slow" }

func (slowPlugin) OnEntryCreated(ctx context.Context, _ *catalog.Entry) error {
	select {
	case <-time.After(time.Second):
	case <-ctx.Done():
	}
	return nil
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := plugin.NewRegistry()
	if err := r.Register(&recorder{name: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&recorder{name: "a"}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}
	if r.Get("a") == nil || r.Get("missing") != nil {
		t.Error("Get returned unexpected result")
	}
}

func TestEmitDispatchesToImplementers(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{name: "rec"}
	r := plugin.NewRegistry()
	if err := r.Register(rec); err != nil {
		t.Fatal(err)
	}

	r.EmitEntryCreated(ctx, &catalog.Entry{Index: 4})
	r.EmitEntryPurchased(ctx, &event.Event{}, &order.Order{ID: 2})
	r.EmitPurchaseRejected(ctx, types.Address{}, 0, errors.New("out of stock"))
	r.EmitEntryDelivered(ctx, &event.Event{}, &order.Order{})

	if len(rec.created) != 1 || rec.created[0] != 4 {
		t.Errorf("created = %v", rec.created)
	}
	if len(rec.purchased) != 1 || rec.purchased[0] != 2 {
		t.Errorf("purchased = %v", rec.purchased)
	}
	if len(rec.rejected) != 1 {
		t.Errorf("rejected = %v", rec.rejected)
	}
}

func TestSlowPluginIsBounded(t *testing.T) {
	r := plugin.NewRegistry().WithTimeout(20 * time.Millisecond)
	if err := r.Register(slowPlugin{}); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	r.EmitEntryCreated(context.Background(), &catalog.Entry{})
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("emit took %v, want bounded by timeout", elapsed)
	}
}
