// Package storetest holds a conformance suite that every store.Store
// backend runs from its own tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/certledger"
	"github.com/xraph/certledger/catalog"
	"github.com/xraph/certledger/id"
	"github.com/xraph/certledger/order"
	"github.com/xraph/certledger/store"
	"github.com/xraph/certledger/types"
)

// Factory returns a fresh, migrated, empty store. Cleanup is the factory's job.
type Factory func(t *testing.T) store.Store

var (
	alice = types.MustParseAddress("0x00000000000000000000000000000000000a11ce")
	bob   = types.MustParseAddress("0x0000000000000000000000000000000000000b0b")
)

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("EntriesAreDense", func(t *testing.T) { testEntriesAreDense(t, newStore(t)) })
	t.Run("EntryNotFound", func(t *testing.T) { testEntryNotFound(t, newStore(t)) })
	t.Run("ListEntriesEmpty", func(t *testing.T) { testListEntriesEmpty(t, newStore(t)) })
	t.Run("CommitPurchase", func(t *testing.T) { testCommitPurchase(t, newStore(t)) })
	t.Run("OutOfStockLeavesState", func(t *testing.T) { testOutOfStock(t, newStore(t)) })
	t.Run("PurchaseUnknownEntry", func(t *testing.T) { testPurchaseUnknownEntry(t, newStore(t)) })
	t.Run("MarkDelivered", func(t *testing.T) { testMarkDelivered(t, newStore(t)) })
	t.Run("OwnerBinding", func(t *testing.T) { testOwnerBinding(t, newStore(t)) })
	t.Run("ConcurrentPurchases", func(t *testing.T) { testConcurrentPurchases(t, newStore(t)) })
	t.Run("QuantityBound", func(t *testing.T) { testQuantityBound(t, newStore(t)) })
	t.Run("NonceClaims", func(t *testing.T) { testNonceClaims(t, newStore(t)) })
}

func now() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }

func appendEntry(t *testing.T, s store.Store, label string, price types.Money, qty uint64) *catalog.Entry {
	t.Helper()
	e := catalog.Draft{
		ExternalID:  catalog.HashExternalID(label),
		Title:       label,
		Description: "certificate " + label,
		Teacher:     "Ada",
		Price:       price,
		Quantity:    qty,
	}.Entry(now())
	if err := s.AppendEntry(context.Background(), e); err != nil {
		t.Fatalf("AppendEntry(%s): %v", label, err)
	}
	return e
}

func purchase(ctx context.Context, s store.Store, index uint64, customer types.Address, price types.Money) (*order.Order, error) {
	o := &order.Order{
		EntryIndex: index,
		Customer:   customer,
		Amount:     price,
		ReceiptID:  id.NewReceiptID(),
		OrderedAt:  now(),
		Status:     order.StatusPaid,
	}
	return o, s.CommitPurchase(ctx, o)
}

func testEntriesAreDense(t *testing.T, s store.Store) {
	ctx := context.Background()

	drafts := []struct {
		label string
		price types.Money
		qty   uint64
	}{
		{"", types.USD(0), 0},
		{"intro", types.USD(1000), 3},
		{"bulk", types.ETH(1_000_000_000_000), 1_000_000},
	}
	for i, d := range drafts {
		e := appendEntry(t, s, d.label, d.price, d.qty)
		if e.Index != uint64(i) {
			t.Fatalf("entry %d got index %d", i, e.Index)
		}
	}

	n, err := s.CountEntries(ctx)
	if err != nil || n != 3 {
		t.Fatalf("CountEntries = %d, %v; want 3", n, err)
	}

	got, err := s.GetEntry(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "bulk" || got.Quantity != 1_000_000 || !got.Price.Equal(types.ETH(1_000_000_000_000)) {
		t.Errorf("GetEntry(2) = %+v", got)
	}
	if got.ExternalID != catalog.HashExternalID("bulk") {
		t.Errorf("external id mismatch: %s", got.ExternalID)
	}

	empty, err := s.GetEntry(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if empty.Title != "" || !empty.Price.IsZero() || empty.Quantity != 0 {
		t.Errorf("GetEntry(0) = %+v", empty)
	}

	list, err := s.ListEntries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("ListEntries len = %d", len(list))
	}
	for i, e := range list {
		if e.Index != uint64(i) {
			t.Errorf("ListEntries[%d].Index = %d", i, e.Index)
		}
	}
}

func testEntryNotFound(t *testing.T, s store.Store) {
	_, err := s.GetEntry(context.Background(), 0)
	if !errors.Is(err, certledger.ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
	if !certledger.IsNotFound(err) {
		t.Error("IsNotFound should be true")
	}
}

func testListEntriesEmpty(t *testing.T, s store.Store) {
	list, err := s.ListEntries(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", list)
	}
}

func testCommitPurchase(t *testing.T, s store.Store) {
	ctx := context.Background()
	e := appendEntry(t, s, "go", types.USD(2500), 2)

	first, err := purchase(ctx, s, e.Index, alice, e.Price)
	if err != nil {
		t.Fatal(err)
	}
	second, err := purchase(ctx, s, e.Index, bob, e.Price)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != 0 || second.ID != 1 {
		t.Fatalf("order ids = %d, %d; want 0, 1", first.ID, second.ID)
	}
	if first.ExternalID != e.ExternalID {
		t.Errorf("external id not copied: %s", first.ExternalID)
	}

	got, err := s.GetEntry(ctx, e.Index)
	if err != nil {
		t.Fatal(err)
	}
	if got.Quantity != 0 {
		t.Errorf("quantity = %d, want 0", got.Quantity)
	}

	o, err := s.GetOrder(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if o.Customer != bob || o.Status != order.StatusPaid || o.EntryIndex != e.Index {
		t.Errorf("GetOrder(1) = %+v", o)
	}
	if o.ReceiptID.String() != second.ReceiptID.String() || !o.Amount.Equal(e.Price) {
		t.Errorf("receipt or amount lost: %+v", o)
	}
	if !o.OrderedAt.Equal(second.OrderedAt) {
		t.Errorf("ordered_at = %v, want %v", o.OrderedAt, second.OrderedAt)
	}
	if o.DeliveredAt != nil {
		t.Error("paid order should have no delivery time")
	}

	n, err := s.CountOrders(ctx)
	if err != nil || n != 2 {
		t.Fatalf("CountOrders = %d, %v; want 2", n, err)
	}
	orders, err := s.ListOrders(ctx)
	if err != nil || len(orders) != 2 || orders[0].Customer != alice {
		t.Fatalf("ListOrders = %v, %v", orders, err)
	}
}

func testOutOfStock(t *testing.T, s store.Store) {
	ctx := context.Background()
	e := appendEntry(t, s, "sold-out", types.USD(100), 0)

	_, err := purchase(ctx, s, e.Index, alice, e.Price)
	if !errors.Is(err, certledger.ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}

	n, _ := s.CountOrders(ctx)
	if n != 0 {
		t.Errorf("orders = %d, want 0", n)
	}
	got, _ := s.GetEntry(ctx, e.Index)
	if got.Quantity != 0 {
		t.Errorf("quantity = %d, want 0", got.Quantity)
	}
}

func testPurchaseUnknownEntry(t *testing.T, s store.Store) {
	_, err := purchase(context.Background(), s, 7, alice, types.USD(1))
	if !errors.Is(err, certledger.ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func testMarkDelivered(t *testing.T, s store.Store) {
	ctx := context.Background()
	e := appendEntry(t, s, "deliver", types.USD(100), 2)
	if _, err := purchase(ctx, s, e.Index, alice, e.Price); err != nil {
		t.Fatal(err)
	}
	if _, err := purchase(ctx, s, e.Index, bob, e.Price); err != nil {
		t.Fatal(err)
	}

	at := now()
	o, err := s.MarkDelivered(ctx, 0, at)
	if err != nil {
		t.Fatal(err)
	}
	if o.Status != order.StatusDelivered || o.DeliveredAt == nil || !o.DeliveredAt.Equal(at) {
		t.Errorf("MarkDelivered returned %+v", o)
	}
	if o.Customer != alice || o.ExternalID != e.ExternalID {
		t.Errorf("delivered order lost fields: %+v", o)
	}

	if _, err := s.MarkDelivered(ctx, 0, now()); !errors.Is(err, certledger.ErrInvalidState) {
		t.Errorf("second delivery: expected ErrInvalidState, got %v", err)
	}
	if _, err := s.MarkDelivered(ctx, 9, now()); !errors.Is(err, certledger.ErrOrderNotFound) {
		t.Errorf("unknown order: expected ErrOrderNotFound, got %v", err)
	}

	other, err := s.GetOrder(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if other.Status != order.StatusPaid {
		t.Errorf("order 1 status = %s, want paid", other.Status)
	}
}

func testOwnerBinding(t *testing.T, s store.Store) {
	ctx := context.Background()

	if _, ok, err := s.Owner(ctx); err != nil || ok {
		t.Fatalf("fresh store Owner() = _, %v, %v", ok, err)
	}
	if err := s.BindOwner(ctx, alice); err != nil {
		t.Fatal(err)
	}
	if err := s.BindOwner(ctx, alice); err != nil {
		t.Fatalf("rebinding same owner: %v", err)
	}
	if err := s.BindOwner(ctx, bob); !errors.Is(err, certledger.ErrOwnerMismatch) {
		t.Fatalf("expected ErrOwnerMismatch, got %v", err)
	}

	owner, ok, err := s.Owner(ctx)
	if err != nil || !ok || owner != alice {
		t.Fatalf("Owner() = %s, %v, %v", owner, ok, err)
	}
}

func testConcurrentPurchases(t *testing.T, s store.Store) {
	ctx := context.Background()
	const stock, buyers = 5, 20
	e := appendEntry(t, s, "rush", types.USD(100), stock)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		ids     = make(map[uint64]bool)
		badErrs []error
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, err := purchase(ctx, s, e.Index, alice, e.Price)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
				ids[o.ID] = true
			case !errors.Is(err, certledger.ErrOutOfStock):
				badErrs = append(badErrs, err)
			}
		}()
	}
	wg.Wait()

	if len(badErrs) > 0 {
		t.Fatalf("unexpected errors: %v", badErrs)
	}
	if ok != stock {
		t.Fatalf("%d purchases succeeded, want %d", ok, stock)
	}
	for i := uint64(0); i < stock; i++ {
		if !ids[i] {
			t.Errorf("order id %d missing; ids = %v", i, ids)
		}
	}
	got, _ := s.GetEntry(ctx, e.Index)
	if got.Quantity != 0 {
		t.Errorf("quantity = %d, want 0", got.Quantity)
	}
}

func testQuantityBound(t *testing.T, s store.Store) {
	ctx := context.Background()

	tooMany := catalog.Draft{Title: "unbounded", Quantity: catalog.MaxQuantity + 1}.Entry(now())
	if err := s.AppendEntry(ctx, tooMany); !errors.Is(err, certledger.ErrInvalidInput) {
		t.Fatalf("AppendEntry(MaxQuantity+1) err = %v, want ErrInvalidInput", err)
	}
	if n, err := s.CountEntries(ctx); err != nil || n != 0 {
		t.Fatalf("CountEntries = %d, %v; want 0", n, err)
	}

	e := appendEntry(t, s, "max", types.USD(1), catalog.MaxQuantity)
	got, err := s.GetEntry(ctx, e.Index)
	if err != nil {
		t.Fatal(err)
	}
	if got.Quantity != catalog.MaxQuantity {
		t.Errorf("Quantity = %d, want %d", got.Quantity, uint64(catalog.MaxQuantity))
	}
}

func testNonceClaims(t *testing.T, s store.Store) {
	ctx := context.Background()

	if err := s.ClaimNonce(ctx, alice, "n-1"); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := s.ClaimNonce(ctx, alice, "n-1"); !errors.Is(err, certledger.ErrNonceReused) {
		t.Fatalf("second claim err = %v, want ErrNonceReused", err)
	}
	if err := s.ClaimNonce(ctx, bob, "n-1"); err != nil {
		t.Errorf("same nonce from another sender: %v", err)
	}
	if err := s.ClaimNonce(ctx, alice, "n-2"); err != nil {
		t.Errorf("fresh nonce: %v", err)
	}
}
