package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/certledger"
	"github.com/xraph/certledger/catalog"
	"github.com/xraph/certledger/store"
	"github.com/xraph/certledger/store/memory"
	"github.com/xraph/certledger/store/storetest"
	"github.com/xraph/certledger/types"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return memory.New() })
}

func TestReturnedEntriesAreCopies(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	e := catalog.Draft{Title: "copy", Price: types.USD(10), Quantity: 1}.Entry(time.Now())
	if err := s.AppendEntry(ctx, e); err != nil {
		t.Fatal(err)
	}

	e.Quantity = 99
	got, err := s.GetEntry(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	got.Title = "mutated"

	again, _ := s.GetEntry(ctx, 0)
	if again.Quantity != 1 || again.Title != "copy" {
		t.Errorf("store state leaked to caller: %+v", again)
	}
}

func TestClosedStore(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(ctx); !errors.Is(err, certledger.ErrStoreClosed) {
		t.Fatalf("Ping: expected ErrStoreClosed, got %v", err)
	}
	e := catalog.Draft{Title: "late"}.Entry(time.Now())
	if err := s.AppendEntry(ctx, e); !errors.Is(err, certledger.ErrStoreClosed) {
		t.Fatalf("AppendEntry: expected ErrStoreClosed, got %v", err)
	}
}
