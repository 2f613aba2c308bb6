package certledger_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/xraph/certledger"
	"github.com/xraph/certledger/store/memory"
)

// TestDocumentationExamples verifies that the package documentation examples work.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		ctx := context.Background()
		owner := certledger.Address{0x01}
		customer, err := certledger.ParseAddress("0x00000000000000000000000000000000000000c0")
		if err != nil {
			t.Fatal(err)
		}

		l := certledger.New(memory.New(), owner, certledger.WithLogger(slog.New(slog.DiscardHandler)))
		if err := l.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer l.Stop()

		idx, err := l.CreateEntry(ctx, owner, certledger.Draft{
			ExternalID: certledger.HashExternalID("go-fundamentals"),
			Title:      "Go Fundamentals",
			Price:      certledger.USD(4900),
			Quantity:   100,
		})
		if err != nil {
			t.Fatal(err)
		}

		orderID, err := l.Purchase(ctx, customer, idx, certledger.USD(4900))
		if err != nil {
			t.Fatal(err)
		}
		if err := l.MarkDelivered(ctx, owner, orderID); err != nil {
			t.Fatal(err)
		}

		if err := l.Receive(ctx, customer, certledger.USD(100), nil); err != certledger.ErrDirectTransferRejected {
			t.Errorf("Receive err = %v", err)
		}
	})

	t.Run("MoneyFormatting", func(t *testing.T) {
		tests := []struct {
			m    certledger.Money
			want string
		}{
			{certledger.USD(4900), "$49.00"},
			{certledger.GBP(250), "£2.50"},
			{certledger.ETH(1_000_000_000), "Ξ1.000000000"},
		}
		for _, tt := range tests {
			if got := tt.m.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		}
	})
}
