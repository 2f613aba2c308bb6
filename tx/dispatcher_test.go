package tx_test

import (
	"context"
	"crypto/ed25519"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/xraph/certledger"
	"github.com/xraph/certledger/catalog"
	"github.com/xraph/certledger/store/memory"
	"github.com/xraph/certledger/tx"
	"github.com/xraph/certledger/types"
)

type keypair struct {
	priv ed25519.PrivateKey
	addr types.Address
}

func newKey(t *testing.T, seed byte) keypair {
	t.Helper()
	s := make([]byte, ed25519.SeedSize)
	for i := range s {
		s[i] = seed
	}
	priv := ed25519.NewKeyFromSeed(s)
	return keypair{priv: priv, addr: types.AddressFromPublicKey(priv.Public().(ed25519.PublicKey))}
}

func setup(t *testing.T, opts ...tx.Option) (*tx.Dispatcher, *certledger.Ledger, keypair) {
	t.Helper()
	owner := newKey(t, 1)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := certledger.New(memory.New(), owner.addr, certledger.WithLogger(logger))
	if err := l.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = l.Stop() })
	opts = append([]tx.Option{tx.WithLogger(logger)}, opts...)
	return tx.NewDispatcher(l, opts...), l, owner
}

func envelope(t *testing.T, from types.Address, method tx.Method, args any, value *types.Money) *tx.Envelope {
	t.Helper()
	env, err := tx.New(from, method, args, value)
	if err != nil {
		t.Fatal(err)
	}
	return env
}

func money(m types.Money) *types.Money { return &m }

func TestDispatchLifecycle(t *testing.T) {
	ctx := context.Background()
	d, l, owner := setup(t)
	buyer := newKey(t, 2)

	created, err := d.Dispatch(ctx, envelope(t, owner.addr, tx.MethodCreateEntry,
		tx.CreateEntryArgs{
			ExternalID: catalog.HashExternalID("k8s-admin"),
			Title:      "Kubernetes Admin",
			Price:      types.USD(19900),
			Quantity:   2,
		}, nil))
	if err != nil {
		t.Fatalf("createEntry: %v", err)
	}
	if created.Index == nil || *created.Index != 0 {
		t.Fatalf("created = %+v", created)
	}

	bought, err := d.Dispatch(ctx, envelope(t, buyer.addr, tx.MethodPurchase,
		tx.PurchaseArgs{Index: 0}, money(types.USD(19900))))
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if bought.OrderID == nil || *bought.OrderID != 0 {
		t.Fatalf("bought = %+v", bought)
	}

	if _, err := d.Dispatch(ctx, envelope(t, owner.addr, tx.MethodMarkDelivered,
		tx.MarkDeliveredArgs{OrderID: 0}, nil)); err != nil {
		t.Fatalf("markDelivered: %v", err)
	}

	o, err := l.GetOrder(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if o.Customer != buyer.addr || o.Status != "delivered" {
		t.Errorf("order = %+v", o)
	}
}

func TestDispatchErrors(t *testing.T) {
	stranger := newKey(t, 9)

	tests := []struct {
		name    string
		lenient bool
		build   func(owner types.Address) *tx.Envelope
		want    error
		noop    bool
	}{
		{
			name: "unknown method strict",
			build: func(types.Address) *tx.Envelope {
				return &tx.Envelope{From: stranger.addr, Method: "withdraw"}
			},
			want: certledger.ErrUnknownMethod,
		},
		{
			name:    "unknown method lenient",
			lenient: true,
			build: func(types.Address) *tx.Envelope {
				return &tx.Envelope{From: stranger.addr, Method: "withdraw"}
			},
			noop: true,
		},
		{
			name:    "unknown method with value",
			lenient: true,
			build: func(types.Address) *tx.Envelope {
				return &tx.Envelope{From: stranger.addr, Method: "withdraw", Value: money(types.ETH(1))}
			},
			want: certledger.ErrDirectTransferRejected,
		},
		{
			name: "plain transfer",
			build: func(types.Address) *tx.Envelope {
				return &tx.Envelope{From: stranger.addr, Value: money(types.ETH(1))}
			},
			want: certledger.ErrDirectTransferRejected,
		},
		{
			name: "create by non-owner",
			build: func(types.Address) *tx.Envelope {
				return envelope(t, stranger.addr, tx.MethodCreateEntry, tx.CreateEntryArgs{}, nil)
			},
			want: certledger.ErrUnauthorized,
		},
		{
			name: "create with value",
			build: func(owner types.Address) *tx.Envelope {
				return envelope(t, owner, tx.MethodCreateEntry, tx.CreateEntryArgs{}, money(types.USD(1)))
			},
			want: certledger.ErrInvalidInput,
		},
		{
			name: "purchase without args",
			build: func(types.Address) *tx.Envelope {
				return &tx.Envelope{From: stranger.addr, Method: tx.MethodPurchase}
			},
			want: certledger.ErrInvalidInput,
		},
		{
			name: "purchase missing entry",
			build: func(types.Address) *tx.Envelope {
				return envelope(t, stranger.addr, tx.MethodPurchase, tx.PurchaseArgs{Index: 3}, money(types.USD(1)))
			},
			want: certledger.ErrEntryNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []tx.Option
			if tt.lenient {
				opts = append(opts, tx.WithLenientFallback())
			}
			d, _, owner := setup(t, opts...)

			res, err := d.Dispatch(context.Background(), tt.build(owner.addr))
			if tt.want != nil {
				if !errors.Is(err, tt.want) {
					t.Fatalf("err = %v, want %v", err, tt.want)
				}
				return
			}
			if err != nil {
				t.Fatalf("err = %v", err)
			}
			if res.NoOp != tt.noop {
				t.Errorf("NoOp = %v, want %v", res.NoOp, tt.noop)
			}
		})
	}
}

func TestDispatchRejectsReplayedNonce(t *testing.T) {
	ctx := context.Background()
	d, _, owner := setup(t)

	env := envelope(t, owner.addr, tx.MethodCreateEntry, tx.CreateEntryArgs{Title: "once"}, nil)
	if _, err := d.Dispatch(ctx, env); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Dispatch(ctx, env); !errors.Is(err, tx.ErrNonceReused) {
		t.Fatalf("err = %v, want ErrNonceReused", err)
	}
}

func TestDispatchRequiresNonce(t *testing.T) {
	ctx := context.Background()
	d, l, owner := setup(t)

	bare := &tx.Envelope{From: owner.addr, Method: tx.MethodCreateEntry, Args: []byte(`{"title":"bare"}`)}
	for i := 0; i < 3; i++ {
		if _, err := d.Dispatch(ctx, bare); !errors.Is(err, certledger.ErrInvalidInput) {
			t.Fatalf("attempt %d: err = %v, want ErrInvalidInput", i, err)
		}
	}

	signed, err := tx.Sign(bare, owner.priv)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.DispatchSigned(ctx, signed); !errors.Is(err, certledger.ErrInvalidInput) {
		t.Fatalf("signed err = %v, want ErrInvalidInput", err)
	}

	if next, _ := l.NextEntryIndex(ctx); next != 0 {
		t.Errorf("NextEntryIndex = %d, want 0", next)
	}
}

func TestReplayRejectedAfterRestart(t *testing.T) {
	ctx := context.Background()
	owner := newKey(t, 1)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := memory.New()

	start := func() *tx.Dispatcher {
		l := certledger.New(s, owner.addr, certledger.WithLogger(logger))
		if err := l.Start(ctx); err != nil {
			t.Fatal(err)
		}
		return tx.NewDispatcher(l, tx.WithLogger(logger))
	}

	env := envelope(t, owner.addr, tx.MethodCreateEntry, tx.CreateEntryArgs{Title: "once"}, nil)
	signed, err := tx.Sign(env, owner.priv)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := start().DispatchSigned(ctx, signed); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	if _, err := start().DispatchSigned(ctx, signed); !errors.Is(err, tx.ErrNonceReused) {
		t.Fatalf("replay after restart err = %v, want ErrNonceReused", err)
	}

	if n, _ := s.CountEntries(ctx); n != 1 {
		t.Errorf("entries = %d, want 1", n)
	}
}

func TestUnrecognisedEnvelopesClaimNoNonce(t *testing.T) {
	ctx := context.Background()
	d, _, owner := setup(t)

	junk := &tx.Envelope{From: owner.addr, Method: "withdraw", Nonce: "n-1"}
	if _, err := d.Dispatch(ctx, junk); !errors.Is(err, certledger.ErrUnknownMethod) {
		t.Fatalf("junk err = %v, want ErrUnknownMethod", err)
	}
	badArgs := &tx.Envelope{From: owner.addr, Method: tx.MethodCreateEntry, Args: []byte(`{`), Nonce: "n-1"}
	if _, err := d.Dispatch(ctx, badArgs); !errors.Is(err, certledger.ErrInvalidInput) {
		t.Fatalf("bad args err = %v, want ErrInvalidInput", err)
	}

	valid := envelope(t, owner.addr, tx.MethodCreateEntry, tx.CreateEntryArgs{Title: "after junk"}, nil)
	valid.Nonce = "n-1"
	if _, err := d.Dispatch(ctx, valid); err != nil {
		t.Fatalf("nonce n-1 was consumed by a rejected envelope: %v", err)
	}
}

func TestSignedEnvelopes(t *testing.T) {
	ctx := context.Background()
	d, l, owner := setup(t)
	mallory := newKey(t, 7)

	env := envelope(t, owner.addr, tx.MethodCreateEntry, tx.CreateEntryArgs{Title: "signed"}, nil)
	signed, err := tx.Sign(env, owner.priv)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.DispatchSigned(ctx, signed); err != nil {
		t.Fatalf("DispatchSigned: %v", err)
	}

	// mallory signs an envelope claiming to be the owner
	forged := envelope(t, owner.addr, tx.MethodCreateEntry, tx.CreateEntryArgs{Title: "forged"}, nil)
	bad, err := tx.Sign(forged, mallory.priv)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.DispatchSigned(ctx, bad); !errors.Is(err, certledger.ErrInvalidSignature) {
		t.Fatalf("forged err = %v, want ErrInvalidSignature", err)
	}

	tampered := *signed
	tampered.Envelope = append([]byte(nil), signed.Envelope...)
	tampered.Envelope[len(tampered.Envelope)-2] ^= 0x01
	if _, err := d.DispatchSigned(ctx, &tampered); !errors.Is(err, certledger.ErrInvalidSignature) {
		t.Fatalf("tampered err = %v, want ErrInvalidSignature", err)
	}

	short := &tx.Signed{Envelope: signed.Envelope, PublicKey: signed.PublicKey[:4], Signature: signed.Signature}
	if _, err := d.DispatchSigned(ctx, short); !errors.Is(err, certledger.ErrInvalidSignature) {
		t.Fatalf("short key err = %v, want ErrInvalidSignature", err)
	}

	if next, _ := l.NextEntryIndex(ctx); next != 1 {
		t.Errorf("NextEntryIndex = %d, want 1", next)
	}
}
