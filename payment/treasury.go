package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xraph/certledger/id"
	"github.com/xraph/certledger/types"
)

var _ Collector = (*Treasury)(nil)

// Treasury is an in-process Collector that tracks collected funds per
// currency. By default every charge succeeds, modelling value that arrives
// attached to the purchase call. With WithFundedAccounts payers must
// Deposit first and charges draw down their balance.
type Treasury struct {
	mu       sync.Mutex
	funded   bool
	held     map[string]int64
	wallets  map[walletKey]int64
	receipts map[string]*Receipt
	reversed map[string]bool
	clock    func() time.Time
}

type walletKey struct {
	payer    types.Address
	currency string
}

// TreasuryOption configures a Treasury.
type TreasuryOption func(*Treasury)

// WithFundedAccounts requires payers to hold a deposited balance.
func WithFundedAccounts() TreasuryOption {
	return func(t *Treasury) { t.funded = true }
}

// WithTreasuryClock overrides time.Now for receipt timestamps.
func WithTreasuryClock(clock func() time.Time) TreasuryOption {
	return func(t *Treasury) { t.clock = clock }
}

// NewTreasury creates an empty treasury.
func NewTreasury(opts ...TreasuryOption) *Treasury {
	t := &Treasury{
		held:     make(map[string]int64),
		wallets:  make(map[walletKey]int64),
		receipts: make(map[string]*Receipt),
		reversed: make(map[string]bool),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Deposit credits payer's wallet. Only meaningful with WithFundedAccounts.
func (t *Treasury) Deposit(payer types.Address, amount types.Money) error {
	if amount.IsNegative() {
		return fmt.Errorf("payment: negative deposit %s", amount)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.wallets[walletKey{payer, currency(amount)}] += amount.Amount
	return nil
}

// Collect implements Collector.
func (t *Treasury) Collect(_ context.Context, c Charge) (*Receipt, error) {
	if c.Amount.IsNegative() {
		return nil, fmt.Errorf("payment: negative charge %s", c.Amount)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	key := walletKey{c.Payer, currency(c.Amount)}
	if t.funded {
		if t.wallets[key] < c.Amount.Amount {
			return nil, fmt.Errorf("%w: %s needs %s", ErrInsufficientFunds, c.Payer, c.Amount)
		}
		t.wallets[key] -= c.Amount.Amount
	}
	t.held[key.currency] += c.Amount.Amount

	r := &Receipt{
		ID:          id.NewReceiptID(),
		Payer:       c.Payer,
		Amount:      c.Amount.Normalize(),
		Reference:   c.Reference,
		CollectedAt: t.clock().UTC(),
	}
	t.receipts[r.ID.String()] = r
	return r, nil
}

// Reverse implements Collector. It returns the funds to the payer's wallet.
func (t *Treasury) Reverse(_ context.Context, r *Receipt) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.reversed[r.ID.String()] {
		return ErrAlreadyReversed
	}
	stored, ok := t.receipts[r.ID.String()]
	if !ok {
		return ErrUnknownReceipt
	}

	key := walletKey{stored.Payer, currency(stored.Amount)}
	t.held[key.currency] -= stored.Amount.Amount
	if t.funded {
		t.wallets[key] += stored.Amount.Amount
	}
	delete(t.receipts, r.ID.String())
	t.reversed[r.ID.String()] = true
	return nil
}

// Balance returns the funds held in the given currency.
func (t *Treasury) Balance(cur string) types.Money {
	t.mu.Lock()
	defer t.mu.Unlock()
	return types.Money{Amount: t.held[strings.ToLower(cur)], Currency: strings.ToLower(cur)}
}

// Wallet returns payer's deposited balance in the given currency.
func (t *Treasury) Wallet(payer types.Address, cur string) types.Money {
	t.mu.Lock()
	defer t.mu.Unlock()
	return types.Money{Amount: t.wallets[walletKey{payer, strings.ToLower(cur)}], Currency: strings.ToLower(cur)}
}

func currency(m types.Money) string { return strings.ToLower(m.Currency) }
