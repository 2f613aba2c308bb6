package certledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/certledger/catalog"
	"github.com/xraph/certledger/event"
	"github.com/xraph/certledger/order"
	"github.com/xraph/certledger/payment"
	"github.com/xraph/certledger/plugin"
	"github.com/xraph/certledger/store"
	"github.com/xraph/certledger/types"
)

// Ledger is the certificate catalog and order engine.
type Ledger struct {
	store     store.Store
	owner     types.Address
	plugins   *plugin.Registry
	journal   *event.Journal
	collector payment.Collector
	logger    *slog.Logger
	clock     func() time.Time

	// mu serializes every mutation so that index and order ID assignment
	// and journal order follow commit order. Plugin hooks run outside it.
	mu            sync.Mutex
	lastOrderedAt time.Time
}

// New creates a new Ledger owned by owner. The owner is fixed for the
// lifetime of the ledger and of the store it is bound to in Start.
func New(s store.Store, owner types.Address, opts ...Option) *Ledger {
	l := &Ledger{
		store:   s,
		owner:   owner,
		plugins: plugin.NewRegistry(),
		journal: event.NewJournal(),
		logger:  slog.Default(),
		clock:   time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.collector == nil {
		l.collector = payment.NewTreasury(payment.WithTreasuryClock(l.clock))
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithPluginTimeout bounds each plugin hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		l.plugins.WithTimeout(d)
	}
}

// WithCollector sets where purchase payments are collected.
// The default is an in-process payment.Treasury.
func WithCollector(c payment.Collector) Option {
	return func(l *Ledger) {
		l.collector = c
	}
}

// WithJournal sets the event journal, e.g. to share one between ledgers in tests.
func WithJournal(j *event.Journal) Option {
	return func(l *Ledger) {
		l.journal = j
	}
}

// WithClock overrides time.Now for order and event timestamps.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		l.clock = clock
	}
}

// Start migrates the store, binds the owner, and initializes plugins.
func (l *Ledger) Start(ctx context.Context) error {
	if err := l.store.Migrate(ctx); err != nil {
		return err
	}

	if err := l.store.BindOwner(ctx, l.owner); err != nil {
		return fmt.Errorf("bind owner %s: %w", l.owner, err)
	}

	if err := l.restoreClock(ctx); err != nil {
		return err
	}

	l.plugins.EmitInit(ctx, l)

	entries, _ := l.store.CountEntries(ctx) //nolint:errcheck // informational
	orders, _ := l.store.CountOrders(ctx)   //nolint:errcheck // informational
	l.logger.Info("certledger started",
		"owner", l.owner.String(),
		"entries", entries,
		"orders", orders,
		"plugins", l.plugins.Count(),
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (l *Ledger) Stop() error {
	ctx := context.Background()
	l.plugins.EmitShutdown(ctx)

	return l.store.Close()
}

// restoreClock seeds the ordering clock from the newest persisted order so
// that OrderedAt stays non-decreasing across restarts.
func (l *Ledger) restoreClock(ctx context.Context) error {
	n, err := l.store.CountOrders(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	last, err := l.store.GetOrder(ctx, n-1)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if last.OrderedAt.After(l.lastOrderedAt) {
		l.lastOrderedAt = last.OrderedAt
	}
	return nil
}

// Owner returns the ledger's owner.
func (l *Ledger) Owner() types.Address { return l.owner }

// Plugins returns the plugin registry.
func (l *Ledger) Plugins() *plugin.Registry { return l.plugins }

// Ping checks store connectivity.
func (l *Ledger) Ping(ctx context.Context) error { return l.store.Ping(ctx) }

// ──────────────────────────────────────────────────
// Catalog Management
// ──────────────────────────────────────────────────

// CreateEntry appends a catalog entry and returns its index. Only the owner
// may create entries. Field values are stored verbatim: empty strings, a
// zero price, and a zero quantity are all accepted.
func (l *Ledger) CreateEntry(ctx context.Context, caller types.Address, d catalog.Draft) (uint64, error) {
	if caller != l.owner {
		return 0, ErrUnauthorized
	}
	if d.Price.IsNegative() {
		return 0, ValidationError{Field: "price", Message: "must not be negative"}
	}
	if d.Quantity > catalog.MaxQuantity {
		return 0, ValidationError{Field: "quantity", Message: fmt.Sprintf("must not exceed %d", uint64(catalog.MaxQuantity))}
	}

	e, err := l.appendEntry(ctx, d)
	if err != nil {
		return 0, err
	}

	l.logger.Info("entry created",
		"index", e.Index,
		"external_id", e.ExternalID.String(),
		"price", e.Price.String(),
		"quantity", e.Quantity,
	)
	l.plugins.EmitEntryCreated(context.WithoutCancel(ctx), e)

	return e.Index, nil
}

func (l *Ledger) appendEntry(ctx context.Context, d catalog.Draft) (*catalog.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := d.Entry(l.clock().UTC())
	if err := l.store.AppendEntry(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// GetEntry returns the entry at index.
func (l *Ledger) GetEntry(ctx context.Context, index uint64) (*catalog.Entry, error) {
	return l.store.GetEntry(ctx, index)
}

// ListEntries returns every entry in index order with live quantities.
func (l *Ledger) ListEntries(ctx context.Context) ([]*catalog.Entry, error) {
	return l.store.ListEntries(ctx)
}

// NextEntryIndex returns the index the next created entry will receive.
func (l *Ledger) NextEntryIndex(ctx context.Context) (uint64, error) {
	return l.store.CountEntries(ctx)
}

// ──────────────────────────────────────────────────
// Purchases
// ──────────────────────────────────────────────────

// Purchase buys one unit of the entry at index for caller and returns the
// new order ID. The payment must equal the entry price exactly.
//
// The purchase is two-phase: preconditions are checked, then the payment is
// collected, then the stock decrement and order insert are committed
// together. A failed commit reverses the collection.
//
// Plugin hooks run after the ledger lock is released, so a slow plugin
// delays only its own caller.
func (l *Ledger) Purchase(ctx context.Context, caller types.Address, index uint64, paid types.Money) (uint64, error) {
	var pending hooks
	orderID, err := l.purchase(ctx, caller, index, paid, &pending)
	pending.run(ctx)
	return orderID, err
}

func (l *Ledger) purchase(ctx context.Context, caller types.Address, index uint64, paid types.Money, pending *hooks) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, err := l.store.GetEntry(ctx, index)
	if err != nil {
		return 0, l.rejectPurchase(pending, caller, index, err)
	}
	if !e.InStock() {
		return 0, l.rejectPurchase(pending, caller, index, ErrOutOfStock)
	}
	if !exactPayment(paid, e.Price) {
		return 0, l.rejectPurchase(pending, caller, index,
			fmt.Errorf("%w: paid %s, price %s", ErrInvalidPayment, paid, e.Price))
	}

	receipt, err := l.collector.Collect(ctx, payment.Charge{
		Payer:     caller,
		Amount:    paid,
		Reference: fmt.Sprintf("entry:%d", index),
	})
	if err != nil {
		return 0, l.rejectPurchase(pending, caller, index, fmt.Errorf("%w: %w", ErrPaymentFailed, err))
	}

	orderedAt := l.now()
	o := &order.Order{
		EntryIndex: index,
		Customer:   caller,
		Amount:     e.Price,
		ReceiptID:  receipt.ID,
		OrderedAt:  orderedAt,
		Status:     order.StatusPaid,
	}
	if err := l.store.CommitPurchase(ctx, o); err != nil {
		l.reverse(ctx, pending, receipt, err)
		if IsRejection(err) {
			return 0, l.rejectPurchase(pending, caller, index, err)
		}
		return 0, err
	}
	l.lastOrderedAt = orderedAt

	ev := &event.Event{
		Kind:       event.KindEntryPurchased,
		ExternalID: o.ExternalID,
		Customer:   caller,
		OrderID:    o.ID,
		EntryIndex: index,
		EmittedAt:  orderedAt,
	}
	l.journal.Append(ev)

	l.logger.Info("entry purchased",
		"order_id", o.ID,
		"index", index,
		"customer", caller.String(),
		"amount", paid.String(),
		"receipt_id", receipt.ID.String(),
	)
	pending.add(func(ctx context.Context) { l.plugins.EmitEntryPurchased(ctx, ev, o) })

	return o.ID, nil
}

// exactPayment reports whether paid settles price with no tolerance. A zero
// payment settles a zero price in any currency.
func exactPayment(paid, price types.Money) bool {
	if paid.IsZero() && price.IsZero() {
		return true
	}
	return paid.Equal(price)
}

// now returns the ledger clock, never earlier than the last committed order.
func (l *Ledger) now() time.Time {
	t := l.clock().UTC()
	if t.Before(l.lastOrderedAt) {
		return l.lastOrderedAt
	}
	return t
}

func (l *Ledger) rejectPurchase(pending *hooks, caller types.Address, index uint64, err error) error {
	l.logger.Info("purchase rejected",
		"index", index,
		"customer", caller.String(),
		"error", err,
	)
	pending.add(func(ctx context.Context) { l.plugins.EmitPurchaseRejected(ctx, caller, index, err) })
	return err
}

func (l *Ledger) reverse(ctx context.Context, pending *hooks, receipt *payment.Receipt, cause error) {
	if err := l.collector.Reverse(ctx, receipt); err != nil {
		l.logger.Error("payment reversal failed",
			"receipt_id", receipt.ID.String(),
			"payer", receipt.Payer.String(),
			"amount", receipt.Amount.String(),
			"cause", cause,
			"error", err,
		)
		return
	}
	pending.add(func(ctx context.Context) { l.plugins.EmitPaymentReversed(ctx, receipt, cause) })
}

// ──────────────────────────────────────────────────
// Delivery
// ──────────────────────────────────────────────────

// MarkDelivered confirms delivery of a paid order. Only the owner may
// confirm, and each order can be delivered once.
func (l *Ledger) MarkDelivered(ctx context.Context, caller types.Address, orderID uint64) error {
	if caller != l.owner {
		return ErrUnauthorized
	}

	ev, o, err := l.markDelivered(ctx, orderID)
	if err != nil {
		return err
	}

	l.logger.Info("entry delivered",
		"order_id", o.ID,
		"customer", o.Customer.String(),
	)
	l.plugins.EmitEntryDelivered(context.WithoutCancel(ctx), ev, o)

	return nil
}

func (l *Ledger) markDelivered(ctx context.Context, orderID uint64) (*event.Event, *order.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	at := l.clock().UTC()
	o, err := l.store.MarkDelivered(ctx, orderID, at)
	if err != nil {
		if errors.Is(err, ErrInvalidState) {
			return nil, nil, fmt.Errorf("%w: order %d already delivered", ErrInvalidState, orderID)
		}
		return nil, nil, err
	}

	ev := &event.Event{
		Kind:       event.KindEntryDelivered,
		ExternalID: o.ExternalID,
		Customer:   o.Customer,
		OrderID:    o.ID,
		EntryIndex: o.EntryIndex,
		EmittedAt:  at,
	}
	l.journal.Append(ev)
	return ev, o, nil
}

// ──────────────────────────────────────────────────
// Orders & Events
// ──────────────────────────────────────────────────

// GetOrder returns the order with the given ID.
func (l *Ledger) GetOrder(ctx context.Context, orderID uint64) (*order.Order, error) {
	return l.store.GetOrder(ctx, orderID)
}

// ListOrders returns every order in ID order.
func (l *Ledger) ListOrders(ctx context.Context) ([]*order.Order, error) {
	return l.store.ListOrders(ctx)
}

// NextOrderID returns the ID the next successful purchase will receive.
func (l *Ledger) NextOrderID(ctx context.Context) (uint64, error) {
	return l.store.CountOrders(ctx)
}

// ClaimNonce consumes nonce for from. Each nonce is accepted once per sender
// for the lifetime of the store, across restarts.
func (l *Ledger) ClaimNonce(ctx context.Context, from types.Address, nonce string) error {
	if nonce == "" {
		return ValidationError{Field: "nonce", Message: "required"}
	}
	return l.store.ClaimNonce(ctx, from, nonce)
}

// hooks holds plugin calls queued while l.mu is held.
type hooks []func(ctx context.Context)

func (h *hooks) add(fn func(ctx context.Context)) { *h = append(*h, fn) }

// run dispatches the queued calls in order. A cancelled caller context does
// not suppress them: the work they announce is already committed.
func (h hooks) run(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for _, fn := range h {
		fn(ctx)
	}
}

// Events returns the notifications emitted after sequence number since.
func (l *Ledger) Events(since uint64) []event.Event {
	return l.journal.Since(since)
}
