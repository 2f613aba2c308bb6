// Package postgres implements store.Store on PostgreSQL via the grove ORM.
//
// Every mutation is a single statement. Dense entry indexes and order IDs
// come from rows in certledger_counters, whose row locks serialize
// concurrent writers.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/drivers/pgdriver/pgmigrate"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/certledger"
	"github.com/xraph/certledger/catalog"
	"github.com/xraph/certledger/order"
	ledgerstore "github.com/xraph/certledger/store"
	"github.com/xraph/certledger/types"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

const metaOwnerKey = "owner"

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	orch := migrate.NewOrchestrator(pgmigrate.New(s.pg), Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("certledger/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Catalog Store ====================

const appendEntrySQL = `
WITH seq AS (
    UPDATE certledger_counters SET value = value + 1
    WHERE name = 'entries'
    RETURNING value - 1 AS idx
)
INSERT INTO certledger_entries
    (idx, external_id, title, description, teacher, price_amount, price_currency, quantity, created_at)
SELECT seq.idx, $1, $2, $3, $4, $5, $6, $7, $8 FROM seq
RETURNING idx`

func (s *Store) AppendEntry(ctx context.Context, e *catalog.Entry) error {
	if e.Quantity > catalog.MaxQuantity {
		return certledger.ValidationError{Field: "quantity", Message: "exceeds catalog.MaxQuantity"}
	}

	var idx int64
	err := s.pg.NewRaw(appendEntrySQL,
		e.ExternalID.String(), e.Title, e.Description, e.Teacher,
		e.Price.Amount, e.Price.Currency, int64(e.Quantity), e.CreatedAt.UTC(),
	).Scan(ctx, &idx)
	if err != nil {
		return err
	}
	e.Index = uint64(idx)
	return nil
}

func (s *Store) GetEntry(ctx context.Context, index uint64) (*catalog.Entry, error) {
	m := new(entryModel)
	err := s.pg.NewSelect(m).
		Where("idx = $1", int64(index)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, certledger.ErrEntryNotFound
		}
		return nil, err
	}
	return fromEntryModel(m)
}

func (s *Store) ListEntries(ctx context.Context) ([]*catalog.Entry, error) {
	var models []entryModel
	if err := s.pg.NewSelect(&models).OrderExpr("idx ASC").Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*catalog.Entry, len(models))
	for i := range models {
		e, err := fromEntryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

func (s *Store) CountEntries(ctx context.Context) (uint64, error) {
	return s.count(ctx, "certledger_entries")
}

// ==================== Order Store ====================

// commitPurchaseSQL decrements stock and inserts the order in one statement.
// The counter update only fires when the stock update matched a row, so a
// rejected purchase never consumes an order ID.
const commitPurchaseSQL = `
WITH stock AS (
    UPDATE certledger_entries SET quantity = quantity - 1
    WHERE idx = $1 AND quantity > 0
    RETURNING idx, external_id
), seq AS (
    UPDATE certledger_counters SET value = value + 1
    WHERE name = 'orders' AND EXISTS (SELECT 1 FROM stock)
    RETURNING value - 1 AS id
)
INSERT INTO certledger_orders
    (id, entry_idx, external_id, customer, amount, amount_currency, receipt_id, ordered_at, status)
SELECT seq.id, stock.idx, stock.external_id, $2, $3, $4, $5, $6, $7 FROM stock, seq
RETURNING id`

func (s *Store) CommitPurchase(ctx context.Context, o *order.Order) error {
	var orderID int64
	err := s.pg.NewRaw(commitPurchaseSQL,
		int64(o.EntryIndex), o.Customer.String(), o.Amount.Amount, o.Amount.Currency,
		o.ReceiptID.String(), o.OrderedAt.UTC(), string(order.StatusPaid),
	).Scan(ctx, &orderID)
	if err != nil {
		if isNoRows(err) {
			return s.purchaseRejection(ctx, o.EntryIndex)
		}
		return err
	}

	e, err := s.GetEntry(ctx, o.EntryIndex)
	if err != nil {
		return err
	}
	o.ID = uint64(orderID)
	o.ExternalID = e.ExternalID
	o.Status = order.StatusPaid
	return nil
}

// purchaseRejection explains why the purchase statement inserted nothing.
func (s *Store) purchaseRejection(ctx context.Context, index uint64) error {
	var n int64
	err := s.pg.NewRaw(`SELECT COUNT(*) FROM certledger_entries WHERE idx = $1`, int64(index)).
		Scan(ctx, &n)
	if err != nil {
		return err
	}
	if n == 0 {
		return certledger.ErrEntryNotFound
	}
	return certledger.ErrOutOfStock
}

func (s *Store) GetOrder(ctx context.Context, orderID uint64) (*order.Order, error) {
	m := new(orderModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", int64(orderID)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, certledger.ErrOrderNotFound
		}
		return nil, err
	}
	return fromOrderModel(m)
}

func (s *Store) ListOrders(ctx context.Context) ([]*order.Order, error) {
	var models []orderModel
	if err := s.pg.NewSelect(&models).OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*order.Order, len(models))
	for i := range models {
		o, err := fromOrderModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = o
	}
	return result, nil
}

func (s *Store) CountOrders(ctx context.Context) (uint64, error) {
	return s.count(ctx, "certledger_orders")
}

func (s *Store) MarkDelivered(ctx context.Context, orderID uint64, at time.Time) (*order.Order, error) {
	res, err := s.pg.NewUpdate((*orderModel)(nil)).
		Set("status = $1", string(order.StatusDelivered)).
		Set("delivered_at = $2", at.UTC()).
		Where("id = $3", int64(orderID)).
		Where("status = $4", string(order.StatusPaid)).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, certledger.ErrInvalidState
	}
	return o, nil
}

// ==================== Owner ====================

func (s *Store) Owner(ctx context.Context) (types.Address, bool, error) {
	m := new(metaModel)
	err := s.pg.NewSelect(m).
		Where("key = $1", metaOwnerKey).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return types.Address{}, false, nil
		}
		return types.Address{}, false, err
	}
	owner, err := types.ParseAddress(m.Value)
	if err != nil {
		return types.Address{}, false, err
	}
	return owner, true, nil
}

// bindOwnerSQL returns the freshly inserted owner or, when one was already
// recorded, the existing value.
const bindOwnerSQL = `
WITH ins AS (
    INSERT INTO certledger_meta (key, value) VALUES ($1, $2)
    ON CONFLICT (key) DO NOTHING
    RETURNING value
)
SELECT value FROM ins
UNION ALL
SELECT value FROM certledger_meta WHERE key = $1
LIMIT 1`

func (s *Store) BindOwner(ctx context.Context, owner types.Address) error {
	var bound string
	if err := s.pg.NewRaw(bindOwnerSQL, metaOwnerKey, owner.String()).Scan(ctx, &bound); err != nil {
		return err
	}
	if bound != owner.String() {
		return certledger.ErrOwnerMismatch
	}
	return nil
}

// ==================== Nonces ====================

func (s *Store) ClaimNonce(ctx context.Context, from types.Address, nonce string) error {
	res, err := s.pg.NewRaw(`
INSERT INTO certledger_nonces (sender, nonce, claimed_at) VALUES ($1, $2, $3)
ON CONFLICT (sender, nonce) DO NOTHING`,
		from.String(), nonce, time.Now().UTC(),
	).Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return certledger.ErrNonceReused
	}
	return nil
}

// ==================== Helpers ====================

func (s *Store) count(ctx context.Context, table string) (uint64, error) {
	var n int64
	if err := s.pg.NewRaw("SELECT COUNT(*) FROM "+table).Scan(ctx, &n); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
