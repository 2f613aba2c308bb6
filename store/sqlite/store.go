// Package sqlite implements store.Store on a single SQLite file via the
// grove ORM and its pure-Go sqlitedriver.
//
// Purchases run in one transaction. Entry indexes and order IDs are the row
// counts at insert time, which stay dense because rows are never deleted.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/certledger"
	"github.com/xraph/certledger/catalog"
	"github.com/xraph/certledger/order"
	ledgerstore "github.com/xraph/certledger/store"
	"github.com/xraph/certledger/types"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

const (
	maxBusyTimeoutMs = 5000
	metaOwnerKey     = "owner"
)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// Open opens (creating if needed) the database file at path with a single
// connection, so writers never contend. Call Migrate before use.
func Open(ctx context.Context, path string) (*Store, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("certledger/sqlite: resolve db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("certledger/sqlite: create db directory: %w", err)
	}

	sdb := sqlitedriver.New()
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", filepath.Clean(absPath), maxBusyTimeoutMs)
	if err := sdb.Open(ctx, dsn, driver.WithPoolSize(1)); err != nil {
		return nil, fmt.Errorf("certledger/sqlite: open: %w", err)
	}
	db, err := grove.Open(sdb)
	if err != nil {
		_ = sdb.Close()
		return nil, fmt.Errorf("certledger/sqlite: open: %w", err)
	}
	return New(db), nil
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	orch := migrate.NewOrchestrator(sqlitemigrate.New(s.sdb), Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("certledger/sqlite: migration failed: %w", err)
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
INSERT INTO certledger_entries
    (idx, external_id, title, description, teacher, price_amount, price_currency, quantity, created_at)
SELECT COUNT(*), ?, ?, ?, ?, ?, ?, ?, ? FROM certledger_entries
RETURNING idx`

func (s *Store) AppendEntry(ctx context.Context, e *catalog.Entry) error {
	if e.Quantity > catalog.MaxQuantity {
		return certledger.ValidationError{Field: "quantity", Message: "exceeds catalog.MaxQuantity"}
	}

	var idx int64
	err := s.sdb.NewRaw(appendEntrySQL,
		e.ExternalID.String(), e.Title, e.Description, e.Teacher,
		e.Price.Amount, e.Price.Currency, int64(e.Quantity), e.CreatedAt.UnixNano(),
	).Scan(ctx, &idx)
	if err != nil {
		return err
	}
	e.Index = uint64(idx)
	return nil
}

func (s *Store) GetEntry(ctx context.Context, index uint64) (*catalog.Entry, error) {
	m := new(entryModel)
	err := s.sdb.NewSelect(m).
		Where("idx = ?", int64(index)).
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
	if err := s.sdb.NewSelect(&models).OrderExpr("idx ASC").Scan(ctx); err != nil {
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

func (s *Store) CommitPurchase(ctx context.Context, o *order.Order) error {
	return s.inTx(ctx, func(tx *sqlitedriver.SqliteTx) error {
		var (
			quantity int64
			extRaw   string
		)
		err := tx.NewRaw(`SELECT quantity, external_id FROM certledger_entries WHERE idx = ?`,
			int64(o.EntryIndex)).Scan(ctx, &quantity, &extRaw)
		if err != nil {
			if isNoRows(err) {
				return certledger.ErrEntryNotFound
			}
			return err
		}
		if quantity == 0 {
			return certledger.ErrOutOfStock
		}
		ext, err := catalog.ParseExternalID(extRaw)
		if err != nil {
			return err
		}

		if _, err := tx.NewRaw(
			`UPDATE certledger_entries SET quantity = quantity - 1 WHERE idx = ? AND quantity > 0`,
			int64(o.EntryIndex),
		).Exec(ctx); err != nil {
			return err
		}

		var orderID int64
		if err := tx.NewRaw(`
INSERT INTO certledger_orders
    (id, entry_idx, external_id, customer, amount, amount_currency, receipt_id, ordered_at, status)
SELECT COUNT(*), ?, ?, ?, ?, ?, ?, ?, ? FROM certledger_orders
RETURNING id`,
			int64(o.EntryIndex), ext.String(), o.Customer.String(),
			o.Amount.Amount, o.Amount.Currency, o.ReceiptID.String(),
			o.OrderedAt.UnixNano(), string(order.StatusPaid),
		).Scan(ctx, &orderID); err != nil {
			return err
		}

		o.ID = uint64(orderID)
		o.ExternalID = ext
		o.Status = order.StatusPaid
		return nil
	})
}

func (s *Store) GetOrder(ctx context.Context, orderID uint64) (*order.Order, error) {
	m := new(orderModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", int64(orderID)).
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
	if err := s.sdb.NewSelect(&models).OrderExpr("id ASC").Scan(ctx); err != nil {
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

// MarkDelivered flips a paid order in one conditional update, so a second
// confirmation matches no row.
func (s *Store) MarkDelivered(ctx context.Context, orderID uint64, at time.Time) (*order.Order, error) {
	res, err := s.sdb.NewUpdate((*orderModel)(nil)).
		Set("status = ?", string(order.StatusDelivered)).
		Set("delivered_at = ?", at.UnixNano()).
		Where("id = ?", int64(orderID)).
		Where("status = ?", string(order.StatusPaid)).
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
	err := s.sdb.NewSelect(m).
		Where("key = ?", metaOwnerKey).
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

func (s *Store) BindOwner(ctx context.Context, owner types.Address) error {
	return s.inTx(ctx, func(tx *sqlitedriver.SqliteTx) error {
		if _, err := tx.NewRaw(
			`INSERT INTO certledger_meta (key, value) VALUES (?, ?) ON CONFLICT (key) DO NOTHING`,
			metaOwnerKey, owner.String(),
		).Exec(ctx); err != nil {
			return err
		}
		var bound string
		if err := tx.NewRaw(`SELECT value FROM certledger_meta WHERE key = ?`, metaOwnerKey).
			Scan(ctx, &bound); err != nil {
			return err
		}
		if bound != owner.String() {
			return certledger.ErrOwnerMismatch
		}
		return nil
	})
}

// ==================== Nonces ====================

func (s *Store) ClaimNonce(ctx context.Context, from types.Address, nonce string) error {
	res, err := s.sdb.NewRaw(
		`INSERT INTO certledger_nonces (sender, nonce, claimed_at) VALUES (?, ?, ?)
ON CONFLICT (sender, nonce) DO NOTHING`,
		from.String(), nonce, time.Now().UnixNano(),
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

// inTx runs fn in a transaction and commits it when fn succeeds.
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlitedriver.SqliteTx) error) error {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("certledger/sqlite: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", certledger.ErrTransactionFailed, err)
	}
	return nil
}

func (s *Store) count(ctx context.Context, table string) (uint64, error) {
	var n int64
	if err := s.sdb.NewRaw("SELECT COUNT(*) FROM "+table).Scan(ctx, &n); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
