// Package mongo implements store.Store on MongoDB via the grove ORM.
//
// Mutations spanning more than one document run inside a multi-document
// transaction, so the deployment must be a replica set or sharded cluster.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/certledger"
	"github.com/xraph/certledger/catalog"
	"github.com/xraph/certledger/order"
	ledgerstore "github.com/xraph/certledger/store"
	"github.com/xraph/certledger/types"
)

// Collection name constants.
const (
	colEntries  = "certledger_entries"
	colOrders   = "certledger_orders"
	colCounters = "certledger_counters"
	colMeta     = "certledger_meta"
	colNonces   = "certledger_nonces"
)

const metaOwnerKey = "owner"

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all certledger collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("certledger/mongo: migrate %s indexes: %w", col, err)
		}
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

func (s *Store) AppendEntry(ctx context.Context, e *catalog.Entry) error {
	if e.Quantity > catalog.MaxQuantity {
		return certledger.ValidationError{Field: "quantity", Message: "exceeds catalog.MaxQuantity"}
	}
	return s.inTx(ctx, func(ctx context.Context) error {
		idx, err := s.nextSeq(ctx, colEntries)
		if err != nil {
			return err
		}
		if _, err := s.mdb.Collection(colEntries).InsertOne(ctx, toEntryModel(e, idx)); err != nil {
			return fmt.Errorf("certledger/mongo: append entry: %w", err)
		}
		e.Index = uint64(idx)
		return nil
	})
}

func (s *Store) GetEntry(ctx context.Context, index uint64) (*catalog.Entry, error) {
	var m entryModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": int64(index)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, certledger.ErrEntryNotFound
		}
		return nil, fmt.Errorf("certledger/mongo: get entry: %w", err)
	}
	return fromEntryModel(&m)
}

func (s *Store) ListEntries(ctx context.Context) ([]*catalog.Entry, error) {
	var models []entryModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("certledger/mongo: list entries: %w", err)
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
	n, err := s.mdb.Collection(colEntries).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("certledger/mongo: count entries: %w", err)
	}
	return uint64(n), nil
}

// ==================== Order Store ====================

func (s *Store) CommitPurchase(ctx context.Context, o *order.Order) error {
	var ext catalog.ExternalID
	err := s.inTx(ctx, func(ctx context.Context) error {
		var e entryModel
		err := s.mdb.Collection(colEntries).FindOneAndUpdate(ctx,
			bson.M{"_id": int64(o.EntryIndex), "quantity": bson.M{"$gt": 0}},
			bson.M{"$inc": bson.M{"quantity": -1}},
		).Decode(&e)
		if err != nil {
			if isNoDocuments(err) {
				return s.purchaseRejection(ctx, o.EntryIndex)
			}
			return fmt.Errorf("certledger/mongo: decrement stock: %w", err)
		}
		if ext, err = catalog.ParseExternalID(e.ExternalID); err != nil {
			return err
		}

		orderID, err := s.nextSeq(ctx, colOrders)
		if err != nil {
			return err
		}
		if _, err := s.mdb.Collection(colOrders).InsertOne(ctx, toOrderModel(o, orderID, ext)); err != nil {
			return fmt.Errorf("certledger/mongo: insert order: %w", err)
		}
		o.ID = uint64(orderID)
		return nil
	})
	if err != nil {
		return err
	}
	o.ExternalID = ext
	o.Status = order.StatusPaid
	return nil
}

// purchaseRejection explains why the stock decrement matched nothing.
func (s *Store) purchaseRejection(ctx context.Context, index uint64) error {
	n, err := s.mdb.Collection(colEntries).CountDocuments(ctx, bson.M{"_id": int64(index)})
	if err != nil {
		return fmt.Errorf("certledger/mongo: check entry: %w", err)
	}
	if n == 0 {
		return certledger.ErrEntryNotFound
	}
	return certledger.ErrOutOfStock
}

func (s *Store) GetOrder(ctx context.Context, orderID uint64) (*order.Order, error) {
	var m orderModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": int64(orderID)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, certledger.ErrOrderNotFound
		}
		return nil, fmt.Errorf("certledger/mongo: get order: %w", err)
	}
	return fromOrderModel(&m)
}

func (s *Store) ListOrders(ctx context.Context) ([]*order.Order, error) {
	var models []orderModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("certledger/mongo: list orders: %w", err)
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
	n, err := s.mdb.Collection(colOrders).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("certledger/mongo: count orders: %w", err)
	}
	return uint64(n), nil
}

func (s *Store) MarkDelivered(ctx context.Context, orderID uint64, at time.Time) (*order.Order, error) {
	res, err := s.mdb.NewUpdate((*orderModel)(nil)).
		Filter(bson.M{"_id": int64(orderID), "status": string(order.StatusPaid)}).
		Set("status", string(order.StatusDelivered)).
		Set("delivered_at", at.UTC()).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("certledger/mongo: mark delivered: %w", err)
	}

	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount() == 0 {
		return nil, certledger.ErrInvalidState
	}
	return o, nil
}

// ==================== Owner ====================

func (s *Store) Owner(ctx context.Context) (types.Address, bool, error) {
	var m metaModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": metaOwnerKey}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return types.Address{}, false, nil
		}
		return types.Address{}, false, fmt.Errorf("certledger/mongo: get owner: %w", err)
	}
	owner, err := types.ParseAddress(m.Value)
	if err != nil {
		return types.Address{}, false, err
	}
	return owner, true, nil
}

func (s *Store) BindOwner(ctx context.Context, owner types.Address) error {
	var m metaModel
	err := s.mdb.Collection(colMeta).FindOneAndUpdate(ctx,
		bson.M{"_id": metaOwnerKey},
		bson.M{"$setOnInsert": bson.M{"value": owner.String()}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&m)
	if err != nil {
		return fmt.Errorf("certledger/mongo: bind owner: %w", err)
	}
	if m.Value != owner.String() {
		return certledger.ErrOwnerMismatch
	}
	return nil
}

// ==================== Nonces ====================

func (s *Store) ClaimNonce(ctx context.Context, from types.Address, nonce string) error {
	_, err := s.mdb.Collection(colNonces).InsertOne(ctx, &nonceModel{
		Key:       nonceKey{Sender: from.String(), Nonce: nonce},
		ClaimedAt: time.Now().UTC(),
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return certledger.ErrNonceReused
		}
		return fmt.Errorf("certledger/mongo: claim nonce: %w", err)
	}
	return nil
}

// ==================== Helpers ====================

// nextSeq returns the next zero-based value of the named counter.
func (s *Store) nextSeq(ctx context.Context, name string) (int64, error) {
	var c counterModel
	err := s.mdb.Collection(colCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"value": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&c)
	if err != nil {
		return 0, fmt.Errorf("certledger/mongo: next %s id: %w", name, err)
	}
	return c.Value - 1, nil
}

// inTx runs fn in a multi-document transaction. The driver retries fn on
// transient write conflicts.
func (s *Store) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := s.mdb.Collection(colCounters).Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("certledger/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all certledger collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colEntries: {
			{Keys: bson.D{{Key: "external_id", Value: 1}}},
		},
		colOrders: {
			{Keys: bson.D{{Key: "customer", Value: 1}, {Key: "ordered_at", Value: 1}}},
			{Keys: bson.D{{Key: "entry_idx", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
	}
}
