package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/certledger/catalog"
	"github.com/xraph/certledger/id"
	"github.com/xraph/certledger/order"
	"github.com/xraph/certledger/types"
)

// ==================== Entry models ====================

type entryModel struct {
	grove.BaseModel `grove:"table:certledger_entries"`

	Index       int64      `grove:"idx,pk"      bson:"_id"`
	ExternalID  string     `grove:"external_id" bson:"external_id"`
	Title       string     `grove:"title"       bson:"title"`
	Description string     `grove:"description" bson:"description"`
	Teacher     string     `grove:"teacher"     bson:"teacher"`
	Price       moneyModel `grove:"price"       bson:"price"`
	Quantity    int64      `grove:"quantity"    bson:"quantity"`
	CreatedAt   time.Time  `grove:"created_at"  bson:"created_at"`
}

type moneyModel struct {
	Amount   int64  `bson:"amount"`
	Currency string `bson:"currency"`
}

func toMoneyModel(m types.Money) moneyModel {
	return moneyModel{Amount: m.Amount, Currency: m.Currency}
}

func (m moneyModel) money() types.Money {
	return types.Money{Amount: m.Amount, Currency: m.Currency}
}

func toEntryModel(e *catalog.Entry, idx int64) *entryModel {
	return &entryModel{
		Index:       idx,
		ExternalID:  e.ExternalID.String(),
		Title:       e.Title,
		Description: e.Description,
		Teacher:     e.Teacher,
		Price:       toMoneyModel(e.Price),
		Quantity:    int64(e.Quantity),
		CreatedAt:   e.CreatedAt.UTC(),
	}
}

func fromEntryModel(m *entryModel) (*catalog.Entry, error) {
	ext, err := catalog.ParseExternalID(m.ExternalID)
	if err != nil {
		return nil, err
	}
	return &catalog.Entry{
		Index:       uint64(m.Index),
		ExternalID:  ext,
		Title:       m.Title,
		Description: m.Description,
		Teacher:     m.Teacher,
		Price:       m.Price.money(),
		Quantity:    uint64(m.Quantity),
		CreatedAt:   m.CreatedAt,
	}, nil
}

// ==================== Order models ====================

type orderModel struct {
	grove.BaseModel `grove:"table:certledger_orders"`

	ID          int64      `grove:"id,pk"        bson:"_id"`
	EntryIndex  int64      `grove:"entry_idx"    bson:"entry_idx"`
	ExternalID  string     `grove:"external_id"  bson:"external_id"`
	Customer    string     `grove:"customer"     bson:"customer"`
	Amount      moneyModel `grove:"amount"       bson:"amount"`
	ReceiptID   string     `grove:"receipt_id"   bson:"receipt_id,omitempty"`
	OrderedAt   time.Time  `grove:"ordered_at"   bson:"ordered_at"`
	Status      string     `grove:"status"       bson:"status"`
	DeliveredAt *time.Time `grove:"delivered_at" bson:"delivered_at,omitempty"`
}

func toOrderModel(o *order.Order, orderID int64, ext catalog.ExternalID) *orderModel {
	return &orderModel{
		ID:         orderID,
		EntryIndex: int64(o.EntryIndex),
		ExternalID: ext.String(),
		Customer:   o.Customer.String(),
		Amount:     toMoneyModel(o.Amount),
		ReceiptID:  o.ReceiptID.String(),
		OrderedAt:  o.OrderedAt.UTC(),
		Status:     string(order.StatusPaid),
	}
}

func fromOrderModel(m *orderModel) (*order.Order, error) {
	ext, err := catalog.ParseExternalID(m.ExternalID)
	if err != nil {
		return nil, err
	}
	customer, err := types.ParseAddress(m.Customer)
	if err != nil {
		return nil, err
	}
	var receipt id.ID
	if m.ReceiptID != "" {
		if receipt, err = id.ParseReceiptID(m.ReceiptID); err != nil {
			return nil, err
		}
	}
	return &order.Order{
		ID:          uint64(m.ID),
		EntryIndex:  uint64(m.EntryIndex),
		ExternalID:  ext,
		Customer:    customer,
		Amount:      m.Amount.money(),
		ReceiptID:   receipt,
		OrderedAt:   m.OrderedAt,
		Status:      order.Status(m.Status),
		DeliveredAt: m.DeliveredAt,
	}, nil
}

// ==================== Counter and meta models ====================

type counterModel struct {
	Name  string `bson:"_id"`
	Value int64  `bson:"value"`
}

type metaModel struct {
	grove.BaseModel `grove:"table:certledger_meta"`

	Key   string `grove:"key,pk" bson:"_id"`
	Value string `grove:"value"  bson:"value"`
}

// nonceKey is the composite _id of a claimed nonce.
type nonceKey struct {
	Sender string `bson:"sender"`
	Nonce  string `bson:"nonce"`
}

type nonceModel struct {
	grove.BaseModel `grove:"table:certledger_nonces"`

	Key       nonceKey  `grove:"id,pk"      bson:"_id"`
	ClaimedAt time.Time `grove:"claimed_at" bson:"claimed_at"`
}
