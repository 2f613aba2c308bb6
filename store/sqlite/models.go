package sqlite

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/certledger/catalog"
	"github.com/xraph/certledger/id"
	"github.com/xraph/certledger/order"
	"github.com/xraph/certledger/types"
)

// Timestamps are stored as unix nanoseconds so ordering survives a round trip.

// ==================== Entry models ====================

type entryModel struct {
	grove.BaseModel `grove:"table:certledger_entries"`

	Idx           int64  `grove:"idx,pk"`
	ExternalID    string `grove:"external_id"`
	Title         string `grove:"title"`
	Description   string `grove:"description"`
	Teacher       string `grove:"teacher"`
	PriceAmount   int64  `grove:"price_amount"`
	PriceCurrency string `grove:"price_currency"`
	Quantity      int64  `grove:"quantity"`
	CreatedAt     int64  `grove:"created_at"`
}

func fromEntryModel(m *entryModel) (*catalog.Entry, error) {
	ext, err := catalog.ParseExternalID(m.ExternalID)
	if err != nil {
		return nil, err
	}
	return &catalog.Entry{
		Index:       uint64(m.Idx),
		ExternalID:  ext,
		Title:       m.Title,
		Description: m.Description,
		Teacher:     m.Teacher,
		Price:       types.Money{Amount: m.PriceAmount, Currency: m.PriceCurrency},
		Quantity:    uint64(m.Quantity),
		CreatedAt:   time.Unix(0, m.CreatedAt).UTC(),
	}, nil
}

// ==================== Order models ====================

type orderModel struct {
	grove.BaseModel `grove:"table:certledger_orders"`

	ID             int64  `grove:"id,pk"`
	EntryIdx       int64  `grove:"entry_idx"`
	ExternalID     string `grove:"external_id"`
	Customer       string `grove:"customer"`
	Amount         int64  `grove:"amount"`
	AmountCurrency string `grove:"amount_currency"`
	ReceiptID      string `grove:"receipt_id"`
	OrderedAt      int64  `grove:"ordered_at"`
	Status         string `grove:"status"`
	DeliveredAt    int64  `grove:"delivered_at"` // 0 until delivered
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
	o := &order.Order{
		ID:         uint64(m.ID),
		EntryIndex: uint64(m.EntryIdx),
		ExternalID: ext,
		Customer:   customer,
		Amount:     types.Money{Amount: m.Amount, Currency: m.AmountCurrency},
		ReceiptID:  receipt,
		OrderedAt:  time.Unix(0, m.OrderedAt).UTC(),
		Status:     order.Status(m.Status),
	}
	if m.DeliveredAt != 0 {
		t := time.Unix(0, m.DeliveredAt).UTC()
		o.DeliveredAt = &t
	}
	return o, nil
}

// ==================== Meta models ====================

type metaModel struct {
	grove.BaseModel `grove:"table:certledger_meta"`

	Key   string `grove:"key,pk"`
	Value string `grove:"value"`
}
