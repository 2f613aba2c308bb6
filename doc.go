// Package certledger provides a single-owner certificate catalog and order
// ledger for Go applications.
//
// Certledger is designed as a library, not a service. Import it into your
// application, or run the bundled certledgerd daemon. It provides:
//
//   - An append-only catalog of purchasable certificates with fixed prices
//   - Exact-payment purchases with atomic stock decrement
//   - A paid to delivered order lifecycle confirmed by the owner
//   - Ordered EntryPurchased and EntryDelivered notifications
//   - Signed transaction envelopes with ed25519 caller authentication
//   - Memory, SQLite, PostgreSQL, and MongoDB stores
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/certledger"
//	    "github.com/xraph/certledger/store/memory"
//	)
//
//	owner := certledger.Address{0x01}
//	l := certledger.New(memory.New(), owner)
//
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
// # Core Concepts
//
// The owner is fixed when the ledger is constructed and bound to the store
// on Start. Only the owner may create entries and confirm deliveries:
//
//	idx, err := l.CreateEntry(ctx, owner, certledger.Draft{
//	    ExternalID: certledger.HashExternalID("go-fundamentals"),
//	    Title:      "Go Fundamentals",
//	    Price:      certledger.USD(4900),
//	    Quantity:   100,
//	})
//
// Anyone may purchase. The payment must equal the entry price exactly:
//
//	orderID, err := l.Purchase(ctx, customer, idx, certledger.USD(4900))
//	err = l.MarkDelivered(ctx, owner, orderID)
//
// Entry indexes and order IDs are dense, zero-based, and independent.
// Value sent outside Purchase is refused with ErrDirectTransferRejected.
//
// # Identifiers
//
// Catalog entries and orders use their dense integer positions. Events,
// payment receipts, and signed transactions use TypeIDs:
//
//	evt_01h2xcejqtf2nbrexx3vqjhp41   // Event ID
//	rcpt_01h2xcejqtf2nbrexx3vqjhp41  // Receipt ID
//	tx_01h455vb4pex5vsknk084sn02q    // Transaction ID
//
// All monetary values use integer arithmetic in the smallest currency unit
// (cents for USD, pence for GBP, gwei for ETH).
package certledger
