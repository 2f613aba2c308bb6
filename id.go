package certledger

import "github.com/xraph/certledger/id"

// ID is the identifier type for events, receipts, and signed transactions.
type ID = id.ID

// Prefix identifies the record type encoded in a TypeID.
type Prefix = id.Prefix
