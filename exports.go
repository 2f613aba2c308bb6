package certledger

import (
	"github.com/xraph/certledger/catalog"
	"github.com/xraph/certledger/types"
)

// Re-export common types so callers rarely need to import the types package.

// Money is re-exported from types package.
type Money = types.Money

// Address is re-exported from types package.
type Address = types.Address

// Draft is re-exported from catalog package.
type Draft = catalog.Draft

// Re-export Money constructors
var (
	USD  = types.USD
	EUR  = types.EUR
	GBP  = types.GBP
	ETH  = types.ETH
	Zero = types.Zero
)

// Re-export identifier helpers
var (
	ParseAddress   = types.ParseAddress
	HashExternalID = catalog.HashExternalID
)
