package audithook

// Action constants for audit events.
const (
	// Catalog actions
	ActionEntryCreated = "entry.created"

	// Order actions
	ActionEntryPurchased   = "entry.purchased"
	ActionEntryDelivered   = "entry.delivered"
	ActionPurchaseRejected = "purchase.rejected"

	// Payment actions
	ActionTransferRejected = "transfer.rejected"
	ActionPaymentReversed  = "payment.reversed"
)

// Resource constants for audit events.
const (
	ResourceEntry    = "entry"
	ResourceOrder    = "order"
	ResourceTransfer = "transfer"
	ResourceReceipt  = "receipt"
)

// Category constants for audit events.
const (
	CategoryCatalog = "catalog"
	CategoryOrder   = "order"
	CategoryPayment = "payment"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
