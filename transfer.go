package certledger

import (
	"context"

	"github.com/xraph/certledger/types"
)

// Receive handles value sent to the ledger outside of Purchase. It always
// fails: funds only enter through Purchase, and nothing is recorded.
func (l *Ledger) Receive(ctx context.Context, from types.Address, value types.Money, data []byte) error {
	l.logger.Warn("direct transfer rejected",
		"from", from.String(),
		"value", value.String(),
		"data_len", len(data),
	)
	l.plugins.EmitTransferRejected(ctx, from, value)
	return ErrDirectTransferRejected
}
