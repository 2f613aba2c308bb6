package tx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/certledger"
	"github.com/xraph/certledger/catalog"
	"github.com/xraph/certledger/id"
	"github.com/xraph/certledger/types"
)

// ErrNonceReused is returned when an envelope's nonce was already accepted
// from the same sender.
var ErrNonceReused = certledger.ErrNonceReused

// Ledger is the subset of *certledger.Ledger the dispatcher drives.
type Ledger interface {
	CreateEntry(ctx context.Context, caller types.Address, d catalog.Draft) (uint64, error)
	Purchase(ctx context.Context, caller types.Address, index uint64, paid types.Money) (uint64, error)
	MarkDelivered(ctx context.Context, caller types.Address, orderID uint64) error
	Receive(ctx context.Context, from types.Address, value types.Money, data []byte) error
	ClaimNonce(ctx context.Context, from types.Address, nonce string) error
}

var _ Ledger = (*certledger.Ledger)(nil)

// Result reports what a dispatched envelope did.
type Result struct {
	TxID    id.TransactionID `json:"tx_id"`
	Method  Method           `json:"method"`
	Index   *uint64          `json:"index,omitempty"`
	OrderID *uint64          `json:"order_id,omitempty"`
	NoOp    bool             `json:"noop,omitempty"`
}

// Dispatcher routes envelopes to ledger operations.
type Dispatcher struct {
	ledger  Ledger
	lenient bool
	logger  *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLenientFallback makes an envelope naming an unknown method with no
// value attached succeed as a no-op instead of failing with
// certledger.ErrUnknownMethod.
func WithLenientFallback() Option {
	return func(d *Dispatcher) { d.lenient = true }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// NewDispatcher creates a dispatcher over l.
func NewDispatcher(l Ledger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		ledger: l,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DispatchSigned verifies s and dispatches its envelope.
func (d *Dispatcher) DispatchSigned(ctx context.Context, s *Signed) (*Result, error) {
	env, err := s.Open()
	if err != nil {
		return nil, err
	}
	return d.Dispatch(ctx, env)
}

// Dispatch runs env against the ledger. The caller is env.From; callers that
// accept envelopes from untrusted sources must use DispatchSigned.
//
// A recognised method is validated first, then its nonce is claimed in the
// store, then the operation runs. The nonce stays consumed even if the
// operation is rejected. Envelopes that reach the fallback change no state
// and claim no nonce.
func (d *Dispatcher) Dispatch(ctx context.Context, env *Envelope) (*Result, error) {
	if env.ID.IsNil() {
		env.ID = id.NewTransactionID()
	}
	res := &Result{TxID: env.ID, Method: env.Method}

	run, err := d.prepare(env, res)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return d.fallback(ctx, env, res)
	}

	if err := d.ledger.ClaimNonce(ctx, env.From, env.Nonce); err != nil {
		if errors.Is(err, certledger.ErrNonceReused) {
			return nil, fmt.Errorf("%w: %s", err, env.Nonce)
		}
		return nil, err
	}
	if err := run(ctx); err != nil {
		return nil, err
	}

	d.logger.Debug("tx dispatched",
		"tx_id", env.ID.String(),
		"method", string(env.Method),
		"from", env.From.String(),
	)
	return res, nil
}

// prepare decodes env for a recognised method and returns the call that
// executes it. It returns a nil call for methods handled by fallback.
func (d *Dispatcher) prepare(env *Envelope, res *Result) (func(context.Context) error, error) {
	switch env.Method {
	case MethodCreateEntry:
		if env.HasValue() {
			return nil, certledger.ValidationError{Field: "value", Message: "createEntry does not accept value"}
		}
		var args CreateEntryArgs
		if err := env.decodeArgs(&args); err != nil {
			return nil, err
		}
		if err := env.requireNonce(); err != nil {
			return nil, err
		}
		return func(ctx context.Context) error {
			index, err := d.ledger.CreateEntry(ctx, env.From, args)
			if err != nil {
				return err
			}
			res.Index = &index
			return nil
		}, nil

	case MethodPurchase:
		var args PurchaseArgs
		if err := env.decodeArgs(&args); err != nil {
			return nil, err
		}
		if err := env.requireNonce(); err != nil {
			return nil, err
		}
		return func(ctx context.Context) error {
			orderID, err := d.ledger.Purchase(ctx, env.From, args.Index, env.payment())
			if err != nil {
				return err
			}
			res.Index = &args.Index
			res.OrderID = &orderID
			return nil
		}, nil

	case MethodMarkDelivered:
		if env.HasValue() {
			return nil, certledger.ValidationError{Field: "value", Message: "markDelivered does not accept value"}
		}
		var args MarkDeliveredArgs
		if err := env.decodeArgs(&args); err != nil {
			return nil, err
		}
		if err := env.requireNonce(); err != nil {
			return nil, err
		}
		return func(ctx context.Context) error {
			if err := d.ledger.MarkDelivered(ctx, env.From, args.OrderID); err != nil {
				return err
			}
			res.OrderID = &args.OrderID
			return nil
		}, nil
	}
	return nil, nil
}

// fallback handles plain transfers and unknown methods.
func (d *Dispatcher) fallback(ctx context.Context, env *Envelope, res *Result) (*Result, error) {
	if env.HasValue() {
		return nil, d.ledger.Receive(ctx, env.From, *env.Value, env.Args)
	}
	if !d.lenient {
		return nil, fmt.Errorf("%w: %q", certledger.ErrUnknownMethod, env.Method)
	}

	d.logger.Info("tx fallback no-op",
		"tx_id", env.ID.String(),
		"method", string(env.Method),
		"from", env.From.String(),
	)
	res.NoOp = true
	return res, nil
}
