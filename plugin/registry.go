package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/certledger/catalog"
	"github.com/xraph/certledger/event"
	"github.com/xraph/certledger/order"
	"github.com/xraph/certledger/payment"
	"github.com/xraph/certledger/types"
)

// DefaultTimeout bounds a single plugin hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// Hook implementations are discovered once at registration time.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit             []OnInit
	onShutdown         []OnShutdown
	onEntryCreated     []OnEntryCreated
	onEntryPurchased   []OnEntryPurchased
	onEntryDelivered   []OnEntryDelivered
	onPurchaseRejected []OnPurchaseRejected
	onTransferRejected []OnTransferRejected
	onPaymentReversed  []OnPaymentReversed
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook call timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnEntryCreated); ok {
		r.onEntryCreated = append(r.onEntryCreated, v)
	}
	if v, ok := p.(OnEntryPurchased); ok {
		r.onEntryPurchased = append(r.onEntryPurchased, v)
	}
	if v, ok := p.(OnEntryDelivered); ok {
		r.onEntryDelivered = append(r.onEntryDelivered, v)
	}
	if v, ok := p.(OnPurchaseRejected); ok {
		r.onPurchaseRejected = append(r.onPurchaseRejected, v)
	}
	if v, ok := p.(OnTransferRejected); ok {
		r.onTransferRejected = append(r.onTransferRejected, v)
	}
	if v, ok := p.(OnPaymentReversed); ok {
		r.onPaymentReversed = append(r.onPaymentReversed, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeOf((*OnInit)(nil)).Elem()},
	{"OnShutdown", reflect.TypeOf((*OnShutdown)(nil)).Elem()},
	{"OnEntryCreated", reflect.TypeOf((*OnEntryCreated)(nil)).Elem()},
	{"OnEntryPurchased", reflect.TypeOf((*OnEntryPurchased)(nil)).Elem()},
	{"OnEntryDelivered", reflect.TypeOf((*OnEntryDelivered)(nil)).Elem()},
	{"OnPurchaseRejected", reflect.TypeOf((*OnPurchaseRejected)(nil)).Elem()},
	{"OnTransferRejected", reflect.TypeOf((*OnTransferRejected)(nil)).Elem()},
	{"OnPaymentReversed", reflect.TypeOf((*OnPaymentReversed)(nil)).Elem()},
}

func implementedInterfaces(p Plugin) []string {
	var names []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, l interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnInit", p, func() error { return p.OnInit(ctx, l) })
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnShutdown", p, func() error { return p.OnShutdown(ctx) })
	}
}

// EmitEntryCreated calls OnEntryCreated for all plugins that implement it.
func (r *Registry) EmitEntryCreated(ctx context.Context, e *catalog.Entry) {
	r.mu.RLock()
	plugins := r.onEntryCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnEntryCreated", p, func() error { return p.OnEntryCreated(ctx, e) })
	}
}

// EmitEntryPurchased calls OnEntryPurchased for all plugins that implement it.
func (r *Registry) EmitEntryPurchased(ctx context.Context, ev *event.Event, o *order.Order) {
	r.mu.RLock()
	plugins := r.onEntryPurchased
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnEntryPurchased", p, func() error { return p.OnEntryPurchased(ctx, ev, o) })
	}
}

// EmitEntryDelivered calls OnEntryDelivered for all plugins that implement it.
func (r *Registry) EmitEntryDelivered(ctx context.Context, ev *event.Event, o *order.Order) {
	r.mu.RLock()
	plugins := r.onEntryDelivered
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnEntryDelivered", p, func() error { return p.OnEntryDelivered(ctx, ev, o) })
	}
}

// EmitPurchaseRejected calls OnPurchaseRejected for all plugins that implement it.
func (r *Registry) EmitPurchaseRejected(ctx context.Context, customer types.Address, index uint64, cause error) {
	r.mu.RLock()
	plugins := r.onPurchaseRejected
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnPurchaseRejected", p, func() error {
			return p.OnPurchaseRejected(ctx, customer, index, cause)
		})
	}
}

// EmitTransferRejected calls OnTransferRejected for all plugins that implement it.
func (r *Registry) EmitTransferRejected(ctx context.Context, from types.Address, value types.Money) {
	r.mu.RLock()
	plugins := r.onTransferRejected
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnTransferRejected", p, func() error { return p.OnTransferRejected(ctx, from, value) })
	}
}

// EmitPaymentReversed calls OnPaymentReversed for all plugins that implement it.
func (r *Registry) EmitPaymentReversed(ctx context.Context, receipt *payment.Receipt, cause error) {
	r.mu.RLock()
	plugins := r.onPaymentReversed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnPaymentReversed", p, func() error { return p.OnPaymentReversed(ctx, receipt, cause) })
	}
}

func (r *Registry) dispatch(ctx context.Context, hook string, p Plugin, fn func() error) {
	if err := r.callWithTimeout(ctx, p.Name(), fn); err != nil {
		r.logger.Warn("plugin "+hook+" failed",
			"plugin", p.Name(),
			"error", err,
		)
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins must never block a ledger mutation indefinitely.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(r.timeout):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
