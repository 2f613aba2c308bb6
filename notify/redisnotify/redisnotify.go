// Package redisnotify publishes committed certledger events on a Redis
// pub/sub channel.
package redisnotify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/certledger/event"
	"github.com/xraph/certledger/notify"
	"github.com/xraph/certledger/order"
	"github.com/xraph/certledger/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin           = (*Notifier)(nil)
	_ plugin.OnEntryPurchased = (*Notifier)(nil)
	_ plugin.OnEntryDelivered = (*Notifier)(nil)
)

// DefaultChannel receives events when no channel is configured.
const DefaultChannel = "certledger:events"

// Publisher is the subset of *redis.Client the notifier uses.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd
}

// Notifier is a plugin that publishes one JSON message per purchase or delivery.
type Notifier struct {
	rdb     Publisher
	channel string
	logger  *slog.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithChannel sets the pub/sub channel.
func WithChannel(ch string) Option {
	return func(n *Notifier) {
		if ch != "" {
			n.channel = ch
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) { n.logger = l }
}

// New creates a Notifier publishing through rdb.
func New(rdb Publisher, opts ...Option) *Notifier {
	n := &Notifier{
		rdb:     rdb,
		channel: DefaultChannel,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Dial connects to addr and verifies the connection with PING.
func Dial(ctx context.Context, addr string) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redisnotify: ping %s: %w", addr, err)
	}
	return rdb, nil
}

// Name implements plugin.Plugin.
func (n *Notifier) Name() string { return "redis-notifier" }

// Channel returns the channel messages are published on.
func (n *Notifier) Channel() string { return n.channel }

// OnEntryPurchased implements plugin.OnEntryPurchased.
func (n *Notifier) OnEntryPurchased(ctx context.Context, ev *event.Event, o *order.Order) error {
	return n.publish(ctx, notify.NewMessage(ev, o))
}

// OnEntryDelivered implements plugin.OnEntryDelivered.
func (n *Notifier) OnEntryDelivered(ctx context.Context, ev *event.Event, o *order.Order) error {
	return n.publish(ctx, notify.NewMessage(ev, o))
}

func (n *Notifier) publish(ctx context.Context, msg notify.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := n.rdb.Publish(ctx, n.channel, raw).Err(); err != nil {
		n.logger.Warn("redisnotify: publish failed",
			"channel", n.channel,
			"kind", msg.Kind,
			"order_id", msg.OrderID,
			"error", err,
		)
		return fmt.Errorf("redisnotify: publish %s: %w", msg.Kind, err)
	}
	return nil
}
