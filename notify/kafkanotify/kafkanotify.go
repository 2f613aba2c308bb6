// Package kafkanotify publishes committed certledger events to a Kafka topic.
package kafkanotify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

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
	_ plugin.OnShutdown       = (*Notifier)(nil)
)

// DefaultTopic receives events when no topic is configured.
const DefaultTopic = "certledger.events"

// writerBatchTimeout caps how long a partial batch waits before flushing.
// kafka-go defaults to one second, which every hook call would pay.
const writerBatchTimeout = 10 * time.Millisecond

// Writer is the subset of *kafka.Writer the notifier uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Notifier is a plugin that writes one Kafka message per purchase or
// delivery, keyed by the certificate's external ID.
type Notifier struct {
	writer Writer
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) { n.logger = l }
}

// New creates a Notifier writing through w.
func New(w Writer, opts ...Option) *Notifier {
	n := &Notifier{
		writer: w,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NewWriter builds a hash-balanced writer for a comma-separated broker list.
func NewWriter(brokersCSV, topic string) (*kafka.Writer, error) {
	var brokers []string
	for _, b := range strings.Split(brokersCSV, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafkanotify: no brokers in %q", brokersCSV)
	}
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: writerBatchTimeout,
	}, nil
}

// Name implements plugin.Plugin.
func (n *Notifier) Name() string { return "kafka-notifier" }

// OnEntryPurchased implements plugin.OnEntryPurchased.
func (n *Notifier) OnEntryPurchased(ctx context.Context, ev *event.Event, o *order.Order) error {
	return n.publish(ctx, notify.NewMessage(ev, o))
}

// OnEntryDelivered implements plugin.OnEntryDelivered.
func (n *Notifier) OnEntryDelivered(ctx context.Context, ev *event.Event, o *order.Order) error {
	return n.publish(ctx, notify.NewMessage(ev, o))
}

// OnShutdown implements plugin.OnShutdown.
func (n *Notifier) OnShutdown(_ context.Context) error {
	return n.writer.Close()
}

func (n *Notifier) publish(ctx context.Context, msg notify.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Key()),
		Value: data,
		Time:  n.now(),
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(msg.Kind)},
		},
	})
	if err != nil {
		n.logger.Warn("kafkanotify: write failed",
			"kind", msg.Kind,
			"order_id", msg.OrderID,
			"error", err,
		)
		return fmt.Errorf("kafkanotify: write %s: %w", msg.Kind, err)
	}
	return nil
}
