package kafkanotify_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/xraph/certledger"
	"github.com/xraph/certledger/catalog"
	"github.com/xraph/certledger/event"
	"github.com/xraph/certledger/notify"
	"github.com/xraph/certledger/notify/kafkanotify"
	"github.com/xraph/certledger/store/memory"
	"github.com/xraph/certledger/types"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestPublishesPurchaseAndDelivery(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := &fakeWriter{}

	owner, buyer := types.Address{0x01}, types.Address{0x02}
	l := certledger.New(memory.New(), owner,
		certledger.WithLogger(logger),
		certledger.WithPlugin(kafkanotify.New(w, kafkanotify.WithLogger(logger))),
	)
	if err := l.Start(ctx); err != nil {
		t.Fatal(err)
	}

	ext := catalog.HashExternalID("kafka-course")
	index, err := l.CreateEntry(ctx, owner, catalog.Draft{ExternalID: ext, Price: types.USD(1500), Quantity: 1})
	if err != nil {
		t.Fatal(err)
	}
	orderID, err := l.Purchase(ctx, buyer, index, types.USD(1500))
	if err != nil {
		t.Fatal(err)
	}
	if err := l.MarkDelivered(ctx, owner, orderID); err != nil {
		t.Fatal(err)
	}
	if err := l.Stop(); err != nil {
		t.Fatal(err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.msgs) != 2 {
		t.Fatalf("wrote %d messages, want 2", len(w.msgs))
	}
	kinds := []event.Kind{event.KindEntryPurchased, event.KindEntryDelivered}
	for i, m := range w.msgs {
		if string(m.Key) != ext.String() {
			t.Errorf("message %d key = %s, want %s", i, m.Key, ext)
		}
		var got notify.Message
		if err := json.Unmarshal(m.Value, &got); err != nil {
			t.Fatal(err)
		}
		if got.Kind != kinds[i] || got.Customer != buyer || got.OrderID != orderID {
			t.Errorf("message %d = %+v", i, got)
		}
		if got.Seq != uint64(i+1) {
			t.Errorf("message %d seq = %d", i, got.Seq)
		}
	}
	if !w.closed {
		t.Error("writer not closed on shutdown")
	}
}

func TestWriteFailureIsReported(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	n := kafkanotify.New(w, kafkanotify.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	err := n.OnEntryPurchased(context.Background(), &event.Event{Kind: event.KindEntryPurchased}, nil)
	if err == nil || !errors.Is(err, w.err) {
		t.Fatalf("expected wrapped broker error, got %v", err)
	}
}

func TestNewWriter(t *testing.T) {
	tests := []struct {
		name    string
		brokers string
		topic   string
		want    string
		wantErr bool
	}{
		{name: "default topic", brokers: "localhost:9092", want: kafkanotify.DefaultTopic},
		{name: "custom topic", brokers: " a:9092, b:9092 ,", topic: "certs", want: "certs"},
		{name: "no brokers", brokers: " , ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := kafkanotify.NewWriter(tt.brokers, tt.topic)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if w.Topic != tt.want {
				t.Errorf("topic = %q, want %q", w.Topic, tt.want)
			}
			if w.BatchTimeout <= 0 || w.BatchTimeout > 100*time.Millisecond {
				t.Errorf("batch timeout = %v, want a short flush interval", w.BatchTimeout)
			}
		})
	}
}
