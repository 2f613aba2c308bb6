package redisnotify_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/certledger"
	"github.com/xraph/certledger/catalog"
	"github.com/xraph/certledger/event"
	"github.com/xraph/certledger/notify"
	"github.com/xraph/certledger/notify/redisnotify"
	"github.com/xraph/certledger/order"
	"github.com/xraph/certledger/store/memory"
	"github.com/xraph/certledger/types"
)

type published struct {
	channel string
	payload []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd {
	p.mu.Lock()
	defer p.mu.Unlock()

	cmd := goredis.NewIntCmd(ctx, "publish", channel, message)
	if p.err != nil {
		cmd.SetErr(p.err)
		return cmd
	}
	p.sent = append(p.sent, published{channel: channel, payload: message.([]byte)})
	cmd.SetVal(1)
	return cmd
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishesLedgerEvents(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	n := redisnotify.New(pub, redisnotify.WithChannel("certs"), redisnotify.WithLogger(quietLogger()))

	owner, buyer := types.Address{0x01}, types.Address{0x03}
	l := certledger.New(memory.New(), owner, certledger.WithLogger(quietLogger()), certledger.WithPlugin(n))
	if err := l.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer l.Stop()

	index, err := l.CreateEntry(ctx, owner, catalog.Draft{Price: types.GBP(250), Quantity: 2})
	if err != nil {
		t.Fatal(err)
	}
	orderID, err := l.Purchase(ctx, buyer, index, types.GBP(250))
	if err != nil {
		t.Fatal(err)
	}
	if err := l.MarkDelivered(ctx, owner, orderID); err != nil {
		t.Fatal(err)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.sent) != 2 {
		t.Fatalf("published %d messages, want 2", len(pub.sent))
	}

	want := []struct {
		kind   event.Kind
		status order.Status
	}{
		{event.KindEntryPurchased, order.StatusPaid},
		{event.KindEntryDelivered, order.StatusDelivered},
	}
	for i, w := range want {
		if pub.sent[i].channel != "certs" {
			t.Errorf("message %d channel = %q", i, pub.sent[i].channel)
		}
		var msg notify.Message
		if err := json.Unmarshal(pub.sent[i].payload, &msg); err != nil {
			t.Fatal(err)
		}
		if msg.Kind != w.kind || msg.Status != w.status {
			t.Errorf("message %d = %s/%s, want %s/%s", i, msg.Kind, msg.Status, w.kind, w.status)
		}
		if !msg.Amount.Equal(types.GBP(250)) || msg.Customer != buyer {
			t.Errorf("message %d = %+v", i, msg)
		}
	}
}

func TestPublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("connection refused")}
	n := redisnotify.New(pub, redisnotify.WithLogger(quietLogger()))

	if n.Channel() != redisnotify.DefaultChannel {
		t.Errorf("channel = %q", n.Channel())
	}
	err := n.OnEntryDelivered(context.Background(), &event.Event{Kind: event.KindEntryDelivered}, &order.Order{})
	if !errors.Is(err, pub.err) {
		t.Fatalf("expected wrapped publish error, got %v", err)
	}
}
