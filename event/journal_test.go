package event_test

import (
	"sync"
	"testing"

	"github.com/xraph/certledger/event"
)

func TestJournalAppendAssignsSeq(t *testing.T) {
	j := event.NewJournal()

	for i := 0; i < 3; i++ {
		e := &event.Event{Kind: event.KindEntryPurchased, OrderID: uint64(i)}
		j.Append(e)
		if e.Seq != uint64(i+1) {
			t.Errorf("event %d: seq = %d, want %d", i, e.Seq, i+1)
		}
		if e.ID.IsNil() {
			t.Errorf("event %d: expected generated id", i)
		}
	}

	if j.Len() != 3 {
		t.Fatalf("Len = %d, want 3", j.Len())
	}
}

func TestJournalSince(t *testing.T) {
	j := event.NewJournal()
	for i := 0; i < 4; i++ {
		j.Append(&event.Event{OrderID: uint64(i)})
	}

	tests := []struct {
		since   uint64
		wantLen int
		first   uint64
	}{
		{0, 4, 1},
		{2, 2, 3},
		{4, 0, 0},
		{10, 0, 0},
	}

	for _, tt := range tests {
		got := j.Since(tt.since)
		if len(got) != tt.wantLen {
			t.Errorf("Since(%d) len = %d, want %d", tt.since, len(got), tt.wantLen)
			continue
		}
		if tt.wantLen > 0 && got[0].Seq != tt.first {
			t.Errorf("Since(%d)[0].Seq = %d, want %d", tt.since, got[0].Seq, tt.first)
		}
	}

	got := j.Since(0)
	got[0].OrderID = 99
	if j.Since(0)[0].OrderID == 99 {
		t.Error("Since should return a copy")
	}
}

func TestJournalConcurrentAppend(t *testing.T) {
	j := event.NewJournal()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.Append(&event.Event{Kind: event.KindEntryDelivered})
		}()
	}
	wg.Wait()

	all := j.Since(0)
	for i, e := range all {
		if e.Seq != uint64(i+1) {
			t.Fatalf("seq gap at %d: %d", i, e.Seq)
		}
	}
}
