package event

import (
	"sync"

	"github.com/xraph/certledger/id"
)

// Journal is an append-only, ordered log of emitted events.
// It is safe for concurrent use.
type Journal struct {
	mu     sync.RWMutex
	events []Event
}

// NewJournal creates an empty journal.
func NewJournal() *Journal {
	return &Journal{events: make([]Event, 0)}
}

// Append assigns the next Seq (and an ID if e has none) and records a copy
// of e. The assigned values are written back to e.
func (j *Journal) Append(e *Event) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if e.ID.IsNil() {
		e.ID = id.NewEventID()
	}
	e.Seq = uint64(len(j.events)) + 1
	j.events = append(j.events, *e)
}

// Since returns the events with Seq greater than seq, in order.
// Since(0) returns the whole journal.
func (j *Journal) Since(seq uint64) []Event {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if seq >= uint64(len(j.events)) {
		return []Event{}
	}
	out := make([]Event, len(j.events)-int(seq))
	copy(out, j.events[seq:])
	return out
}

// Len returns the number of recorded events.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.events)
}
