package catalog

import "context"

type Store interface {
	// AppendEntry stores e at the next catalog index and sets e.Index.
	AppendEntry(ctx context.Context, e *Entry) error
	GetEntry(ctx context.Context, index uint64) (*Entry, error)
	ListEntries(ctx context.Context) ([]*Entry, error)
	CountEntries(ctx context.Context) (uint64, error)
}
