package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Mutation changes a working copy of an entry. It may return the payment
// record to persist with the change. Returning an error aborts the commit
// before anything is written.
type Mutation func(entry *Entry) (*Payment, error)

// EntryStore is the part of Repository the guard needs.
type EntryStore interface {
	GetEntry(ctx context.Context, entryID uuid.UUID) (*Entry, error)
	UpdateEntry(ctx context.Context, entry Entry, expectedVersion int64, payment *Payment) error
}

// Guard applies mutations to a single entry with optimistic versioning.
// Writers of different entries never wait on each other; writers of the same
// entry race on the stored version and the loser gets ErrVersionConflict.
// The guard never retries.
type Guard struct {
	store EntryStore
}

func NewGuard(store EntryStore) *Guard {
	return &Guard{store: store}
}

// Commit applies mutate only if the entry is still at expectedVersion.
func (g *Guard) Commit(ctx context.Context, entryID uuid.UUID, expectedVersion int64, mutate Mutation) (*Entry, *Payment, error) {
	current, err := g.store.GetEntry(ctx, entryID)
	if err != nil {
		return nil, nil, err
	}
	if current.Version != expectedVersion {
		return nil, nil, fmt.Errorf("%w: entry %s is at version %d, expected %d",
			ErrVersionConflict, entryID, current.Version, expectedVersion)
	}
	return g.write(ctx, *current, mutate)
}

// Apply is the read-modify-write form: the version just loaded is the one
// the write is conditioned on.
func (g *Guard) Apply(ctx context.Context, entryID uuid.UUID, mutate Mutation) (*Entry, *Payment, error) {
	current, err := g.store.GetEntry(ctx, entryID)
	if err != nil {
		return nil, nil, err
	}
	return g.write(ctx, *current, mutate)
}

func (g *Guard) write(ctx context.Context, working Entry, mutate Mutation) (*Entry, *Payment, error) {
	expected := working.Version

	payment, err := mutate(&working)
	if err != nil {
		return nil, nil, err
	}
	working.Version = expected + 1

	if err := g.store.UpdateEntry(ctx, working, expected, payment); err != nil {
		return nil, nil, err
	}
	return &working, payment, nil
}
