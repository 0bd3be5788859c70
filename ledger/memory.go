package ledger

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// memoryRepository keeps the ledger in process. It honours the same
// contract as the SQL repository, including the versioned entry update.
type memoryRepository struct {
	mu       sync.RWMutex
	events   map[uuid.UUID]Event
	entries  map[uuid.UUID]Entry
	payments []Payment
}

func NewMemoryRepository() *memoryRepository {
	return &memoryRepository{
		events:  make(map[uuid.UUID]Event),
		entries: make(map[uuid.UUID]Entry),
	}
}

func (r *memoryRepository) CreateEvent(_ context.Context, event Event, entries []Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.events[event.ID]; exists {
		return ErrAlreadyExists
	}
	users := make(map[uuid.UUID]struct{}, len(entries))
	for _, entry := range entries {
		if _, exists := r.entries[entry.ID]; exists {
			return ErrAlreadyExists
		}
		if _, dup := users[entry.UserID]; dup {
			return ErrAlreadyExists
		}
		users[entry.UserID] = struct{}{}
	}

	event.EntryIDs = nil
	r.events[event.ID] = event
	for _, entry := range entries {
		entry.EventID = event.ID
		r.entries[entry.ID] = cloneEntry(entry)
	}
	return nil
}

func (r *memoryRepository) GetEvent(_ context.Context, eventID uuid.UUID) (*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	event, ok := r.events[eventID]
	if !ok {
		return nil, ErrNotFound
	}
	for _, entry := range r.eventEntries(eventID) {
		event.EntryIDs = append(event.EntryIDs, entry.ID)
	}
	return &event, nil
}

func (r *memoryRepository) ListEventsByCreator(_ context.Context, userID uuid.UUID) ([]Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var events []Event
	for _, event := range r.events {
		if event.CreatedBy == userID {
			events = append(events, event)
		}
	}
	slices.SortFunc(events, func(a, b Event) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return events, nil
}

func (r *memoryRepository) RenameEvent(_ context.Context, eventID uuid.UUID, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	event, ok := r.events[eventID]
	if !ok {
		return ErrNotFound
	}
	event.Title = title
	r.events[eventID] = event
	return nil
}

func (r *memoryRepository) CancelEvent(_ context.Context, eventID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	event, ok := r.events[eventID]
	if !ok {
		return ErrNotFound
	}
	event.Cancelled = true
	r.events[eventID] = event
	return nil
}

func (r *memoryRepository) DeleteEvent(_ context.Context, eventID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.events[eventID]; !ok {
		return ErrNotFound
	}
	removed := make(map[uuid.UUID]struct{})
	for id, entry := range r.entries {
		if entry.EventID == eventID {
			removed[id] = struct{}{}
			delete(r.entries, id)
		}
	}
	r.payments = slices.DeleteFunc(r.payments, func(p Payment) bool {
		_, gone := removed[p.EntryID]
		return gone
	})
	delete(r.events, eventID)
	return nil
}

func (r *memoryRepository) AddEntry(_ context.Context, entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	event, ok := r.events[entry.EventID]
	if !ok {
		return ErrNotFound
	}
	if event.Cancelled {
		return ErrEventCancelled
	}
	position := 0
	for _, existing := range r.eventEntries(entry.EventID) {
		if existing.UserID == entry.UserID {
			return ErrAlreadyExists
		}
		position = max(position, existing.Position+1)
	}
	entry.Position = position
	r.entries[entry.ID] = cloneEntry(*entry)
	return nil
}

func (r *memoryRepository) GetEntry(_ context.Context, entryID uuid.UUID) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[entryID]
	if !ok {
		return nil, ErrNotFound
	}
	entry = cloneEntry(entry)
	return &entry, nil
}

func (r *memoryRepository) ListEntriesByEvent(_ context.Context, eventID uuid.UUID) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.eventEntries(eventID), nil
}

func (r *memoryRepository) ListEntriesByUser(_ context.Context, userID uuid.UUID) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var entries []Entry
	for _, entry := range r.entries {
		if entry.UserID == userID {
			entries = append(entries, cloneEntry(entry))
		}
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return entries, nil
}

func (r *memoryRepository) UpdateEntry(_ context.Context, entry Entry, expectedVersion int64, payment *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.entries[entry.ID]
	if !ok || stored.Version != expectedVersion {
		return ErrVersionConflict
	}
	r.entries[entry.ID] = cloneEntry(entry)
	if payment != nil {
		r.payments = append(r.payments, *payment)
	}
	return nil
}

func (r *memoryRepository) DeleteEntry(_ context.Context, entryID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[entryID]
	if !ok {
		return ErrNotFound
	}
	if entry.Paid > 0 {
		return ErrDeleteWithBalance
	}
	delete(r.entries, entryID)
	return nil
}

// eventEntries must be called with the lock held.
func (r *memoryRepository) eventEntries(eventID uuid.UUID) []Entry {
	var entries []Entry
	for _, entry := range r.entries {
		if entry.EventID == eventID {
			entries = append(entries, cloneEntry(entry))
		}
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return entries
}

func cloneEntry(e Entry) Entry {
	if e.SettledAt != nil {
		at := *e.SettledAt
		e.SettledAt = &at
	}
	return e
}
