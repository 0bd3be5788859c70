package ledger

import (
	"context"
	"time"

	"github.com/billbatista/acasinha-splits/eventlogger"
	"github.com/billbatista/acasinha-splits/money"
	"github.com/google/uuid"
)

// Event is a shared-expense occasion. EntryIDs is rebuilt from the persisted
// entries on every read and is never written back.
type Event struct {
	ID        uuid.UUID    `json:"id"`
	Title     string       `json:"title"`
	Total     money.Amount `json:"total"`
	CreatedBy uuid.UUID    `json:"created_by"`
	Cancelled bool         `json:"cancelled"`
	CreatedAt time.Time    `json:"created_at"`
	EntryIDs  []uuid.UUID  `json:"entry_ids"`
}

// Entry is one participant's obligation within one event.
type Entry struct {
	ID         uuid.UUID    `json:"id"`
	EventID    uuid.UUID    `json:"event_id"`
	UserID     uuid.UUID    `json:"user_id"`
	Position   int          `json:"position"`
	Obligation money.Amount `json:"obligation"`
	Paid       money.Amount `json:"paid"`
	Included   bool         `json:"included"`
	Settled    bool         `json:"settled"`
	SettledAt  *time.Time   `json:"settled_at,omitempty"`
	Version    int64        `json:"version"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Remaining is what is still owed on the entry.
func (e Entry) Remaining() money.Amount {
	return e.Obligation - e.Paid
}

// Payment is the append-only record of a successful payment.
type Payment struct {
	ID        uuid.UUID    `json:"id"`
	EntryID   uuid.UUID    `json:"entry_id"`
	PayerID   uuid.UUID    `json:"payer_id"`
	Amount    money.Amount `json:"amount"`
	CreatedAt time.Time    `json:"created_at"`
}

// Repository is the persistence contract of the ledger.
//
// UpdateEntry is a compare-and-swap: it must only write when the stored
// version equals expectedVersion, returning ErrVersionConflict otherwise, and
// it must persist payment (when non-nil) in the same transaction.
type Repository interface {
	CreateEvent(ctx context.Context, event Event, entries []Entry) error
	GetEvent(ctx context.Context, eventID uuid.UUID) (*Event, error)
	ListEventsByCreator(ctx context.Context, userID uuid.UUID) ([]Event, error)
	RenameEvent(ctx context.Context, eventID uuid.UUID, title string) error
	CancelEvent(ctx context.Context, eventID uuid.UUID) error
	DeleteEvent(ctx context.Context, eventID uuid.UUID) error

	AddEntry(ctx context.Context, entry *Entry) error
	GetEntry(ctx context.Context, entryID uuid.UUID) (*Entry, error)
	ListEntriesByEvent(ctx context.Context, eventID uuid.UUID) ([]Entry, error)
	ListEntriesByUser(ctx context.Context, userID uuid.UUID) ([]Entry, error)
	UpdateEntry(ctx context.Context, entry Entry, expectedVersion int64, payment *Payment) error
	DeleteEntry(ctx context.Context, entryID uuid.UUID) error
}

// Directory resolves whether a user identifier refers to an existing user.
type Directory interface {
	Exists(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Auditor receives audit events for completed mutations.
type Auditor interface {
	Log(event eventlogger.Event)
}
