package ledger

import (
	"github.com/billbatista/acasinha-splits/money"
	"github.com/google/uuid"
)

// EventLedger is the read projection of one event and its persisted entries.
// It is rebuilt from storage on every read and never mutated to stay in sync.
type EventLedger struct {
	Event   Event   `json:"event"`
	Entries []Entry `json:"entries"`
}

// NewEventLedger assumes entries are ordered by position.
func NewEventLedger(event Event, entries []Entry) *EventLedger {
	event.EntryIDs = make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		event.EntryIDs = append(event.EntryIDs, entry.ID)
	}
	return &EventLedger{Event: event, Entries: entries}
}

// Totals summarises the entries of an event.
type Totals struct {
	Obligation money.Amount `json:"obligation"`
	Paid       money.Amount `json:"paid"`
	Remaining  money.Amount `json:"remaining"`
	Settled    int          `json:"settled"`
	Open       int          `json:"open"`
}

func (l *EventLedger) Totals() Totals {
	var t Totals
	for _, entry := range l.Entries {
		if !entry.Included {
			continue
		}
		t.Obligation += entry.Obligation
		t.Paid += entry.Paid
		t.Remaining += entry.Remaining()
		if entry.Settled {
			t.Settled++
		} else {
			t.Open++
		}
	}
	return t
}

// OwedBy is what userID still owes on this event. Cancelled events owe nothing.
func (l *EventLedger) OwedBy(userID uuid.UUID) money.Amount {
	if l.Event.Cancelled {
		return 0
	}
	var owed money.Amount
	for _, entry := range l.Entries {
		if entry.Included && entry.UserID == userID {
			owed += entry.Remaining()
		}
	}
	return owed
}

// OwedToCreator is what the other participants still owe the creator.
func (l *EventLedger) OwedToCreator() money.Amount {
	if l.Event.Cancelled {
		return 0
	}
	var owed money.Amount
	for _, entry := range l.Entries {
		if entry.Included && entry.UserID != l.Event.CreatedBy {
			owed += entry.Remaining()
		}
	}
	return owed
}

// Exposure is a user's position across all events.
type Exposure struct {
	UserID     uuid.UUID    `json:"user_id"`
	OwedByUser money.Amount `json:"owed_by_user"`
	OwedToUser money.Amount `json:"owed_to_user"`
}

// Net is positive when the user is owed more than they owe.
func (x Exposure) Net() money.Amount {
	return x.OwedToUser - x.OwedByUser
}
