package ledger

import (
	"fmt"
	"time"

	"github.com/billbatista/acasinha-splits/money"
	"github.com/google/uuid"
)

// Allocate splits total equally among participants. The remainder left by the
// integer division is handed out one cent at a time to the first participants
// in the given order, so the shares always sum to total.
func Allocate(eventID uuid.UUID, total money.Amount, participants []uuid.UUID) ([]Entry, error) {
	if total <= 0 {
		return nil, fmt.Errorf("%w: total must be positive", ErrInvalidInput)
	}
	n := int64(len(participants))
	if n == 0 {
		return nil, fmt.Errorf("%w: no participants to split", ErrInvalidInput)
	}

	seen := make(map[uuid.UUID]struct{}, n)
	for _, userID := range participants {
		if userID == uuid.Nil {
			return nil, fmt.Errorf("%w: empty participant id", ErrInvalidInput)
		}
		if _, dup := seen[userID]; dup {
			return nil, fmt.Errorf("%w: duplicate participant %s", ErrInvalidInput, userID)
		}
		seen[userID] = struct{}{}
	}

	base := int64(total) / n
	remainder := int64(total) % n

	entries := make([]Entry, 0, n)
	for i, userID := range participants {
		share := base
		if int64(i) < remainder {
			share++
		}
		entries = append(entries, Entry{
			ID:         uuid.New(),
			EventID:    eventID,
			UserID:     userID,
			Position:   i,
			Obligation: money.Amount(share),
			Included:   true,
		})
	}
	return entries, nil
}

// excludedEntry is the zero-obligation row of a participant left out of the split.
// Nothing is owed, so it starts settled.
func excludedEntry(eventID, userID uuid.UUID, position int, now time.Time) Entry {
	settledAt := now
	return Entry{
		ID:        uuid.New(),
		EventID:   eventID,
		UserID:    userID,
		Position:  position,
		Included:  false,
		Settled:   true,
		SettledAt: &settledAt,
		CreatedAt: now,
	}
}
