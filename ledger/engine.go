package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/billbatista/acasinha-splits/money"
	"github.com/google/uuid"
)

// PaymentRequest asks to record Amount against an entry. When ExpectedVersion
// is set the payment only applies if the entry is still at that version.
type PaymentRequest struct {
	EntryID         uuid.UUID    `json:"entry_id"`
	PayerID         uuid.UUID    `json:"payer_id"`
	Amount          money.Amount `json:"amount"`
	ExpectedVersion *int64       `json:"version,omitempty"`
}

// Engine applies payments and obligation edits to single entries.
type Engine struct {
	guard *Guard
	now   func() time.Time
	newID func() uuid.UUID
}

func NewEngine(store EntryStore) *Engine {
	return &Engine{
		guard: NewGuard(store),
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.New,
	}
}

// ApplyPayment records a payment. Payments larger than what remains are
// rejected, never clamped: the caller has to resubmit the real amount.
func (e *Engine) ApplyPayment(ctx context.Context, req PaymentRequest) (*Entry, *Payment, error) {
	if req.Amount <= 0 {
		return nil, nil, fmt.Errorf("%w: got %s", ErrInvalidAmount, req.Amount)
	}
	if req.PayerID == uuid.Nil {
		return nil, nil, fmt.Errorf("%w: payer is required", ErrInvalidInput)
	}

	mutate := e.pay(req.PayerID, req.Amount)
	if req.ExpectedVersion != nil {
		return e.guard.Commit(ctx, req.EntryID, *req.ExpectedVersion, mutate)
	}
	return e.guard.Apply(ctx, req.EntryID, mutate)
}

func (e *Engine) pay(payerID uuid.UUID, amount money.Amount) Mutation {
	return func(entry *Entry) (*Payment, error) {
		remaining := entry.Remaining()
		if amount > remaining {
			return nil, fmt.Errorf("%w: paying %s, remaining %s", ErrOverPayment, amount, remaining)
		}

		now := e.now()
		entry.Paid += amount
		e.settle(entry, now)

		return &Payment{
			ID:        e.newID(),
			EntryID:   entry.ID,
			PayerID:   payerID,
			Amount:    amount,
			CreatedAt: now,
		}, nil
	}
}

// AdjustObligation is the administrative edit of an unsettled entry's share.
// The new obligation can't drop below what was already paid.
func (e *Engine) AdjustObligation(ctx context.Context, entryID uuid.UUID, expectedVersion int64, obligation money.Amount) (*Entry, error) {
	if obligation < 0 {
		return nil, fmt.Errorf("%w: obligation can't be negative", ErrInvalidInput)
	}

	entry, _, err := e.guard.Commit(ctx, entryID, expectedVersion, func(entry *Entry) (*Payment, error) {
		if entry.Settled {
			return nil, fmt.Errorf("%w: %s", ErrEntrySettled, entry.ID)
		}
		if obligation < entry.Paid {
			return nil, fmt.Errorf("%w: obligation %s is below paid %s", ErrInvalidInput, obligation, entry.Paid)
		}
		entry.Obligation = obligation
		e.settle(entry, e.now())
		return nil, nil
	})
	return entry, err
}

// settle flips the entry to settled the first time nothing remains.
func (e *Engine) settle(entry *Entry, now time.Time) {
	if entry.Settled || entry.Remaining() != 0 {
		return
	}
	entry.Settled = true
	entry.SettledAt = &now
}
