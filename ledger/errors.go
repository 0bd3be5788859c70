package ledger

import "errors"

var (
	ErrInvalidInput      = errors.New("ledger: invalid input")
	ErrNotFound          = errors.New("ledger: not found")
	ErrAlreadyExists     = errors.New("ledger: already exists")
	ErrForbidden         = errors.New("ledger: forbidden")
	ErrInvalidAmount     = errors.New("ledger: amount must be positive")
	ErrOverPayment       = errors.New("ledger: payment exceeds remaining amount")
	ErrVersionConflict   = errors.New("ledger: entry was modified concurrently")
	ErrDeleteWithBalance = errors.New("ledger: entry has recorded payments")
	ErrEventCancelled    = errors.New("ledger: event is cancelled")
	ErrEntrySettled      = errors.New("ledger: entry is settled")
)

// IsNotFound reports whether err means a referenced event, entry or user is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable reports whether the caller may re-read and submit the operation again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
