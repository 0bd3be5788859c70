package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *repository {
	return &repository{db: db}
}

const entryColumns = `id, event_id, user_id, position, obligation, paid, included, settled, settled_at, version, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var entry Entry
	var settledAt sql.NullTime
	err := row.Scan(
		&entry.ID,
		&entry.EventID,
		&entry.UserID,
		&entry.Position,
		&entry.Obligation,
		&entry.Paid,
		&entry.Included,
		&entry.Settled,
		&settledAt,
		&entry.Version,
		&entry.CreatedAt,
	)
	if err != nil {
		return entry, err
	}
	if settledAt.Valid {
		at := settledAt.Time.UTC()
		entry.SettledAt = &at
	}
	entry.CreatedAt = entry.CreatedAt.UTC()
	return entry, nil
}

func (r *repository) CreateEvent(ctx context.Context, event Event, entries []Entry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	insertEvent := `INSERT INTO expense_events (id, title, total, created_by, cancelled, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = tx.ExecContext(
		ctx,
		insertEvent,
		event.ID,
		event.Title,
		event.Total,
		event.CreatedBy,
		event.Cancelled,
		event.CreatedAt,
	)
	if err != nil {
		return mapError(err)
	}

	insertEntry := `INSERT INTO ledger_entries (` + entryColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	for _, entry := range entries {
		_, err = tx.ExecContext(
			ctx,
			insertEntry,
			entry.ID,
			event.ID,
			entry.UserID,
			entry.Position,
			entry.Obligation,
			entry.Paid,
			entry.Included,
			entry.Settled,
			entry.SettledAt,
			entry.Version,
			entry.CreatedAt,
		)
		if err != nil {
			return mapError(err)
		}
	}

	return tx.Commit()
}

func (r *repository) GetEvent(ctx context.Context, eventID uuid.UUID) (*Event, error) {
	query := `SELECT id, title, total, created_by, cancelled, created_at FROM expense_events WHERE id = $1`

	var event Event
	err := r.db.QueryRowContext(ctx, query, eventID).Scan(
		&event.ID,
		&event.Title,
		&event.Total,
		&event.CreatedBy,
		&event.Cancelled,
		&event.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying event: %w", err)
	}
	event.CreatedAt = event.CreatedAt.UTC()

	rows, err := r.db.QueryContext(ctx, `SELECT id FROM ledger_entries WHERE event_id = $1 ORDER BY position, created_at`, eventID)
	if err != nil {
		return nil, fmt.Errorf("querying entry ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		event.EntryIDs = append(event.EntryIDs, id)
	}

	return &event, rows.Err()
}

func (r *repository) ListEventsByCreator(ctx context.Context, userID uuid.UUID) ([]Event, error) {
	query := `SELECT id, title, total, created_by, cancelled, created_at
              FROM expense_events
              WHERE created_by = $1
              ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		err := rows.Scan(&event.ID, &event.Title, &event.Total, &event.CreatedBy, &event.Cancelled, &event.CreatedAt)
		if err != nil {
			return nil, err
		}
		event.CreatedAt = event.CreatedAt.UTC()
		events = append(events, event)
	}

	return events, rows.Err()
}

func (r *repository) RenameEvent(ctx context.Context, eventID uuid.UUID, title string) error {
	return r.execOne(ctx, `UPDATE expense_events SET title = $2 WHERE id = $1`, eventID, title)
}

func (r *repository) CancelEvent(ctx context.Context, eventID uuid.UUID) error {
	return r.execOne(ctx, `UPDATE expense_events SET cancelled = TRUE WHERE id = $1`, eventID)
}

// DeleteEvent relies on ON DELETE CASCADE for entries and payments.
func (r *repository) DeleteEvent(ctx context.Context, eventID uuid.UUID) error {
	return r.execOne(ctx, `DELETE FROM expense_events WHERE id = $1`, eventID)
}

func (r *repository) AddEntry(ctx context.Context, entry *Entry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Lock the event row so concurrent adds and cancels line up.
	var cancelled bool
	err = tx.QueryRowContext(ctx, `SELECT cancelled FROM expense_events WHERE id = $1 FOR UPDATE`, entry.EventID).Scan(&cancelled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if cancelled {
		return ErrEventCancelled
	}

	err = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position) + 1, 0) FROM ledger_entries WHERE event_id = $1`, entry.EventID).Scan(&entry.Position)
	if err != nil {
		return err
	}

	query := `INSERT INTO ledger_entries (` + entryColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = tx.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.EventID,
		entry.UserID,
		entry.Position,
		entry.Obligation,
		entry.Paid,
		entry.Included,
		entry.Settled,
		entry.SettledAt,
		entry.Version,
		entry.CreatedAt,
	)
	if err != nil {
		return mapError(err)
	}

	return tx.Commit()
}

func (r *repository) GetEntry(ctx context.Context, entryID uuid.UUID) (*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE id = $1`

	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, entryID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying entry: %w", err)
	}
	return &entry, nil
}

func (r *repository) ListEntriesByEvent(ctx context.Context, eventID uuid.UUID) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE event_id = $1 ORDER BY position, created_at`
	return r.listEntries(ctx, query, eventID)
}

func (r *repository) ListEntriesByUser(ctx context.Context, userID uuid.UUID) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE user_id = $1 ORDER BY created_at`
	return r.listEntries(ctx, query, userID)
}

func (r *repository) listEntries(ctx context.Context, query string, arg any) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// UpdateEntry writes the entry only if the stored version still equals
// expectedVersion. Zero rows updated means another writer got there first.
func (r *repository) UpdateEntry(ctx context.Context, entry Entry, expectedVersion int64, payment *Payment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	update := `UPDATE ledger_entries
               SET obligation = $3, paid = $4, settled = $5, settled_at = $6, version = $7
               WHERE id = $1 AND version = $2`
	result, err := tx.ExecContext(
		ctx,
		update,
		entry.ID,
		expectedVersion,
		entry.Obligation,
		entry.Paid,
		entry.Settled,
		entry.SettledAt,
		entry.Version,
	)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 1 {
		return ErrVersionConflict
	}

	if payment != nil {
		insert := `INSERT INTO payments (id, entry_id, payer_id, amount, created_at) VALUES ($1, $2, $3, $4, $5)`
		_, err = tx.ExecContext(ctx, insert, payment.ID, payment.EntryID, payment.PayerID, payment.Amount, payment.CreatedAt)
		if err != nil {
			return mapError(err)
		}
	}

	return tx.Commit()
}

// DeleteEntry only removes entries without payments; the condition lives in
// the statement so a concurrent payment can't slip in between check and delete.
func (r *repository) DeleteEntry(ctx context.Context, entryID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM ledger_entries WHERE id = $1 AND paid = 0`, entryID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE id = $1)`, entryID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrDeleteWithBalance
	}
	return ErrNotFound
}

func (r *repository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func mapError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code.Name() {
	case "unique_violation":
		return fmt.Errorf("%w: %s", ErrAlreadyExists, pqErr.Constraint)
	case "foreign_key_violation":
		return fmt.Errorf("%w: %s", ErrNotFound, pqErr.Constraint)
	case "check_violation":
		return fmt.Errorf("%w: %s", ErrInvalidInput, pqErr.Constraint)
	}
	return err
}
