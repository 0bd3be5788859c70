package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/billbatista/acasinha-splits/eventlogger"
	"github.com/billbatista/acasinha-splits/money"
	"github.com/google/uuid"
)

// Participant is one person named when an event is created.
// Participants that are not included get a zero-obligation entry.
type Participant struct {
	UserID   uuid.UUID
	Included bool
}

type CreateEventInput struct {
	Title        string
	Total        money.Amount
	CreatedBy    uuid.UUID
	Participants []Participant
}

// Service exposes the ledger operations on top of a Repository.
type Service struct {
	repo   Repository
	engine *Engine
	users  Directory
	audit  Auditor
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithDirectory makes the service reject users the directory doesn't know.
func WithDirectory(users Directory) Option {
	return func(s *Service) {
		s.users = users
	}
}

func WithAuditor(audit Auditor) Option {
	return func(s *Service) {
		s.audit = audit
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
		s.engine.now = now
	}
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		engine: NewEngine(repo),
		audit:  noopAuditor{},
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateEvent splits total among the included participants and persists the
// event together with every entry, or nothing at all.
func (s *Service) CreateEvent(ctx context.Context, in CreateEventInput) (*EventLedger, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title can't be empty", ErrInvalidInput)
	}
	if in.CreatedBy == uuid.Nil {
		return nil, fmt.Errorf("%w: creator is required", ErrInvalidInput)
	}
	if err := s.requireUser(ctx, in.CreatedBy); err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]struct{}, len(in.Participants))
	var included, excluded []uuid.UUID
	for _, p := range in.Participants {
		if p.UserID == uuid.Nil {
			return nil, fmt.Errorf("%w: empty participant id", ErrInvalidInput)
		}
		if _, dup := seen[p.UserID]; dup {
			return nil, fmt.Errorf("%w: duplicate participant %s", ErrInvalidInput, p.UserID)
		}
		seen[p.UserID] = struct{}{}
		if p.Included {
			included = append(included, p.UserID)
		} else {
			excluded = append(excluded, p.UserID)
		}
	}

	eventID := uuid.New()
	entries, err := Allocate(eventID, in.Total, included)
	if err != nil {
		return nil, err
	}
	for _, p := range in.Participants {
		if err := s.requireUser(ctx, p.UserID); err != nil {
			return nil, err
		}
	}

	now := s.now()
	for i := range entries {
		entries[i].CreatedAt = now
		// A share smaller than one cent leaves nothing to pay.
		if entries[i].Obligation == 0 {
			settledAt := now
			entries[i].Settled = true
			entries[i].SettledAt = &settledAt
		}
	}
	for _, userID := range excluded {
		entries = append(entries, excludedEntry(eventID, userID, len(entries), now))
	}

	event := Event{
		ID:        eventID,
		Title:     title,
		Total:     in.Total,
		CreatedBy: in.CreatedBy,
		CreatedAt: now,
	}
	if err := s.repo.CreateEvent(ctx, event, entries); err != nil {
		return nil, fmt.Errorf("saving event: %w", err)
	}

	participants := make([]string, 0, len(entries))
	for _, entry := range entries {
		participants = append(participants, entry.UserID.String())
	}
	s.emit(EventCreated, in.CreatedBy, EventCreatedData{
		EventID:      event.ID.String(),
		Title:        event.Title,
		Total:        event.Total.String(),
		CreatedBy:    event.CreatedBy.String(),
		Participants: participants,
	})

	return NewEventLedger(event, entries), nil
}

func (s *Service) GetEvent(ctx context.Context, eventID uuid.UUID) (*EventLedger, error) {
	event, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.ListEntriesByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	return NewEventLedger(*event, entries), nil
}

// ViewEvent is GetEvent restricted to the creator and the event's participants.
func (s *Service) ViewEvent(ctx context.Context, eventID, viewer uuid.UUID) (*EventLedger, error) {
	l, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if l.Event.CreatedBy == viewer {
		return l, nil
	}
	for _, entry := range l.Entries {
		if entry.UserID == viewer {
			return l, nil
		}
	}
	return nil, fmt.Errorf("%w: not a participant of event %s", ErrForbidden, eventID)
}

// Participation is one entry of userID together with its event.
type Participation struct {
	Event Event        `json:"event"`
	Entry Entry        `json:"entry"`
	Owed  money.Amount `json:"owed"`
}

// ListEntriesForUser returns every entry userID holds, including those on
// cancelled events, where Owed is zero. Entries whose event is gone are skipped.
func (s *Service) ListEntriesForUser(ctx context.Context, userID uuid.UUID) ([]Participation, error) {
	entries, err := s.repo.ListEntriesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}

	out := make([]Participation, 0, len(entries))
	for _, entry := range entries {
		event, err := s.repo.GetEvent(ctx, entry.EventID)
		if errors.Is(err, ErrNotFound) {
			s.logger.Warn("skipping entry without event", "entry_id", entry.ID, "event_id", entry.EventID)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading event: %w", err)
		}
		l := NewEventLedger(*event, []Entry{entry})
		out = append(out, Participation{Event: *event, Entry: entry, Owed: l.OwedBy(userID)})
	}
	return out, nil
}

// ListCreatedEvents returns the events userID created, oldest first.
func (s *Service) ListCreatedEvents(ctx context.Context, userID uuid.UUID) ([]Event, error) {
	events, err := s.repo.ListEventsByCreator(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	return events, nil
}

func (s *Service) RenameEvent(ctx context.Context, eventID, actor uuid.UUID, title string) (*EventLedger, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title can't be empty", ErrInvalidInput)
	}
	if _, err := s.ownedEvent(ctx, eventID, actor); err != nil {
		return nil, err
	}
	if err := s.repo.RenameEvent(ctx, eventID, title); err != nil {
		return nil, err
	}
	s.emit(EventRenamed, actor, map[string]string{"event_id": eventID.String(), "title": title})
	return s.GetEvent(ctx, eventID)
}

// CancelEvent hides the event from aggregation. Entries and payments stay as
// they are; nothing is reversed.
func (s *Service) CancelEvent(ctx context.Context, eventID, actor uuid.UUID) (*EventLedger, error) {
	event, err := s.ownedEvent(ctx, eventID, actor)
	if err != nil {
		return nil, err
	}
	if !event.Cancelled {
		if err := s.repo.CancelEvent(ctx, eventID); err != nil {
			return nil, err
		}
		s.emit(EventCancelled, actor, map[string]string{"event_id": eventID.String(), "cancelled_by": actor.String()})
	}
	return s.GetEvent(ctx, eventID)
}

// DeleteEvent removes the event with all of its entries and payments.
func (s *Service) DeleteEvent(ctx context.Context, eventID, actor uuid.UUID) error {
	if _, err := s.ownedEvent(ctx, eventID, actor); err != nil {
		return err
	}
	if err := s.repo.DeleteEvent(ctx, eventID); err != nil {
		return err
	}
	s.emit(EventDeleted, actor, map[string]string{"event_id": eventID.String(), "deleted_by": actor.String()})
	return nil
}

// AddParticipant adds an entry with an explicit obligation to an open event.
func (s *Service) AddParticipant(ctx context.Context, eventID, actor, userID uuid.UUID, obligation money.Amount) (*Entry, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: participant is required", ErrInvalidInput)
	}
	if obligation < 0 {
		return nil, fmt.Errorf("%w: obligation can't be negative", ErrInvalidInput)
	}
	event, err := s.ownedEvent(ctx, eventID, actor)
	if err != nil {
		return nil, err
	}
	if event.Cancelled {
		return nil, ErrEventCancelled
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	now := s.now()
	entry := Entry{
		ID:         uuid.New(),
		EventID:    eventID,
		UserID:     userID,
		Obligation: obligation,
		Included:   true,
		CreatedAt:  now,
	}
	if obligation == 0 {
		entry.Settled = true
		entry.SettledAt = &now
	}
	if err := s.repo.AddEntry(ctx, &entry); err != nil {
		return nil, err
	}

	s.emit(EntryAdded, actor, map[string]string{
		"event_id":   eventID.String(),
		"entry_id":   entry.ID.String(),
		"user_id":    userID.String(),
		"obligation": obligation.String(),
	})
	return &entry, nil
}

// RecordPayment applies a payment through the settlement engine. A version
// conflict is returned to the caller untouched.
func (s *Service) RecordPayment(ctx context.Context, req PaymentRequest) (*Entry, *Payment, error) {
	if req.PayerID != uuid.Nil {
		if err := s.requireUser(ctx, req.PayerID); err != nil {
			return nil, nil, err
		}
	}

	entry, payment, err := s.engine.ApplyPayment(ctx, req)
	if err != nil {
		if IsRetryable(err) {
			s.logger.Info("payment lost a version race", "entry_id", req.EntryID, "payer_id", req.PayerID)
		}
		return nil, nil, err
	}

	s.emit(PaymentRecorded, payment.PayerID, PaymentRecordedData{
		PaymentID: payment.ID.String(),
		EntryID:   entry.ID.String(),
		PayerID:   payment.PayerID.String(),
		Amount:    payment.Amount.String(),
		Remaining: entry.Remaining().String(),
		Settled:   entry.Settled,
		Version:   entry.Version,
	})
	return entry, payment, nil
}

func (s *Service) AdjustObligation(ctx context.Context, entryID, actor uuid.UUID, obligation money.Amount, expectedVersion int64) (*Entry, error) {
	current, err := s.repo.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedEvent(ctx, current.EventID, actor); err != nil {
		return nil, err
	}

	entry, err := s.engine.AdjustObligation(ctx, entryID, expectedVersion, obligation)
	if err != nil {
		return nil, err
	}
	s.emit(EntryAdjusted, actor, map[string]string{
		"entry_id":   entryID.String(),
		"obligation": entry.Obligation.String(),
		"version":    fmt.Sprint(entry.Version),
	})
	return entry, nil
}

// DeleteEntry removes an entry that has no payments recorded against it.
func (s *Service) DeleteEntry(ctx context.Context, entryID, actor uuid.UUID) error {
	entry, err := s.repo.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if _, err := s.ownedEvent(ctx, entry.EventID, actor); err != nil {
		return err
	}
	if entry.Paid > 0 {
		return ErrDeleteWithBalance
	}
	if err := s.repo.DeleteEntry(ctx, entryID); err != nil {
		return err
	}
	s.emit(EntryDeleted, actor, map[string]string{"entry_id": entryID.String(), "event_id": entry.EventID.String()})
	return nil
}

// AggregateForUser computes what the user owes across events and what is owed
// to them on the events they created. Entries whose event can't be found are
// left out instead of failing the whole view.
func (s *Service) AggregateForUser(ctx context.Context, userID uuid.UUID) (Exposure, error) {
	exposure := Exposure{UserID: userID}

	entries, err := s.repo.ListEntriesByUser(ctx, userID)
	if err != nil {
		return exposure, fmt.Errorf("listing entries: %w", err)
	}
	events := make(map[uuid.UUID]*Event)
	for _, entry := range entries {
		event, ok := events[entry.EventID]
		if !ok {
			event, err = s.repo.GetEvent(ctx, entry.EventID)
			if errors.Is(err, ErrNotFound) {
				s.logger.Warn("skipping entry without event", "entry_id", entry.ID, "event_id", entry.EventID)
				events[entry.EventID] = nil
				continue
			}
			if err != nil {
				return exposure, fmt.Errorf("loading event: %w", err)
			}
			events[entry.EventID] = event
		}
		if event == nil || event.Cancelled || !entry.Included {
			continue
		}
		exposure.OwedByUser += entry.Remaining()
	}

	created, err := s.repo.ListEventsByCreator(ctx, userID)
	if err != nil {
		return exposure, fmt.Errorf("listing events: %w", err)
	}
	for _, event := range created {
		if event.Cancelled {
			continue
		}
		eventEntries, err := s.repo.ListEntriesByEvent(ctx, event.ID)
		if err != nil {
			return exposure, fmt.Errorf("listing entries: %w", err)
		}
		exposure.OwedToUser += NewEventLedger(event, eventEntries).OwedToCreator()
	}

	return exposure, nil
}

func (s *Service) ownedEvent(ctx context.Context, eventID, actor uuid.UUID) (*Event, error) {
	event, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.CreatedBy != actor {
		return nil, fmt.Errorf("%w: only the creator can change event %s", ErrForbidden, eventID)
	}
	return event, nil
}

func (s *Service) requireUser(ctx context.Context, userID uuid.UUID) error {
	if s.users == nil {
		return nil
	}
	ok, err := s.users.Exists(ctx, userID)
	if err != nil {
		return fmt.Errorf("looking up user: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	return nil
}

func (s *Service) emit(eventType string, actor uuid.UUID, data any) {
	s.audit.Log(eventlogger.NewEvent(
		eventlogger.WithType(eventType),
		eventlogger.WithActor(actor),
		eventlogger.WithData(data),
	))
}
