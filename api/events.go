package api

import (
	"fmt"
	"net/http"

	"github.com/billbatista/acasinha-splits/ledger"
	"github.com/billbatista/acasinha-splits/money"
	"github.com/google/uuid"
)

type eventView struct {
	Event   ledger.Event   `json:"event"`
	Entries []ledger.Entry `json:"entries"`
	Totals  ledger.Totals  `json:"totals"`
}

func newEventView(l *ledger.EventLedger) eventView {
	entries := l.Entries
	if entries == nil {
		entries = []ledger.Entry{}
	}
	return eventView{Event: l.Event, Entries: entries, Totals: l.Totals()}
}

type participantRequest struct {
	UserID   uuid.UUID `json:"user_id"`
	Included *bool     `json:"included,omitempty"`
}

type createEventRequest struct {
	Title        string               `json:"title"`
	Total        money.Amount         `json:"total"`
	Participants []participantRequest `json:"participants"`
}

func (a *API) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var in createEventRequest
	if err := decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}

	participants := make([]ledger.Participant, 0, len(in.Participants))
	for _, p := range in.Participants {
		participants = append(participants, ledger.Participant{
			UserID:   p.UserID,
			Included: p.Included == nil || *p.Included,
		})
	}

	created, err := a.Ledger.CreateEvent(r.Context(), ledger.CreateEventInput{
		Title:        in.Title,
		Total:        in.Total,
		CreatedBy:    currentUser(r),
		Participants: participants,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newEventView(created))
}

func (a *API) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := a.Ledger.ListCreatedEvents(r.Context(), currentUser(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if events == nil {
		events = []ledger.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (a *API) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventID")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	l, err := a.Ledger.ViewEvent(r.Context(), eventID, currentUser(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEventView(l))
}

func (a *API) handleRenameEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventID")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var in struct {
		Title string `json:"title"`
	}
	if err := decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}

	l, err := a.Ledger.RenameEvent(r.Context(), eventID, currentUser(r), in.Title)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEventView(l))
}

func (a *API) handleCancelEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventID")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	l, err := a.Ledger.CancelEvent(r.Context(), eventID, currentUser(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEventView(l))
}

func (a *API) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventID")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.Ledger.DeleteEvent(r.Context(), eventID, currentUser(r)); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAddParticipant(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventID")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var in struct {
		UserID     uuid.UUID    `json:"user_id"`
		Obligation money.Amount `json:"obligation"`
	}
	if err := decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}

	entry, err := a.Ledger.AddParticipant(r.Context(), eventID, currentUser(r), in.UserID, in.Obligation)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (a *API) handleAdjustEntry(w http.ResponseWriter, r *http.Request) {
	entryID, err := pathID(r, "entryID")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var in struct {
		Obligation money.Amount `json:"obligation"`
		Version    *int64       `json:"version"`
	}
	if err := decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	if in.Version == nil {
		a.fail(w, r, fmt.Errorf("%w: version is required", ledger.ErrInvalidInput))
		return
	}

	entry, err := a.Ledger.AdjustObligation(r.Context(), entryID, currentUser(r), in.Obligation, *in.Version)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *API) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	entryID, err := pathID(r, "entryID")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.Ledger.DeleteEntry(r.Context(), entryID, currentUser(r)); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
