package api

import (
	"fmt"
	"net/http"

	"github.com/billbatista/acasinha-splits/ledger"
	"github.com/billbatista/acasinha-splits/money"
	"github.com/google/uuid"
)

type paymentRequest struct {
	EntryID uuid.UUID    `json:"entry_id"`
	Amount  money.Amount `json:"amount"`
	Version *int64       `json:"version,omitempty"`
}

type paymentResponse struct {
	Entry   *ledger.Entry   `json:"entry"`
	Payment *ledger.Payment `json:"payment"`
}

// handleRecordPayment always records the payment as made by the caller.
func (a *API) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var in paymentRequest
	if err := decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}

	entry, payment, err := a.Ledger.RecordPayment(r.Context(), ledger.PaymentRequest{
		EntryID:         in.EntryID,
		PayerID:         currentUser(r),
		Amount:          in.Amount,
		ExpectedVersion: in.Version,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, paymentResponse{Entry: entry, Payment: payment})
}

type balanceResponse struct {
	UserID     uuid.UUID    `json:"user_id"`
	OwedByUser money.Amount `json:"owed_by_user"`
	OwedToUser money.Amount `json:"owed_to_user"`
	Net        money.Amount `json:"net"`
}

func (a *API) handleMyBalance(w http.ResponseWriter, r *http.Request) {
	a.writeBalance(w, r, currentUser(r))
}

func (a *API) handleUserBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if userID != currentUser(r) {
		a.fail(w, r, fmt.Errorf("%w: balances are private", ledger.ErrForbidden))
		return
	}
	a.writeBalance(w, r, userID)
}

// handleMyEntries lists the caller's entries so they can find what to pay.
func (a *API) handleMyEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := a.Ledger.ListEntriesForUser(r.Context(), currentUser(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *API) writeBalance(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	exposure, err := a.Ledger.AggregateForUser(r.Context(), userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		UserID:     exposure.UserID,
		OwedByUser: exposure.OwedByUser,
		OwedToUser: exposure.OwedToUser,
		Net:        exposure.Net(),
	})
}
