package ledger

import (
	"github.com/billbatista/acasinha-splits/eventlogger"
)

// Audit event types emitted by the Service.
const (
	EventCreated    = "event.created"
	EventRenamed    = "event.renamed"
	EventCancelled  = "event.cancelled"
	EventDeleted    = "event.deleted"
	EntryAdded      = "entry.added"
	EntryAdjusted   = "entry.adjusted"
	EntryDeleted    = "entry.deleted"
	PaymentRecorded = "payment.recorded"
)

type EventCreatedData struct {
	EventID      string   `json:"event_id"`
	Title        string   `json:"title"`
	Total        string   `json:"total"`
	CreatedBy    string   `json:"created_by"`
	Participants []string `json:"participants"`
}

type PaymentRecordedData struct {
	PaymentID string `json:"payment_id"`
	EntryID   string `json:"entry_id"`
	PayerID   string `json:"payer_id"`
	Amount    string `json:"amount"`
	Remaining string `json:"remaining"`
	Settled   bool   `json:"settled"`
	Version   int64  `json:"version"`
}

type noopAuditor struct{}

func (noopAuditor) Log(eventlogger.Event) {}
