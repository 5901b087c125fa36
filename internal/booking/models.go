package booking

import (
	"time"
)

// Status is human-managed except Draft, which marks an assistant-created
// booking that nobody has confirmed yet. The pipeline never changes the
// status of an existing booking.
type Status string

const (
	StatusDraft        Status = "Draft"
	StatusLead         Status = "Lead"
	StatusConfirmed    Status = "Confirmed"
	StatusContractSent Status = "Contract Sent"
	StatusDone         Status = "Done"
	StatusCancelled    Status = "Cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusLead, StatusConfirmed, StatusContractSent, StatusDone, StatusCancelled:
		return true
	}
	return false
}

// NoteEntry is one line of the append-only assistant note log.
type NoteEntry struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

// ProposedUpdates maps a field name to the value the assistant wants to
// write. Only fields that differed from the booking at proposal time are
// ever present; accept applies all of them atomically, reject drops all.
type ProposedUpdates map[string]interface{}

// Field names allowed in a ProposedUpdates set.
const (
	FieldVenueName   = "venue_name"
	FieldLocation    = "location"
	FieldFee         = "fee"
	FieldContactName = "contact_name"
	FieldStartTime   = "start_time"
	FieldEndTime     = "end_time"
)

type Booking struct {
	ID              string          `json:"id"`
	VenueName       string          `json:"venue_name"`
	Date            time.Time       `json:"date"`
	Location        string          `json:"location"`
	Status          Status          `json:"status"`
	Fee             float64         `json:"fee"`
	ContactName     string          `json:"contact_name"`
	ContactEmail    string          `json:"contact_email"`
	ContactPhone    string          `json:"contact_phone"`
	StartTime       string          `json:"start_time"`
	EndTime         string          `json:"end_time"`
	SourceMessageID string          `json:"source_message_id,omitempty"`
	Confidence      *float64        `json:"confidence,omitempty"`
	Notes           []NoteEntry     `json:"notes"`
	HasUnseenUpdate bool            `json:"has_unseen_update"`
	ProposedUpdates ProposedUpdates `json:"proposed_updates,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// HasPendingProposal reports whether the booking sits in the
// proposal-pending review state.
func (b *Booking) HasPendingProposal() bool {
	return len(b.ProposedUpdates) > 0
}
