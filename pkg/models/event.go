package models

import "time"

// Event types published after a reconciliation mutation. Consumers (the
// dashboard refresher) treat them as hints, not as a source of truth.
const (
	EventDraftCreated   = "draft_created"
	EventProposalRaised = "proposal_raised"
)

type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	BookingID string                 `json:"booking_id"`
	MessageID string                 `json:"message_id"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "validation error for field '" + e.Field + "': " + e.Message
}

func ValidateEvent(ev *Event) error {
	if ev == nil {
		return &ValidationError{Field: "event", Message: "event cannot be nil"}
	}
	if ev.ID == "" {
		return &ValidationError{Field: "id", Message: "event ID is required"}
	}
	switch ev.Type {
	case EventDraftCreated, EventProposalRaised:
	default:
		return &ValidationError{Field: "type", Message: "unknown event type " + ev.Type}
	}
	if ev.BookingID == "" {
		return &ValidationError{Field: "booking_id", Message: "booking ID is required"}
	}
	if ev.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Message: "event timestamp is required"}
	}
	return nil
}
