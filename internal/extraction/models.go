package extraction

import (
	"fmt"
	"time"
)

// Result is a structured booking candidate pulled out of one message.
// Ephemeral: consumed by matching/reconciliation or discarded on failure.
type Result struct {
	VenueName    string
	Date         *time.Time
	Location     string
	Fee          *float64
	ContactName  string
	ContactEmail string
	StartTime    string
	EndTime      string
	Confidence   float64
	Notes        string
}

// Error marks an extraction failure. Non-fatal to a batch: the message is
// still marked processed and no booking is touched.
type Error struct {
	MessageID string
	Reason    string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed for message %s: %s: %v", e.MessageID, e.Reason, e.Err)
	}
	return fmt.Sprintf("extraction failed for message %s: %s", e.MessageID, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}
