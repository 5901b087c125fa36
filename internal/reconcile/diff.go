package reconcile

import (
	"fmt"
	"strings"
	"time"

	"stagehand/internal/booking"
	"stagehand/internal/extraction"
	"stagehand/internal/ingest"
)

// BuildProposal diffs an extraction against a matched booking and returns
// the fields whose extracted value is present and differs. Absent extracted
// values never enter the proposal, so accepting one can only overwrite a
// field with something the message actually said.
func BuildProposal(res *extraction.Result, target *booking.Booking) booking.ProposedUpdates {
	updates := booking.ProposedUpdates{}

	if res.VenueName != "" && res.VenueName != target.VenueName {
		updates[booking.FieldVenueName] = res.VenueName
	}
	if res.Location != "" && res.Location != target.Location {
		updates[booking.FieldLocation] = res.Location
	}
	if res.Fee != nil && *res.Fee != target.Fee {
		updates[booking.FieldFee] = *res.Fee
	}
	if res.ContactName != "" && res.ContactName != target.ContactName {
		updates[booking.FieldContactName] = res.ContactName
	}
	if res.StartTime != "" && res.StartTime != target.StartTime {
		updates[booking.FieldStartTime] = res.StartTime
	}
	if res.EndTime != "" && res.EndTime != target.EndTime {
		updates[booking.FieldEndTime] = res.EndTime
	}

	return updates
}

// proposalNote formats the append-only note line for a proposal.
func proposalNote(notes string, at time.Time) booking.NoteEntry {
	return booking.NoteEntry{
		At:   at,
		Text: fmt.Sprintf("[%s] Update proposal: %s", at.UTC().Format(time.RFC3339), notes),
	}
}

// dayWindow returns the inclusive UTC calendar-day bounds containing t.
func dayWindow(t time.Time) (time.Time, time.Time) {
	u := t.UTC()
	from := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24*time.Hour - time.Nanosecond)
	return from, to
}

// senderName pulls a display name out of an RFC 5322 From value, falling
// back to everything before the angle bracket.
func senderName(msg ingest.Message) string {
	s := msg.Sender
	if idx := strings.Index(s, "<"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `"`))
}

func senderEmail(msg ingest.Message) string {
	if msg.SenderAddress != "" {
		return msg.SenderAddress
	}
	s := msg.Sender
	if open := strings.Index(s, "<"); open >= 0 {
		if close := strings.Index(s[open:], ">"); close > 0 {
			return strings.TrimSpace(s[open+1 : open+close])
		}
	}
	return strings.TrimSpace(s)
}
