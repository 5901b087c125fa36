package extraction

import (
	"encoding/json"
	"fmt"
	"strings"

	"stagehand/internal/booking"
	"stagehand/internal/ingest"
)

type exemplar struct {
	VenueName   string  `json:"venue_name"`
	Date        string  `json:"date"`
	Location    string  `json:"location"`
	Fee         float64 `json:"fee"`
	ContactName string  `json:"contact_name"`
	StartTime   string  `json:"start_time,omitempty"`
	EndTime     string  `json:"end_time,omitempty"`
}

// buildPrompt embeds the message and up to five confirmed bookings as
// exemplars, biasing the model toward the organization's typical booking
// shape. This is a prompting strategy, not training.
func buildPrompt(msg ingest.Message, contextBookings []booking.Booking) string {
	exemplars := make([]exemplar, 0, len(contextBookings))
	for _, b := range contextBookings {
		exemplars = append(exemplars, exemplar{
			VenueName:   b.VenueName,
			Date:        b.Date.Format("2006-01-02"),
			Location:    b.Location,
			Fee:         b.Fee,
			ContactName: b.ContactName,
			StartTime:   b.StartTime,
			EndTime:     b.EndTime,
		})
	}

	exemplarJSON, err := json.MarshalIndent(exemplars, "", "  ")
	if err != nil {
		exemplarJSON = []byte("[]")
	}

	var sb strings.Builder
	sb.WriteString("You are a booking assistant for a performing band. Extract performance booking details from the email below.\n\n")
	sb.WriteString("Recent confirmed bookings, as examples of the expected shape:\n")
	sb.Write(exemplarJSON)
	sb.WriteString("\n\nEmail:\n")
	fmt.Fprintf(&sb, "Subject: %s\n", msg.Subject)
	fmt.Fprintf(&sb, "From: %s\n", msg.Sender)
	fmt.Fprintf(&sb, "Body:\n%s\n\n", msg.Body)
	sb.WriteString("Instructions:\n")
	sb.WriteString("1. Extract venue_name, date (ISO 8601), location, fee (number), contact_name, contact_email, start_time, end_time.\n")
	sb.WriteString("2. Set ai_confidence between 0.0 and 1.0.\n")
	sb.WriteString("3. Set ai_notes to a short bullet-point summary of what you found.\n")
	sb.WriteString("4. Omit keys you cannot determine. Return ONLY valid JSON.\n")

	return sb.String()
}
