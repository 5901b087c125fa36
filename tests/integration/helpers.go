package integration

import (
	"time"

	"stagehand/internal/booking"
	"stagehand/internal/ingest"
	"stagehand/internal/logger"
)

func createTestLogger() logger.Logger {
	return logger.NopLogger()
}

func createTestMessage(id, subject string, receivedAt time.Time) *ingest.Message {
	return &ingest.Message{
		ID:            id,
		Subject:       subject,
		Sender:        "Jane Booker <jane@venue.com>",
		SenderAddress: "jane@venue.com",
		Body:          "We would like to book you.",
		Folder:        "INBOX",
		ReceivedAt:    receivedAt,
	}
}

func createTestBooking(venue string, date time.Time, status booking.Status) *booking.Booking {
	return &booking.Booking{
		VenueName:    venue,
		Date:         date,
		Location:     "NYC",
		Status:       status,
		Fee:          500,
		ContactName:  "Jane Booker",
		ContactEmail: "jane@venue.com",
		StartTime:    "20:00",
		EndTime:      "23:00",
	}
}
