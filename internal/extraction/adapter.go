package extraction

import (
	"context"

	"stagehand/internal/booking"
	"stagehand/internal/ingest"
)

// Adapter is the language-understanding boundary. Implementations must
// return either a fully parsed Result or an error; a partially parsed blob
// never crosses this interface. contextBookings is a small sample of
// recently confirmed bookings used as few-shot exemplars.
type Adapter interface {
	Extract(ctx context.Context, msg ingest.Message, contextBookings []booking.Booking) (*Result, error)
}
