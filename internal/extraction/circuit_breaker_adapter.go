package extraction

import (
	"context"
	"fmt"

	"stagehand/internal/booking"
	"stagehand/internal/ingest"
	"stagehand/pkg/circuitbreaker"
)

// CircuitBreakerAdapter shields the pipeline from a flapping extraction
// endpoint. An open breaker fails fast; the batch processor treats that
// like any other extraction failure.
type CircuitBreakerAdapter struct {
	adapter Adapter
	cb      *circuitbreaker.Wrapper
	name    string
}

func NewCircuitBreakerAdapter(adapter Adapter, name string, cfg circuitbreaker.Config) *CircuitBreakerAdapter {
	return &CircuitBreakerAdapter{
		adapter: adapter,
		cb:      circuitbreaker.NewWrapper(cfg),
		name:    name,
	}
}

func (a *CircuitBreakerAdapter) Extract(ctx context.Context, msg ingest.Message, contextBookings []booking.Booking) (*Result, error) {
	result, err := a.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return a.adapter.Extract(ctx, msg, contextBookings)
	})

	a.cb.RecordRequest(err == nil)

	if err != nil {
		if a.cb.IsOpen() {
			return nil, &Error{MessageID: msg.ID, Reason: fmt.Sprintf("circuit breaker open for %s", a.name), Err: err}
		}
		return nil, err
	}

	typed, ok := result.(*Result)
	if !ok || typed == nil {
		return nil, &Error{MessageID: msg.ID, Reason: "adapter returned invalid result type"}
	}

	return typed, nil
}

func (a *CircuitBreakerAdapter) IsOpen() bool {
	return a.cb.IsOpen()
}
