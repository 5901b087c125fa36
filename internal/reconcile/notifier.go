package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"

	"stagehand/internal/broker"
	"stagehand/internal/logger"
	"stagehand/pkg/models"
)

// Notifier publishes pipeline events after mutations. Events are hints for
// downstream consumers; a publish failure never fails the batch run.
type Notifier struct {
	producer broker.Producer
	topic    string
	logger   logger.Logger
}

func NewNotifier(producer broker.Producer, topic string, log logger.Logger) *Notifier {
	return &Notifier{producer: producer, topic: topic, logger: log}
}

func (n *Notifier) DraftCreated(ctx context.Context, bookingID, messageID string) {
	n.publish(ctx, models.EventDraftCreated, bookingID, messageID)
}

func (n *Notifier) ProposalRaised(ctx context.Context, bookingID, messageID string) {
	n.publish(ctx, models.EventProposalRaised, bookingID, messageID)
}

func (n *Notifier) publish(ctx context.Context, eventType, bookingID, messageID string) {
	if n == nil || n.producer == nil {
		return
	}

	event := models.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		BookingID: bookingID,
		MessageID: messageID,
		Timestamp: time.Now().UTC(),
	}

	if err := n.producer.Publish(ctx, n.topic, event); err != nil {
		n.logger.WarnwCtx(ctx, "Failed to publish event",
			"event_type", eventType,
			"booking_id", bookingID,
			"error", err,
		)
	}
}
