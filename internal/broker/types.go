package broker

import (
	"context"

	"stagehand/pkg/models"
)

// Producer publishes pipeline events for downstream consumers. The
// reconciliation loop works without one; a nil producer disables events.
type Producer interface {
	Publish(ctx context.Context, topic string, event models.Event) error
	Close() error
}
