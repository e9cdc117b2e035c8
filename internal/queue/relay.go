package queue

import (
	"context"

	"github.com/Dominus-Gray/polaris-analytics/internal/domain"
	"github.com/Dominus-Gray/polaris-analytics/internal/outbox"
)

// Relay adapts a Publisher to the outbox consumer contract so every
// delivered event is forwarded downstream. Publish failures propagate to the
// processor, which logs them and marks per its policy.
func Relay(publisher Publisher) outbox.Handler {
	return func(ctx context.Context, event domain.Event) error {
		return publisher.Publish(ctx, event)
	}
}
