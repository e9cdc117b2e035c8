package queue

import (
	"context"

	"github.com/Dominus-Gray/polaris-analytics/internal/domain"
)

// Publisher forwards a delivered event to an external queue.
type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}
