package outbox

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Dominus-Gray/polaris-analytics/internal/domain"
	"github.com/Dominus-Gray/polaris-analytics/internal/observability"
	"github.com/Dominus-Gray/polaris-analytics/internal/repository"
)

// Dispatcher is the write path of the outbox. Dispatch persists the event
// before anything else happens; the outbox write is the only reliable
// delivery channel. Synchronous handlers are a best-effort side channel that
// can be toggled off process-wide for batch and test scenarios.
type Dispatcher struct {
	outbox      repository.OutboxRepository
	registry    *Registry
	obs         *observability.Metrics
	log         *zap.Logger
	syncEnabled atomic.Bool
	now         func() time.Time
}

// NewDispatcher creates a dispatcher with synchronous handlers enabled.
func NewDispatcher(outbox repository.OutboxRepository, registry *Registry, obs *observability.Metrics, log *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		outbox:   outbox,
		registry: registry,
		obs:      obs,
		log:      log,
		now:      time.Now,
	}
	d.syncEnabled.Store(true)

	return d
}

// SetSyncDispatch toggles the process-wide synchronous handler path.
func (d *Dispatcher) SetSyncDispatch(enabled bool) {
	d.syncEnabled.Store(enabled)
}

// NewRecord serializes an event into its outbox form.
func NewRecord(event domain.Event) (*domain.OutboxRecord, error) {
	payload, err := domain.Encode(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event %s: %w", event.EventID(), err)
	}

	return &domain.OutboxRecord{
		ID:            event.EventID(),
		EventType:     event.Type(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		Payload:       payload,
		OccurredAt:    event.OccurredAt().UTC(),
	}, nil
}

// Dispatch writes the event to the outbox and, when the synchronous path is
// enabled, invokes registered handlers in registration order. An outbox
// write failure is fatal and propagates; handler failures are logged and
// swallowed so one failing handler never blocks the others.
func (d *Dispatcher) Dispatch(ctx context.Context, event domain.Event) error {
	record, err := NewRecord(event)
	if err != nil {
		return err
	}

	if err := d.outbox.Insert(ctx, record); err != nil {
		return fmt.Errorf("failed to write event %s to outbox: %w", event.EventID(), err)
	}

	d.obs.EventIngested(ctx, event.Type(), "dispatcher")

	if !d.syncEnabled.Load() {
		return nil
	}

	for i, handler := range d.registry.HandlersFor(event.Type()) {
		if err := handler(ctx, event); err != nil {
			d.log.Warn("Synchronous handler failed",
				zap.String("event_id", event.EventID().String()),
				zap.String("event_type", event.Type()),
				zap.Int("handler_index", i),
				zap.Error(err))
		}
	}

	return nil
}
