package projection

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Dominus-Gray/polaris-analytics/internal/domain"
	"github.com/Dominus-Gray/polaris-analytics/internal/observability"
	"github.com/Dominus-Gray/polaris-analytics/internal/outbox"
	"github.com/Dominus-Gray/polaris-analytics/internal/repository"
)

// Name is the projection's cursor key in the projection state store.
const Name = "client_daily_metrics"

// Engine folds events into per-(client, date) metric deltas and upserts the
// daily rows. The watermark guards replays: events already covered by the
// cursor are never re-applied, so running the engine twice over the same
// batch produces identical rows.
type Engine struct {
	metrics repository.ClientMetricsRepository
	state   repository.ProjectionStateRepository
	obs     *observability.Metrics
	log     *zap.Logger
	now     func() time.Time
}

// NewEngine creates a projection engine.
func NewEngine(metrics repository.ClientMetricsRepository, state repository.ProjectionStateRepository, obs *observability.Metrics, log *zap.Logger) *Engine {
	return &Engine{
		metrics: metrics,
		state:   state,
		obs:     obs,
		log:     log,
		now:     time.Now,
	}
}

// Handler adapts the engine to the outbox consumer contract, projecting one
// event per delivery.
func (e *Engine) Handler() outbox.Handler {
	return func(ctx context.Context, event domain.Event) error {
		return e.Apply(ctx, []domain.Event{event})
	}
}

// Apply projects a batch of events. Deltas are summed per (client, date) key
// before touching the store, the upserts use atomic increments, and the
// cursor advances only after every delta landed.
func (e *Engine) Apply(ctx context.Context, events []domain.Event) error {
	start := e.now()

	err := e.apply(ctx, events)

	result := "success"
	if err != nil {
		result = "error"
	}
	e.obs.ProjectionCycle(ctx, result, e.now().Sub(start))

	return err
}

func (e *Engine) apply(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	cursor, err := e.state.Get(ctx, Name)
	if err != nil {
		return fmt.Errorf("failed to load projection cursor: %w", err)
	}

	var (
		deltas     = make(map[string]*domain.MetricsDelta)
		lastAt     time.Time
		lastID     uuid.UUID
		applicable int
	)

	for _, event := range events {
		if cursor.Covers(event.OccurredAt(), event.EventID()) {
			continue
		}
		applicable++

		if at := event.OccurredAt(); domain.CompareEventPositions(at, event.EventID(), lastAt, lastID) > 0 {
			lastAt = at
			lastID = event.EventID()
		}

		fold(deltas, event)
	}

	if applicable == 0 {
		return nil
	}

	keys := make([]string, 0, len(deltas))
	for key := range deltas {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		delta := deltas[key]
		if delta.IsZero() {
			continue
		}
		if err := e.metrics.ApplyDelta(ctx, *delta); err != nil {
			return fmt.Errorf("failed to apply metrics delta for %s/%s: %w", delta.ClientID, delta.Date, err)
		}
	}

	if err := e.state.Advance(ctx, Name, lastAt, lastID); err != nil {
		return fmt.Errorf("failed to advance projection cursor: %w", err)
	}

	return nil
}

// fold accumulates one event's delta into the per-key map. Malformed or
// missing payload fields degrade to a zero-effect delta for that event; the
// engine tolerates garbage from producers it does not control.
func fold(deltas map[string]*domain.MetricsDelta, event domain.Event) {
	clientID := event.SubjectClientID()
	if clientID == "" {
		return
	}

	day := domain.Day(event.OccurredAt())
	key := clientID + "|" + day

	delta, ok := deltas[key]
	if !ok {
		delta = &domain.MetricsDelta{ClientID: clientID, Date: day}
		deltas[key] = delta
	}

	switch ev := event.(type) {
	case *domain.TaskStateChanged:
		foldTaskStateChanged(delta, ev)
	case *domain.AlertCreated:
		delta.AlertsOpen++
	case *domain.AssessmentRecorded:
		// Last write wins by event timestamp order within the batch.
		if ev.RiskScore != nil && !event.OccurredAt().Before(delta.RiskScoreAt) {
			score := *ev.RiskScore
			delta.RiskScore = &score
			delta.RiskScoreAt = event.OccurredAt()
		}
	case *domain.ActionPlanVersionActivated:
		delta.ActionPlanVersionsActivated++
	}
}

func foldTaskStateChanged(delta *domain.MetricsDelta, ev *domain.TaskStateChanged) {
	if !ev.NewState.IsValid() {
		return
	}

	switch ev.NewState {
	case domain.TaskStateCompleted:
		delta.TasksCompleted++
	case domain.TaskStateBlocked:
		delta.TasksBlocked++
	}

	wasActive := ev.PreviousState.IsActive()
	isActive := ev.NewState.IsActive()

	switch {
	case wasActive && !isActive:
		delta.TasksActive--
	case !wasActive && isActive:
		delta.TasksActive++
	}
}
