package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Dominus-Gray/polaris-analytics/internal/domain"
)

// OutboxRepository persists dispatched events for reliable async delivery.
type OutboxRepository interface {
	// Insert appends one record. Inserting an id twice fails with
	// domain.ErrDuplicateRecord.
	Insert(ctx context.Context, record *domain.OutboxRecord) error

	// ListUnprocessed returns up to limit records with a nil processed_at,
	// ordered by occurred_at ascending.
	ListUnprocessed(ctx context.Context, limit int) ([]*domain.OutboxRecord, error)

	// MarkProcessed sets processed_at once. Marking an already processed
	// record is a no-op.
	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error

	// LatestOccurredAt returns the occurred_at of the most recently ingested
	// event, used for data-lag disclosure. ok is false when the outbox is
	// empty.
	LatestOccurredAt(ctx context.Context) (latest time.Time, ok bool, err error)
}

// ClientMetricsRepository stores projected daily metric rows.
type ClientMetricsRepository interface {
	// ApplyDelta upserts the (client_id, date) row with atomic counter
	// increments so overlapping projection cycles cannot lose updates.
	ApplyDelta(ctx context.Context, delta domain.MetricsDelta) error

	// Range returns rows for a client between fromDay and toDay inclusive,
	// ordered by date ascending.
	Range(ctx context.Context, clientID, fromDay, toDay string) ([]domain.ClientDailyMetrics, error)

	// Latest returns the most recent row for a client, or nil when the
	// client has no projected rows yet.
	Latest(ctx context.Context, clientID string) (*domain.ClientDailyMetrics, error)
}

// ProjectionStateRepository stores per-projection resume cursors.
type ProjectionStateRepository interface {
	// Get returns the cursor for a projection, or nil when the projection
	// has never advanced.
	Get(ctx context.Context, name string) (*domain.ProjectionState, error)

	// Advance moves the cursor forward. The cursor never moves backwards.
	Advance(ctx context.Context, name string, lastEventAt time.Time, lastEventID uuid.UUID) error
}

// ClientDirectory resolves client profiles for authorization and cohort
// membership. The directory is owned by the surrounding business domain;
// this subsystem only reads it.
type ClientDirectory interface {
	// Get fails with domain.ErrClientNotFound for unknown clients.
	Get(ctx context.Context, clientID string) (*domain.ClientProfile, error)

	// ListByCohort returns the members carrying the cohort tag. An unknown
	// tag fails with domain.ErrCohortNotFound.
	ListByCohort(ctx context.Context, cohortTag string) ([]domain.ClientProfile, error)
}
