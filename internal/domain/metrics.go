package domain

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// OutboxRecord is the persisted form of a dispatched event. The record is
// append-only: processed_at transitions nil to a timestamp exactly once and
// never reverts.
type OutboxRecord struct {
	ID            uuid.UUID
	EventType     string
	AggregateType string
	AggregateID   string
	Payload       []byte
	OccurredAt    time.Time
	ProcessedAt   *time.Time
}

// Processed reports whether the record has been delivered to async handlers.
func (r *OutboxRecord) Processed() bool {
	return r != nil && r.ProcessedAt != nil
}

// ClientDailyMetrics is one projected metric row, keyed by (client_id, date).
// Counters are adjusted by signed deltas, never recomputed from scratch, so
// partial event batches cannot corrupt them.
type ClientDailyMetrics struct {
	ClientID                    string
	Date                        string
	RiskScoreAvg                *float64
	RiskScoreAt                 time.Time
	TasksCompleted              int64
	TasksActive                 int64
	TasksBlocked                int64
	AlertsOpen                  int64
	ActionPlanVersionsActivated int64
	UpdatedAt                   time.Time
}

// CohortDailyMetrics is derived by summing member counters for a date and
// averaging risk scores over members that reported one. RiskScoreAvg is nil
// when no member has a score that day.
type CohortDailyMetrics struct {
	CohortTag                   string
	Date                        string
	RiskScoreAvg                *float64
	TasksCompleted              int64
	TasksActive                 int64
	TasksBlocked                int64
	AlertsOpen                  int64
	ActionPlanVersionsActivated int64
	ClientCount                 int
}

// MetricsDelta is the signed adjustment the projection engine derives from a
// batch of events for one (client_id, date) key. A nil RiskScore leaves the
// stored score untouched.
type MetricsDelta struct {
	ClientID                    string
	Date                        string
	TasksCompleted              int64
	TasksActive                 int64
	TasksBlocked                int64
	AlertsOpen                  int64
	ActionPlanVersionsActivated int64
	RiskScore                   *float64
	RiskScoreAt                 time.Time
}

// IsZero reports whether applying the delta would not change the stored row.
func (d MetricsDelta) IsZero() bool {
	return d.TasksCompleted == 0 &&
		d.TasksActive == 0 &&
		d.TasksBlocked == 0 &&
		d.AlertsOpen == 0 &&
		d.ActionPlanVersionsActivated == 0 &&
		d.RiskScore == nil
}

// ProjectionState is a projection's resume cursor: the timestamp and id of
// the last event reflected in the projected rows. The cursor is a total
// order over (occurred_at, event_id), with the id bytes breaking timestamp
// ties, so equal producer timestamps cannot make coverage ambiguous.
type ProjectionState struct {
	Name        string
	LastEventAt time.Time
	LastEventID uuid.UUID
	UpdatedAt   time.Time
}

// CompareEventPositions orders two (occurred_at, event_id) positions, with
// the uuid bytes as the tiebreaker. Matches Postgres uuid ordering.
func CompareEventPositions(at time.Time, id uuid.UUID, otherAt time.Time, otherID uuid.UUID) int {
	if at.Before(otherAt) {
		return -1
	}
	if at.After(otherAt) {
		return 1
	}
	return bytes.Compare(id[:], otherID[:])
}

// Covers reports whether an event occurrence is already reflected in the
// watermark and must not be re-applied.
func (s *ProjectionState) Covers(occurredAt time.Time, id uuid.UUID) bool {
	if s == nil {
		return false
	}
	return CompareEventPositions(occurredAt, id, s.LastEventAt, s.LastEventID) <= 0
}

// ClientProfile is the directory view of a client needed for authorization
// and cohort membership. OrganizationKey is the single canonical foreign key
// deciding same-organization access.
type ClientProfile struct {
	ClientID        string
	OrganizationKey string
	CohortTags      []string
}

// InCohort reports whether the client carries the given cohort tag.
func (p ClientProfile) InCohort(tag string) bool {
	for _, t := range p.CohortTags {
		if t == tag {
			return true
		}
	}
	return false
}
