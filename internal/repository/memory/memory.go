package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Dominus-Gray/polaris-analytics/internal/domain"
)

// OutboxStore is a map-backed outbox for tests and local runs.
type OutboxStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*domain.OutboxRecord
}

// NewOutboxStore creates an empty outbox store.
func NewOutboxStore() *OutboxStore {
	return &OutboxStore{records: make(map[uuid.UUID]*domain.OutboxRecord)}
}

func (s *OutboxStore) Insert(_ context.Context, record *domain.OutboxRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ID]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateRecord, record.ID)
	}

	stored := *record
	s.records[record.ID] = &stored

	return nil
}

func (s *OutboxStore) ListUnprocessed(_ context.Context, limit int) ([]*domain.OutboxRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.OutboxRecord
	for _, record := range s.records {
		if record.ProcessedAt == nil {
			copied := *record
			out = append(out, &copied)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return domain.CompareEventPositions(out[i].OccurredAt, out[i].ID, out[j].OccurredAt, out[j].ID) < 0
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (s *OutboxStore) MarkProcessed(_ context.Context, id uuid.UUID, processedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return fmt.Errorf("outbox record %s not found", id)
	}
	if record.ProcessedAt != nil {
		return nil
	}

	at := processedAt
	record.ProcessedAt = &at

	return nil
}

func (s *OutboxStore) LatestOccurredAt(_ context.Context) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest time.Time
	for _, record := range s.records {
		if record.OccurredAt.After(latest) {
			latest = record.OccurredAt
		}
	}

	return latest, !latest.IsZero(), nil
}

// Get returns a copy of one record, for test assertions.
func (s *OutboxStore) Get(id uuid.UUID) (*domain.OutboxRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, false
	}

	copied := *record
	return &copied, true
}

// Len returns the number of stored records.
func (s *OutboxStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// MetricsStore is a map-backed daily metrics store.
type MetricsStore struct {
	mu   sync.RWMutex
	rows map[string]*domain.ClientDailyMetrics
}

// NewMetricsStore creates an empty metrics store.
func NewMetricsStore() *MetricsStore {
	return &MetricsStore{rows: make(map[string]*domain.ClientDailyMetrics)}
}

func metricsKey(clientID, date string) string {
	return clientID + "|" + date
}

func (s *MetricsStore) ApplyDelta(_ context.Context, delta domain.MetricsDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := metricsKey(delta.ClientID, delta.Date)
	row, ok := s.rows[key]
	if !ok {
		row = &domain.ClientDailyMetrics{
			ClientID: delta.ClientID,
			Date:     delta.Date,
		}
		s.rows[key] = row
	}

	row.TasksCompleted += delta.TasksCompleted
	row.TasksActive += delta.TasksActive
	row.TasksBlocked += delta.TasksBlocked
	row.AlertsOpen += delta.AlertsOpen
	row.ActionPlanVersionsActivated += delta.ActionPlanVersionsActivated
	// Last write wins by the score's event timestamp, so a backfill cycle
	// cannot regress a score written by a later live event.
	if delta.RiskScore != nil && !delta.RiskScoreAt.Before(row.RiskScoreAt) {
		score := *delta.RiskScore
		row.RiskScoreAvg = &score
		row.RiskScoreAt = delta.RiskScoreAt
	}
	row.UpdatedAt = time.Now().UTC()

	return nil
}

func (s *MetricsStore) Range(_ context.Context, clientID, fromDay, toDay string) ([]domain.ClientDailyMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ClientDailyMetrics
	for _, row := range s.rows {
		if row.ClientID == clientID && row.Date >= fromDay && row.Date <= toDay {
			out = append(out, *row)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })

	return out, nil
}

func (s *MetricsStore) Latest(_ context.Context, clientID string) (*domain.ClientDailyMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.ClientDailyMetrics
	for _, row := range s.rows {
		if row.ClientID != clientID {
			continue
		}
		if latest == nil || row.Date > latest.Date {
			copied := *row
			latest = &copied
		}
	}

	return latest, nil
}

// StateStore is a map-backed projection cursor store.
type StateStore struct {
	mu     sync.RWMutex
	states map[string]*domain.ProjectionState
}

// NewStateStore creates an empty cursor store.
func NewStateStore() *StateStore {
	return &StateStore{states: make(map[string]*domain.ProjectionState)}
}

func (s *StateStore) Get(_ context.Context, name string) (*domain.ProjectionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[name]
	if !ok {
		return nil, nil
	}

	copied := *state
	return &copied, nil
}

func (s *StateStore) Advance(_ context.Context, name string, lastEventAt time.Time, lastEventID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[name]
	if !ok {
		state = &domain.ProjectionState{Name: name}
		s.states[name] = state
	}

	if domain.CompareEventPositions(lastEventAt, lastEventID, state.LastEventAt, state.LastEventID) <= 0 {
		return nil
	}

	state.LastEventAt = lastEventAt
	state.LastEventID = lastEventID
	state.UpdatedAt = time.Now().UTC()

	return nil
}

// Directory is a map-backed client directory, seeded by tests or local
// bootstrap.
type Directory struct {
	mu       sync.RWMutex
	profiles map[string]domain.ClientProfile
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{profiles: make(map[string]domain.ClientProfile)}
}

// Put stores or replaces a profile.
func (d *Directory) Put(profile domain.ClientProfile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[profile.ClientID] = profile
}

func (d *Directory) Get(_ context.Context, clientID string) (*domain.ClientProfile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	profile, ok := d.profiles[clientID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrClientNotFound, clientID)
	}

	copied := profile
	return &copied, nil
}

func (d *Directory) ListByCohort(_ context.Context, cohortTag string) ([]domain.ClientProfile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []domain.ClientProfile
	for _, profile := range d.profiles {
		if profile.InCohort(cohortTag) {
			out = append(out, profile)
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrCohortNotFound, cohortTag)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })

	return out, nil
}
