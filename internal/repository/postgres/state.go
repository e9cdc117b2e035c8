package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Dominus-Gray/polaris-analytics/internal/domain"
)

// StateRepository stores projection cursors in Postgres.
type StateRepository struct {
	db  *DB
	log *zap.Logger
}

// NewStateRepository creates the cursor repository.
func NewStateRepository(db *DB, log *zap.Logger) *StateRepository {
	return &StateRepository{db: db, log: log}
}

func (r *StateRepository) Get(ctx context.Context, name string) (*domain.ProjectionState, error) {
	var row projectionStateModel

	err := r.db.Gorm.WithContext(ctx).
		Where("name = ?", name).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query projection state %s: %w", name, err)
	}

	return &domain.ProjectionState{
		Name:        row.Name,
		LastEventAt: row.LastEventAt,
		LastEventID: row.LastEventID,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

// Advance moves the cursor forward. The conflict clause compares the full
// (last_event_at, last_event_id) position so a stale backfill cannot rewind
// a live cursor and timestamp ties resolve by uuid order, matching
// domain.CompareEventPositions.
func (r *StateRepository) Advance(ctx context.Context, name string, lastEventAt time.Time, lastEventID uuid.UUID) error {
	now := time.Now().UTC()

	row := projectionStateModel{
		Name:        name,
		LastEventAt: lastEventAt,
		LastEventID: lastEventID,
		UpdatedAt:   now,
	}

	moved := "projection_states.last_event_at < ? OR (projection_states.last_event_at = ? AND projection_states.last_event_id < ?)"

	err := r.db.Gorm.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.Assignments(map[string]any{
			"last_event_at": gorm.Expr(
				"CASE WHEN "+moved+" THEN ? ELSE projection_states.last_event_at END",
				lastEventAt, lastEventAt, lastEventID, lastEventAt),
			"last_event_id": gorm.Expr(
				"CASE WHEN "+moved+" THEN ? ELSE projection_states.last_event_id END",
				lastEventAt, lastEventAt, lastEventID, lastEventID),
			"updated_at": now,
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to advance projection state %s: %w", name, err)
	}

	return nil
}
