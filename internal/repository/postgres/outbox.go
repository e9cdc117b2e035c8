package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Dominus-Gray/polaris-analytics/internal/domain"
)

// OutboxRepository is the Postgres-backed outbox.
type OutboxRepository struct {
	db  *DB
	log *zap.Logger
}

// NewOutboxRepository creates the outbox repository.
func NewOutboxRepository(db *DB, log *zap.Logger) *OutboxRepository {
	return &OutboxRepository{db: db, log: log}
}

func (r *OutboxRepository) Insert(ctx context.Context, record *domain.OutboxRecord) error {
	row := outboxModelFromDomain(record)

	if err := r.db.Gorm.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateRecord, record.ID)
		}
		return fmt.Errorf("failed to insert outbox record: %w", err)
	}

	return nil
}

func (r *OutboxRepository) ListUnprocessed(ctx context.Context, limit int) ([]*domain.OutboxRecord, error) {
	var rows []outboxRecordModel

	err := r.db.Gorm.WithContext(ctx).
		Where("processed_at IS NULL").
		Order("occurred_at ASC, id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed outbox records: %w", err)
	}

	out := make([]*domain.OutboxRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}

	return out, nil
}

// MarkProcessed sets processed_at once. The guard on the update keeps the
// transition nil to timestamp irreversible even if two processors race.
func (r *OutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	err := r.db.Gorm.WithContext(ctx).
		Model(&outboxRecordModel{}).
		Where("id = ? AND processed_at IS NULL", id).
		Update("processed_at", processedAt).Error
	if err != nil {
		return fmt.Errorf("failed to mark outbox record %s processed: %w", id, err)
	}

	return nil
}

func (r *OutboxRepository) LatestOccurredAt(ctx context.Context) (time.Time, bool, error) {
	var row outboxRecordModel

	err := r.db.Gorm.WithContext(ctx).
		Order("occurred_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to resolve latest outbox record: %w", err)
	}

	return row.OccurredAt, true, nil
}
