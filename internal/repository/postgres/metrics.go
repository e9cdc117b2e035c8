package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Dominus-Gray/polaris-analytics/internal/domain"
)

// MetricsRepository stores projected daily rows in Postgres.
type MetricsRepository struct {
	db  *DB
	log *zap.Logger
}

// NewMetricsRepository creates the metrics repository.
func NewMetricsRepository(db *DB, log *zap.Logger) *MetricsRepository {
	return &MetricsRepository{db: db, log: log}
}

// ApplyDelta upserts one (client_id, date) row. Counter columns are adjusted
// with additive expressions inside the conflict clause so two overlapping
// projection cycles cannot lose each other's updates.
func (r *MetricsRepository) ApplyDelta(ctx context.Context, delta domain.MetricsDelta) error {
	now := time.Now().UTC()

	row := clientDailyMetricsModel{
		ClientID:                    delta.ClientID,
		Date:                        delta.Date,
		RiskScoreAvg:                delta.RiskScore,
		RiskScoreAt:                 riskScoreAt(delta),
		TasksCompleted:              delta.TasksCompleted,
		TasksActive:                 delta.TasksActive,
		TasksBlocked:                delta.TasksBlocked,
		AlertsOpen:                  delta.AlertsOpen,
		ActionPlanVersionsActivated: delta.ActionPlanVersionsActivated,
		UpdatedAt:                   now,
	}

	assignments := map[string]any{
		"tasks_completed":                gorm.Expr("client_daily_metrics.tasks_completed + ?", delta.TasksCompleted),
		"tasks_active":                   gorm.Expr("client_daily_metrics.tasks_active + ?", delta.TasksActive),
		"tasks_blocked":                  gorm.Expr("client_daily_metrics.tasks_blocked + ?", delta.TasksBlocked),
		"alerts_open":                    gorm.Expr("client_daily_metrics.alerts_open + ?", delta.AlertsOpen),
		"action_plan_versions_activated": gorm.Expr("client_daily_metrics.action_plan_versions_activated + ?", delta.ActionPlanVersionsActivated),
		"updated_at":                     now,
	}
	if delta.RiskScore != nil {
		// Last write wins by the score's event timestamp. A backfill cycle
		// running after a live cycle must not regress the stored score.
		newer := "client_daily_metrics.risk_score_at IS NULL OR client_daily_metrics.risk_score_at <= ?"
		assignments["risk_score_avg"] = gorm.Expr(
			"CASE WHEN "+newer+" THEN ? ELSE client_daily_metrics.risk_score_avg END",
			delta.RiskScoreAt, *delta.RiskScore)
		assignments["risk_score_at"] = gorm.Expr(
			"CASE WHEN "+newer+" THEN ? ELSE client_daily_metrics.risk_score_at END",
			delta.RiskScoreAt, delta.RiskScoreAt)
	}

	err := r.db.Gorm.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "client_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert metrics for %s/%s: %w", delta.ClientID, delta.Date, err)
	}

	return nil
}

func riskScoreAt(delta domain.MetricsDelta) *time.Time {
	if delta.RiskScore == nil {
		return nil
	}
	at := delta.RiskScoreAt
	return &at
}

func (r *MetricsRepository) Range(ctx context.Context, clientID, fromDay, toDay string) ([]domain.ClientDailyMetrics, error) {
	var rows []clientDailyMetricsModel

	err := r.db.Gorm.WithContext(ctx).
		Where("client_id = ? AND date >= ? AND date <= ?", clientID, fromDay, toDay).
		Order("date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics range for %s: %w", clientID, err)
	}

	out := make([]domain.ClientDailyMetrics, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}

	return out, nil
}

func (r *MetricsRepository) Latest(ctx context.Context, clientID string) (*domain.ClientDailyMetrics, error) {
	var row clientDailyMetricsModel

	err := r.db.Gorm.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("date DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest metrics for %s: %w", clientID, err)
	}

	metrics := row.toDomain()
	return &metrics, nil
}
