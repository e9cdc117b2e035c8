package postgres

import (
	"time"

	"github.com/google/uuid"

	"github.com/Dominus-Gray/polaris-analytics/internal/domain"
)

type outboxRecordModel struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	EventType     string     `gorm:"column:event_type;size:64;not null;index"`
	AggregateType string     `gorm:"column:aggregate_type;size:64;not null"`
	AggregateID   string     `gorm:"column:aggregate_id;size:128;not null"`
	Payload       []byte     `gorm:"column:payload;type:jsonb;not null"`
	OccurredAt    time.Time  `gorm:"column:occurred_at;not null;index:idx_outbox_pending,priority:2"`
	ProcessedAt   *time.Time `gorm:"column:processed_at;index:idx_outbox_pending,priority:1"`
}

func (outboxRecordModel) TableName() string { return "outbox_records" }

func (m outboxRecordModel) toDomain() *domain.OutboxRecord {
	return &domain.OutboxRecord{
		ID:            m.ID,
		EventType:     m.EventType,
		AggregateType: m.AggregateType,
		AggregateID:   m.AggregateID,
		Payload:       m.Payload,
		OccurredAt:    m.OccurredAt,
		ProcessedAt:   m.ProcessedAt,
	}
}

func outboxModelFromDomain(record *domain.OutboxRecord) outboxRecordModel {
	return outboxRecordModel{
		ID:            record.ID,
		EventType:     record.EventType,
		AggregateType: record.AggregateType,
		AggregateID:   record.AggregateID,
		Payload:       record.Payload,
		OccurredAt:    record.OccurredAt,
		ProcessedAt:   record.ProcessedAt,
	}
}

type clientDailyMetricsModel struct {
	ClientID                    string     `gorm:"column:client_id;size:128;primaryKey"`
	Date                        string     `gorm:"column:date;size:10;primaryKey"`
	RiskScoreAvg                *float64   `gorm:"column:risk_score_avg"`
	RiskScoreAt                 *time.Time `gorm:"column:risk_score_at"`
	TasksCompleted              int64      `gorm:"column:tasks_completed;not null;default:0"`
	TasksActive                 int64      `gorm:"column:tasks_active;not null;default:0"`
	TasksBlocked                int64      `gorm:"column:tasks_blocked;not null;default:0"`
	AlertsOpen                  int64      `gorm:"column:alerts_open;not null;default:0"`
	ActionPlanVersionsActivated int64      `gorm:"column:action_plan_versions_activated;not null;default:0"`
	UpdatedAt                   time.Time  `gorm:"column:updated_at;not null"`
}

func (clientDailyMetricsModel) TableName() string { return "client_daily_metrics" }

func (m clientDailyMetricsModel) toDomain() domain.ClientDailyMetrics {
	metrics := domain.ClientDailyMetrics{
		ClientID:                    m.ClientID,
		Date:                        m.Date,
		RiskScoreAvg:                m.RiskScoreAvg,
		TasksCompleted:              m.TasksCompleted,
		TasksActive:                 m.TasksActive,
		TasksBlocked:                m.TasksBlocked,
		AlertsOpen:                  m.AlertsOpen,
		ActionPlanVersionsActivated: m.ActionPlanVersionsActivated,
		UpdatedAt:                   m.UpdatedAt,
	}
	if m.RiskScoreAt != nil {
		metrics.RiskScoreAt = *m.RiskScoreAt
	}
	return metrics
}

type projectionStateModel struct {
	Name        string    `gorm:"column:name;size:128;primaryKey"`
	LastEventAt time.Time `gorm:"column:last_event_at;not null"`
	LastEventID uuid.UUID `gorm:"column:last_event_id;type:uuid"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null"`
}

func (projectionStateModel) TableName() string { return "projection_states" }

type clientProfileModel struct {
	ClientID        string `gorm:"column:client_id;size:128;primaryKey"`
	OrganizationKey string `gorm:"column:organization_key;size:128;not null;index"`
}

func (clientProfileModel) TableName() string { return "client_profiles" }

type cohortMemberModel struct {
	CohortTag string `gorm:"column:cohort_tag;size:128;primaryKey"`
	ClientID  string `gorm:"column:client_id;size:128;primaryKey"`
}

func (cohortMemberModel) TableName() string { return "cohort_members" }
