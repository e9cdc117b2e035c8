package dto

import "time"

// Metadata discloses response freshness so callers can judge staleness.
// DataLagSeconds is nil when the lag could not be determined; the response
// degrades rather than failing.
type Metadata struct {
	GeneratedAt    time.Time `json:"generated_at"`
	SourceVersion  string    `json:"source_version"`
	DataLagSeconds *float64  `json:"data_lag_seconds,omitempty"`
}

// ClientDailyMetrics is one projected row in API form.
type ClientDailyMetrics struct {
	Date                        string   `json:"date"`
	RiskScoreAvg                *float64 `json:"risk_score_avg"`
	TasksCompleted              int64    `json:"tasks_completed"`
	TasksActive                 int64    `json:"tasks_active"`
	TasksBlocked                int64    `json:"tasks_blocked"`
	AlertsOpen                  int64    `json:"alerts_open"`
	ActionPlanVersionsActivated int64    `json:"action_plan_versions_activated"`
}

// CohortDailyMetrics is one aggregated cohort row in API form.
type CohortDailyMetrics struct {
	Date                        string   `json:"date"`
	RiskScoreAvg                *float64 `json:"risk_score_avg"`
	TasksCompleted              int64    `json:"tasks_completed"`
	TasksActive                 int64    `json:"tasks_active"`
	TasksBlocked                int64    `json:"tasks_blocked"`
	AlertsOpen                  int64    `json:"alerts_open"`
	ActionPlanVersionsActivated int64    `json:"action_plan_versions_activated"`
	ClientCount                 int      `json:"client_count"`
}

// ClientDailyResponse is the client daily series payload.
type ClientDailyResponse struct {
	ClientID string               `json:"client_id"`
	Metrics  []ClientDailyMetrics `json:"metrics"`
	Metadata Metadata             `json:"metadata"`
}

// ClientSummaryResponse is the client latest summary payload. LatestMetrics
// is nil when no row has been projected for the client yet.
type ClientSummaryResponse struct {
	ClientID      string              `json:"client_id"`
	LatestMetrics *ClientDailyMetrics `json:"latest_metrics"`
	Metadata      Metadata            `json:"metadata"`
}

// CohortDailyResponse is the cohort daily series payload.
type CohortDailyResponse struct {
	CohortTag string               `json:"cohort_tag"`
	Metrics   []CohortDailyMetrics `json:"metrics"`
	Metadata  Metadata             `json:"metadata"`
}

// CohortSummaryResponse is the cohort latest summary payload.
type CohortSummaryResponse struct {
	CohortTag     string              `json:"cohort_tag"`
	LatestMetrics *CohortDailyMetrics `json:"latest_metrics"`
	Metadata      Metadata            `json:"metadata"`
}

// IngestEventResponse acknowledges an accepted event.
type IngestEventResponse struct {
	EventID string `json:"event_id"`
	Status  string `json:"status"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
