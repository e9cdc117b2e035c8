package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TaskState is the lifecycle state of a care task.
type TaskState string

const (
	TaskStatePending    TaskState = "pending"
	TaskStateInProgress TaskState = "in_progress"
	TaskStateCompleted  TaskState = "completed"
	TaskStateBlocked    TaskState = "blocked"
	TaskStateCancelled  TaskState = "cancelled"
)

// IsValid reports whether the state is a known lifecycle state.
func (s TaskState) IsValid() bool {
	switch s {
	case TaskStatePending, TaskStateInProgress, TaskStateCompleted, TaskStateBlocked, TaskStateCancelled:
		return true
	default:
		return false
	}
}

// IsActive reports whether a task in this state counts toward the active
// tasks gauge. An empty or unknown state is not active, so transitions from
// it into an active state still produce a +1 delta.
func (s TaskState) IsActive() bool {
	return s == TaskStatePending || s == TaskStateInProgress
}

// TaskStateChanged records a task transitioning between lifecycle states.
type TaskStateChanged struct {
	base
	TaskID        string
	ClientID      string
	PreviousState TaskState
	NewState      TaskState
}

type taskStateChangedPayload struct {
	TaskID        string `json:"task_id"`
	ClientID      string `json:"client_id"`
	PreviousState string `json:"previous_state"`
	NewState      string `json:"new_state"`
}

// NewTaskStateChanged constructs a task state transition event.
func NewTaskStateChanged(taskID, clientID string, previous, next TaskState, opts ...Option) (*TaskStateChanged, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, fmt.Errorf("task state changed: %w", ErrAggregateIDRequired)
	}
	if strings.TrimSpace(clientID) == "" {
		return nil, fmt.Errorf("task state changed: %w", ErrClientIDRequired)
	}
	if !next.IsValid() {
		return nil, fmt.Errorf("task state changed: %w: %q", ErrInvalidTaskState, next)
	}

	return &TaskStateChanged{
		base:          newBase(opts...),
		TaskID:        taskID,
		ClientID:      strings.TrimSpace(clientID),
		PreviousState: previous,
		NewState:      next,
	}, nil
}

func (e *TaskStateChanged) Type() string            { return EventTypeTaskStateChanged }
func (e *TaskStateChanged) AggregateType() string   { return AggregateTypeTask }
func (e *TaskStateChanged) AggregateID() string     { return e.TaskID }
func (e *TaskStateChanged) SubjectClientID() string { return e.ClientID }

func (e *TaskStateChanged) encodePayload() (json.RawMessage, error) {
	return json.Marshal(taskStateChangedPayload{
		TaskID:        e.TaskID,
		ClientID:      e.ClientID,
		PreviousState: string(e.PreviousState),
		NewState:      string(e.NewState),
	})
}

// decodeTaskStateChanged rebuilds the variant without constructor validation.
// Payloads from producers we do not control may be partial; the projection
// engine degrades missing fields to zero-effect deltas.
func decodeTaskStateChanged(opts []Option, payload json.RawMessage) (Event, error) {
	var p taskStateChangedPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", EventTypeTaskStateChanged, err)
		}
	}

	return &TaskStateChanged{
		base:          newBase(opts...),
		TaskID:        p.TaskID,
		ClientID:      p.ClientID,
		PreviousState: TaskState(p.PreviousState),
		NewState:      TaskState(p.NewState),
	}, nil
}

// AlertCreated records a new open alert raised for a client.
type AlertCreated struct {
	base
	AlertID  string
	ClientID string
	Severity string
}

type alertCreatedPayload struct {
	AlertID  string `json:"alert_id"`
	ClientID string `json:"client_id"`
	Severity string `json:"severity,omitempty"`
}

// NewAlertCreated constructs an alert creation event.
func NewAlertCreated(alertID, clientID, severity string, opts ...Option) (*AlertCreated, error) {
	alertID = strings.TrimSpace(alertID)
	if alertID == "" {
		return nil, fmt.Errorf("alert created: %w", ErrAggregateIDRequired)
	}
	if strings.TrimSpace(clientID) == "" {
		return nil, fmt.Errorf("alert created: %w", ErrClientIDRequired)
	}

	return &AlertCreated{
		base:     newBase(opts...),
		AlertID:  alertID,
		ClientID: strings.TrimSpace(clientID),
		Severity: severity,
	}, nil
}

func (e *AlertCreated) Type() string            { return EventTypeAlertCreated }
func (e *AlertCreated) AggregateType() string   { return AggregateTypeAlert }
func (e *AlertCreated) AggregateID() string     { return e.AlertID }
func (e *AlertCreated) SubjectClientID() string { return e.ClientID }

func (e *AlertCreated) encodePayload() (json.RawMessage, error) {
	return json.Marshal(alertCreatedPayload{
		AlertID:  e.AlertID,
		ClientID: e.ClientID,
		Severity: e.Severity,
	})
}

func decodeAlertCreated(opts []Option, payload json.RawMessage) (Event, error) {
	var p alertCreatedPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", EventTypeAlertCreated, err)
		}
	}

	return &AlertCreated{
		base:     newBase(opts...),
		AlertID:  p.AlertID,
		ClientID: p.ClientID,
		Severity: p.Severity,
	}, nil
}

// AssessmentRecorded records a completed risk assessment and its score.
type AssessmentRecorded struct {
	base
	AssessmentID string
	ClientID     string
	RiskScore    *float64
}

type assessmentRecordedPayload struct {
	AssessmentID string   `json:"assessment_id"`
	ClientID     string   `json:"client_id"`
	RiskScore    *float64 `json:"risk_score"`
}

// NewAssessmentRecorded constructs an assessment event. The score pointer is
// nil when the assessment produced no numeric score.
func NewAssessmentRecorded(assessmentID, clientID string, riskScore *float64, opts ...Option) (*AssessmentRecorded, error) {
	assessmentID = strings.TrimSpace(assessmentID)
	if assessmentID == "" {
		return nil, fmt.Errorf("assessment recorded: %w", ErrAggregateIDRequired)
	}
	if strings.TrimSpace(clientID) == "" {
		return nil, fmt.Errorf("assessment recorded: %w", ErrClientIDRequired)
	}

	return &AssessmentRecorded{
		base:         newBase(opts...),
		AssessmentID: assessmentID,
		ClientID:     strings.TrimSpace(clientID),
		RiskScore:    riskScore,
	}, nil
}

func (e *AssessmentRecorded) Type() string            { return EventTypeAssessmentRecorded }
func (e *AssessmentRecorded) AggregateType() string   { return AggregateTypeAssessment }
func (e *AssessmentRecorded) AggregateID() string     { return e.AssessmentID }
func (e *AssessmentRecorded) SubjectClientID() string { return e.ClientID }

func (e *AssessmentRecorded) encodePayload() (json.RawMessage, error) {
	return json.Marshal(assessmentRecordedPayload{
		AssessmentID: e.AssessmentID,
		ClientID:     e.ClientID,
		RiskScore:    e.RiskScore,
	})
}

func decodeAssessmentRecorded(opts []Option, payload json.RawMessage) (Event, error) {
	var p assessmentRecordedPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", EventTypeAssessmentRecorded, err)
		}
	}

	return &AssessmentRecorded{
		base:         newBase(opts...),
		AssessmentID: p.AssessmentID,
		ClientID:     p.ClientID,
		RiskScore:    p.RiskScore,
	}, nil
}

// ActionPlanVersionActivated records a new action plan version going live.
type ActionPlanVersionActivated struct {
	base
	PlanID   string
	ClientID string
	Version  int
}

type actionPlanVersionActivatedPayload struct {
	PlanID   string `json:"plan_id"`
	ClientID string `json:"client_id"`
	Version  int    `json:"version"`
}

// NewActionPlanVersionActivated constructs an action plan activation event.
func NewActionPlanVersionActivated(planID, clientID string, version int, opts ...Option) (*ActionPlanVersionActivated, error) {
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return nil, fmt.Errorf("action plan version activated: %w", ErrAggregateIDRequired)
	}
	if strings.TrimSpace(clientID) == "" {
		return nil, fmt.Errorf("action plan version activated: %w", ErrClientIDRequired)
	}

	return &ActionPlanVersionActivated{
		base:     newBase(opts...),
		PlanID:   planID,
		ClientID: strings.TrimSpace(clientID),
		Version:  version,
	}, nil
}

func (e *ActionPlanVersionActivated) Type() string            { return EventTypeActionPlanVersionActivated }
func (e *ActionPlanVersionActivated) AggregateType() string   { return AggregateTypeActionPlan }
func (e *ActionPlanVersionActivated) AggregateID() string     { return e.PlanID }
func (e *ActionPlanVersionActivated) SubjectClientID() string { return e.ClientID }

func (e *ActionPlanVersionActivated) encodePayload() (json.RawMessage, error) {
	return json.Marshal(actionPlanVersionActivatedPayload{
		PlanID:   e.PlanID,
		ClientID: e.ClientID,
		Version:  e.Version,
	})
}

func decodeActionPlanVersionActivated(opts []Option, payload json.RawMessage) (Event, error) {
	var p actionPlanVersionActivatedPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", EventTypeActionPlanVersionActivated, err)
		}
	}

	return &ActionPlanVersionActivated{
		base:     newBase(opts...),
		PlanID:   p.PlanID,
		ClientID: p.ClientID,
		Version:  p.Version,
	}, nil
}

// Day formats a timestamp as the daily bucket key used by metric rows.
func Day(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
