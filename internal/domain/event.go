package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event type discriminants. The set is closed: adding a variant means adding
// a decoder to the table below.
const (
	EventTypeTaskStateChanged           = "TASK_STATE_CHANGED"
	EventTypeAlertCreated               = "ALERT_CREATED"
	EventTypeAssessmentRecorded         = "ASSESSMENT_RECORDED"
	EventTypeActionPlanVersionActivated = "ACTION_PLAN_VERSION_ACTIVATED"
)

const (
	AggregateTypeTask       = "task"
	AggregateTypeAlert      = "alert"
	AggregateTypeAssessment = "assessment"
	AggregateTypeActionPlan = "action_plan"
)

// Meta carries the tracing identifiers and the open metadata map shared by
// every event variant.
type Meta struct {
	CorrelationID string            `json:"correlation_id,omitempty"`
	CausationID   string            `json:"causation_id,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

// Event is a domain event. event_type, aggregate_type and aggregate_id are
// fixed by the concrete variant at construction and never mutated.
type Event interface {
	EventID() uuid.UUID
	Type() string
	AggregateType() string
	AggregateID() string
	// SubjectClientID identifies the client the event is about, used as the
	// projection entity key.
	SubjectClientID() string
	OccurredAt() time.Time
	Meta() Meta
}

type base struct {
	id         uuid.UUID
	occurredAt time.Time
	meta       Meta
}

func (b base) EventID() uuid.UUID    { return b.id }
func (b base) OccurredAt() time.Time { return b.occurredAt }
func (b base) Meta() Meta            { return b.meta }

// Option customizes event construction.
type Option func(*base)

// WithEventID overrides the generated event id. Used when rehydrating a
// serialized event.
func WithEventID(id uuid.UUID) Option {
	return func(b *base) { b.id = id }
}

// WithOccurredAt overrides the construction-time occurrence timestamp.
func WithOccurredAt(t time.Time) Option {
	return func(b *base) { b.occurredAt = t.UTC() }
}

// WithCorrelation sets the correlation id.
func WithCorrelation(id string) Option {
	return func(b *base) { b.meta.CorrelationID = id }
}

// WithCausation sets the causation id.
func WithCausation(id string) Option {
	return func(b *base) { b.meta.CausationID = id }
}

// WithAttributes merges attributes into the open metadata map.
func WithAttributes(attrs map[string]string) Option {
	return func(b *base) {
		if b.meta.Attributes == nil {
			b.meta.Attributes = make(map[string]string, len(attrs))
		}
		for k, v := range attrs {
			b.meta.Attributes[k] = v
		}
	}
}

func newBase(opts ...Option) base {
	b := base{
		id:         uuid.New(),
		occurredAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// envelope is the canonical serialized form of an event.
type envelope struct {
	EventID       uuid.UUID         `json:"event_id"`
	EventType     string            `json:"event_type"`
	AggregateType string            `json:"aggregate_type"`
	AggregateID   string            `json:"aggregate_id"`
	OccurredAt    time.Time         `json:"occurred_at"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	CausationID   string            `json:"causation_id,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	Payload       json.RawMessage   `json:"payload"`
}

type payloadEncoder interface {
	encodePayload() (json.RawMessage, error)
}

// decoders maps an event_type discriminant to the constructor that rebuilds
// the concrete variant from its serialized payload.
var decoders = map[string]func(b []Option, payload json.RawMessage) (Event, error){
	EventTypeTaskStateChanged:           decodeTaskStateChanged,
	EventTypeAlertCreated:               decodeAlertCreated,
	EventTypeAssessmentRecorded:         decodeAssessmentRecorded,
	EventTypeActionPlanVersionActivated: decodeActionPlanVersionActivated,
}

// EventTypes returns the known discriminants in a stable order.
func EventTypes() []string {
	return []string{
		EventTypeTaskStateChanged,
		EventTypeAlertCreated,
		EventTypeAssessmentRecorded,
		EventTypeActionPlanVersionActivated,
	}
}

// Encode serializes an event into its canonical envelope form.
func Encode(event Event) ([]byte, error) {
	enc, ok := event.(payloadEncoder)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnknownEventType, event)
	}

	payload, err := enc.encodePayload()
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload for %s: %w", event.Type(), err)
	}

	meta := event.Meta()
	env := envelope{
		EventID:       event.EventID(),
		EventType:     event.Type(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		OccurredAt:    event.OccurredAt().UTC(),
		CorrelationID: meta.CorrelationID,
		CausationID:   meta.CausationID,
		Attributes:    meta.Attributes,
		Payload:       payload,
	}

	return json.Marshal(env)
}

// Decode reverses Encode using the decoder table. An unregistered
// discriminant fails with ErrUnknownEventType.
func Decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event envelope: %w", err)
	}

	opts := []Option{
		WithEventID(env.EventID),
		WithOccurredAt(env.OccurredAt),
		WithCorrelation(env.CorrelationID),
		WithCausation(env.CausationID),
	}
	if len(env.Attributes) > 0 {
		opts = append(opts, WithAttributes(env.Attributes))
	}

	return NewFromType(env.EventType, env.Payload, opts...)
}

// NewFromType constructs a concrete event variant from a discriminant and a
// raw payload. This is the factory used by external producers.
func NewFromType(eventType string, payload json.RawMessage, opts ...Option) (Event, error) {
	decode, ok := decoders[eventType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
	}

	return decode(opts, payload)
}
