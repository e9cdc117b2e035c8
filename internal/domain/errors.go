package domain

import "errors"

var (
	// ErrUnknownEventType signals a producer/consumer version mismatch: the
	// discriminant is not in the decoder table.
	ErrUnknownEventType = errors.New("unknown event type")

	ErrClientIDRequired    = errors.New("client id is required")
	ErrAggregateIDRequired = errors.New("aggregate id is required")
	ErrInvalidTaskState    = errors.New("invalid task state")
	ErrClientNotFound      = errors.New("client not found")
	ErrCohortNotFound      = errors.New("cohort not found")
	ErrDuplicateRecord     = errors.New("outbox record already exists")
)
