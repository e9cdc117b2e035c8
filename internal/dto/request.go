package dto

import "encoding/json"

// DailyRangeRequest carries the query parameters of a daily series call.
type DailyRangeRequest struct {
	FromDate string `form:"from_date"`
	ToDate   string `form:"to_date"`
}

// IngestEventRequest is the ingestion payload for producers outside the
// process. Payload is passed to the event factory untouched.
type IngestEventRequest struct {
	EventType     string            `json:"event_type" binding:"required"`
	Payload       json.RawMessage   `json:"payload" binding:"required"`
	CorrelationID string            `json:"correlation_id"`
	CausationID   string            `json:"causation_id"`
	Attributes    map[string]string `json:"attributes"`
}
