package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Dominus-Gray/polaris-analytics/internal/domain"
	"github.com/Dominus-Gray/polaris-analytics/internal/dto"
	"github.com/Dominus-Gray/polaris-analytics/internal/outbox"
)

// IngestService accepts events from producers outside the process and routes
// them through the outbox dispatcher.
type IngestService struct {
	dispatcher *outbox.Dispatcher
	log        *zap.Logger
}

// NewIngestService creates the ingestion service.
func NewIngestService(dispatcher *outbox.Dispatcher, log *zap.Logger) *IngestService {
	return &IngestService{
		dispatcher: dispatcher,
		log:        log,
	}
}

// Ingest builds a domain event from the request and dispatches it. An
// unknown event type is a caller error; an outbox write failure propagates.
func (s *IngestService) Ingest(ctx context.Context, req dto.IngestEventRequest) (*dto.IngestEventResponse, error) {
	var opts []domain.Option
	if req.CorrelationID != "" {
		opts = append(opts, domain.WithCorrelation(req.CorrelationID))
	}
	if req.CausationID != "" {
		opts = append(opts, domain.WithCausation(req.CausationID))
	}
	if len(req.Attributes) > 0 {
		opts = append(opts, domain.WithAttributes(req.Attributes))
	}

	event, err := domain.NewFromType(req.EventType, req.Payload, opts...)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownEventType) {
			return nil, validationErrorf(fmt.Sprintf("unknown event_type %q", req.EventType))
		}
		return nil, err
	}

	if err := s.dispatcher.Dispatch(ctx, event); err != nil {
		return nil, err
	}

	s.log.Info("Event ingested",
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.Type()))

	return &dto.IngestEventResponse{
		EventID: event.EventID().String(),
		Status:  "accepted",
	}, nil
}
