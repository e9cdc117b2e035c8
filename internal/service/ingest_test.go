package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/Dominus-Gray/polaris-analytics/internal/domain"
	"github.com/Dominus-Gray/polaris-analytics/internal/dto"
	"github.com/Dominus-Gray/polaris-analytics/internal/outbox"
	"github.com/Dominus-Gray/polaris-analytics/internal/repository/memory"
)

func newIngestFixture() (*IngestService, *memory.OutboxStore) {
	store := memory.NewOutboxStore()
	dispatcher := outbox.NewDispatcher(store, outbox.NewRegistry(), nil, zap.NewNop())
	return NewIngestService(dispatcher, zap.NewNop()), store
}

func TestIngest_AcceptsKnownEvent(t *testing.T) {
	service, store := newIngestFixture()

	resp, err := service.Ingest(context.Background(), dto.IngestEventRequest{
		EventType:     domain.EventTypeAlertCreated,
		Payload:       []byte(`{"alert_id":"alert-1","client_id":"client-1","severity":"high"}`),
		CorrelationID: "corr-1",
	})

	assert.NoError(t, err)
	assert.Equal(t, "accepted", resp.Status)

	eventID, err := uuid.Parse(resp.EventID)
	assert.NoError(t, err)

	record, ok := store.Get(eventID)
	assert.True(t, ok)
	assert.Equal(t, domain.EventTypeAlertCreated, record.EventType)

	event, err := domain.Decode(record.Payload)
	assert.NoError(t, err)
	assert.Equal(t, "client-1", event.SubjectClientID())
	assert.Equal(t, "corr-1", event.Meta().CorrelationID)
}

func TestIngest_UnknownEventType(t *testing.T) {
	service, store := newIngestFixture()

	_, err := service.Ingest(context.Background(), dto.IngestEventRequest{
		EventType: "SOMETHING_ELSE",
		Payload:   []byte(`{}`),
	})

	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
	assert.Equal(t, `unknown event_type "SOMETHING_ELSE"`, validationErr.Message)
	assert.Equal(t, 0, store.Len())
}
