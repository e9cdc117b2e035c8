package outbox

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/Dominus-Gray/polaris-analytics/internal/domain"
	"github.com/Dominus-Gray/polaris-analytics/internal/repository/memory"
)

// MockOutboxRepository is a mock implementation of repository.OutboxRepository
type MockOutboxRepository struct {
	mock.Mock
	memory.OutboxStore
}

func (m *MockOutboxRepository) Insert(ctx context.Context, record *domain.OutboxRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func mustAlertCreated(t *testing.T) *domain.AlertCreated {
	t.Helper()
	event, err := domain.NewAlertCreated("alert-1", "client-1", "high")
	assert.NoError(t, err)
	return event
}

func TestDispatcher_Dispatch_WritesOutboxFirst(t *testing.T) {
	store := memory.NewOutboxStore()
	registry := NewRegistry()
	dispatcher := NewDispatcher(store, registry, nil, zap.NewNop())

	event := mustAlertCreated(t)

	err := dispatcher.Dispatch(context.Background(), event)

	assert.NoError(t, err)
	record, ok := store.Get(event.EventID())
	assert.True(t, ok)
	assert.Equal(t, domain.EventTypeAlertCreated, record.EventType)
	assert.Equal(t, "alert-1", record.AggregateID)
	assert.Nil(t, record.ProcessedAt)
}

func TestDispatcher_Dispatch_OutboxFailurePropagates(t *testing.T) {
	repo := new(MockOutboxRepository)
	insertErr := errors.New("connection refused")
	repo.On("Insert", mock.Anything, mock.AnythingOfType("*domain.OutboxRecord")).Return(insertErr)

	registry := NewRegistry()
	handlerCalled := false
	assert.NoError(t, registry.Register(domain.EventTypeAlertCreated, func(ctx context.Context, event domain.Event) error {
		handlerCalled = true
		return nil
	}))

	dispatcher := NewDispatcher(repo, registry, nil, zap.NewNop())

	err := dispatcher.Dispatch(context.Background(), mustAlertCreated(t))

	assert.ErrorIs(t, err, insertErr)
	assert.False(t, handlerCalled, "handlers must not run when the outbox write fails")
	repo.AssertExpectations(t)
}

func TestDispatcher_Dispatch_SyncHandlersInOrder(t *testing.T) {
	store := memory.NewOutboxStore()
	registry := NewRegistry()

	var calls []string
	assert.NoError(t, registry.Register(domain.EventTypeAlertCreated, func(ctx context.Context, event domain.Event) error {
		calls = append(calls, "first")
		return nil
	}))
	assert.NoError(t, registry.Register(domain.EventTypeAlertCreated, func(ctx context.Context, event domain.Event) error {
		calls = append(calls, "second")
		return nil
	}))

	dispatcher := NewDispatcher(store, registry, nil, zap.NewNop())

	assert.NoError(t, dispatcher.Dispatch(context.Background(), mustAlertCreated(t)))
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestDispatcher_Dispatch_HandlerFailureSwallowed(t *testing.T) {
	store := memory.NewOutboxStore()
	registry := NewRegistry()

	secondCalled := false
	assert.NoError(t, registry.Register(domain.EventTypeAlertCreated, func(ctx context.Context, event domain.Event) error {
		return errors.New("projection exploded")
	}))
	assert.NoError(t, registry.Register(domain.EventTypeAlertCreated, func(ctx context.Context, event domain.Event) error {
		secondCalled = true
		return nil
	}))

	dispatcher := NewDispatcher(store, registry, nil, zap.NewNop())
	event := mustAlertCreated(t)

	err := dispatcher.Dispatch(context.Background(), event)

	assert.NoError(t, err, "handler failures never fail the dispatch")
	assert.True(t, secondCalled, "one failing handler must not block the others")
	_, ok := store.Get(event.EventID())
	assert.True(t, ok)
}

func TestDispatcher_Dispatch_SyncDisabled(t *testing.T) {
	store := memory.NewOutboxStore()
	registry := NewRegistry()

	handlerCalled := false
	assert.NoError(t, registry.Register(domain.EventTypeAlertCreated, func(ctx context.Context, event domain.Event) error {
		handlerCalled = true
		return nil
	}))

	dispatcher := NewDispatcher(store, registry, nil, zap.NewNop())
	dispatcher.SetSyncDispatch(false)

	event := mustAlertCreated(t)
	assert.NoError(t, dispatcher.Dispatch(context.Background(), event))

	assert.False(t, handlerCalled, "sync path disabled, only the outbox write happens")
	_, ok := store.Get(event.EventID())
	assert.True(t, ok, "outbox write is unconditional")
}

func TestDispatcher_Dispatch_DuplicateEventID(t *testing.T) {
	store := memory.NewOutboxStore()
	dispatcher := NewDispatcher(store, NewRegistry(), nil, zap.NewNop())

	event := mustAlertCreated(t)
	assert.NoError(t, dispatcher.Dispatch(context.Background(), event))

	err := dispatcher.Dispatch(context.Background(), event)
	assert.ErrorIs(t, err, domain.ErrDuplicateRecord)
	assert.Equal(t, 1, store.Len())
}
