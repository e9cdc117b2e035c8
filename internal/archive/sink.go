package archive

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Dominus-Gray/polaris-analytics/internal/domain"
	"github.com/Dominus-Gray/polaris-analytics/internal/outbox"
)

// Repository is the destination of archived events.
type Repository interface {
	InsertBatch(ctx context.Context, events []domain.Event) (int, error)
}

// SinkConfig configures batching for the archive sink.
type SinkConfig struct {
	MaxBatchSize int
	FlushTimeout time.Duration
	BufferSize   int
}

func (c SinkConfig) normalize() SinkConfig {
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = 100
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = 5 * time.Second
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 1000
	}
	return c
}

// Sink buffers processed events and writes them to the archive in batches.
// Archiving is best-effort: a failed flush is logged and dropped, never
// blocking outbox delivery. The archive can always be rebuilt from the
// outbox table.
type Sink struct {
	repository Repository
	config     SinkConfig
	in         chan domain.Event
	log        *zap.Logger
}

// NewSink creates an archive sink.
func NewSink(repo Repository, cfg SinkConfig, log *zap.Logger) *Sink {
	cfg = cfg.normalize()
	return &Sink{
		repository: repo,
		config:     cfg,
		in:         make(chan domain.Event, cfg.BufferSize),
		log:        log,
	}
}

// Handler returns an outbox consumer that enqueues events for archiving.
// When the buffer is full the event is dropped rather than stalling the
// processor loop.
func (s *Sink) Handler() outbox.Handler {
	return func(ctx context.Context, event domain.Event) error {
		select {
		case s.in <- event:
		default:
			s.log.Warn("Archive buffer full, dropping event",
				zap.String("event_id", event.EventID().String()),
				zap.String("event_type", event.Type()))
		}
		return nil
	}
}

// Start runs the flush loop until the context is cancelled. The final
// partial batch is flushed on shutdown.
func (s *Sink) Start(ctx context.Context) {
	ticker := time.NewTicker(s.config.FlushTimeout)
	defer ticker.Stop()

	batch := make([]domain.Event, 0, s.config.MaxBatchSize)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Archive sink shutting down")
			if len(batch) > 0 {
				s.flush(context.Background(), batch)
			}
			return

		case event := <-s.in:
			batch = append(batch, event)

			if len(batch) >= s.config.MaxBatchSize {
				s.flush(ctx, batch)
				batch = make([]domain.Event, 0, s.config.MaxBatchSize)
				ticker.Reset(s.config.FlushTimeout)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				s.flush(ctx, batch)
				batch = make([]domain.Event, 0, s.config.MaxBatchSize)
			}
		}
	}
}

func (s *Sink) flush(ctx context.Context, batch []domain.Event) {
	insertedCount, err := s.repository.InsertBatch(ctx, batch)
	if err != nil {
		s.log.Error("Failed to archive batch",
			zap.Error(err),
			zap.Int("event_count", len(batch)))
		return
	}

	s.log.Info("Archived events",
		zap.Int("inserted", insertedCount),
		zap.Int("batch_size", len(batch)))
}
