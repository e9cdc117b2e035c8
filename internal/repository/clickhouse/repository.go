package clickhouse

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Dominus-Gray/polaris-analytics/internal/domain"
)

// Repository archives processed events in ClickHouse for long-term audit
// queries. The projection store stays in Postgres; this table is append-only.
type Repository struct {
	client *Client
	log    *zap.Logger
}

// NewRepository creates a new ClickHouse repository.
func NewRepository(client *Client, log *zap.Logger) *Repository {
	return &Repository{
		client: client,
		log:    log,
	}
}

// InitSchema creates the archive table. ReplacingMergeTree collapses the
// duplicates that at-least-once delivery produces.
func (r *Repository) InitSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS event_archive (
		event_id String,
		event_type LowCardinality(String),
		aggregate_type LowCardinality(String),
		aggregate_id String,
		client_id String,
		occurred_at DateTime64(3),
		envelope String,
		archived_at DateTime64(3) DEFAULT now64(3)
	) ENGINE = ReplacingMergeTree(archived_at)
	PRIMARY KEY (event_id)
	ORDER BY (event_id, occurred_at)
	PARTITION BY toYYYYMM(occurred_at)
	SETTINGS index_granularity = 8192
	`

	if err := r.client.Conn().Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create event_archive table: %w", err)
	}

	r.log.Info("ClickHouse schema initialized successfully")
	return nil
}

// InsertBatch inserts a batch of events into the archive.
func (r *Repository) InsertBatch(ctx context.Context, events []domain.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch, err := r.client.Conn().PrepareBatch(ctx, "INSERT INTO event_archive")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare batch: %w", err)
	}

	insertedCount := 0
	for _, event := range events {
		envelope, err := domain.Encode(event)
		if err != nil {
			r.log.Error("Skipping unencodable event",
				zap.String("event_id", event.EventID().String()),
				zap.Error(err))
			continue
		}

		err = batch.Append(
			event.EventID().String(),
			event.Type(),
			event.AggregateType(),
			event.AggregateID(),
			event.SubjectClientID(),
			event.OccurredAt(),
			string(envelope),
			time.Now().UTC(),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to append event to batch: %w", err)
		}
		insertedCount++
	}

	if insertedCount == 0 {
		return 0, nil
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("failed to send batch: %w", err)
	}

	return insertedCount, nil
}

// Ping checks if the ClickHouse connection is alive.
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Conn().Ping(ctx)
}

// Close closes the underlying connection.
func (r *Repository) Close() error {
	return r.client.Close()
}
