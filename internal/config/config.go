package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Service holds process-wide settings.
type Service struct {
	Environment string `envconfig:"SERVICE_ENVIRONMENT" default:"development"`
	APIPort     string `envconfig:"SERVICE_API_PORT" default:"8080"`
	Version     string `envconfig:"SERVICE_VERSION" default:"dev"`
}

// Postgres holds the primary store connection settings.
type Postgres struct {
	DSN string `envconfig:"POSTGRES_DSN" required:"true"`
}

// Outbox configures the dispatcher and the background processor.
type Outbox struct {
	SyncDispatchEnabled bool          `envconfig:"OUTBOX_SYNC_DISPATCH_ENABLED" default:"true"`
	PollInterval        time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"2s"`
	BatchSize           int           `envconfig:"OUTBOX_BATCH_SIZE" default:"100"`
	MarkPolicy          string        `envconfig:"OUTBOX_MARK_POLICY" default:"always"`
	HealthCheckPort     string        `envconfig:"OUTBOX_HEALTH_CHECK_PORT" default:"8081"`
}

// Analytics configures the read API and freshness reporting.
type Analytics struct {
	LagWarnThreshold time.Duration `envconfig:"ANALYTICS_LAG_WARN_THRESHOLD" default:"60s"`
}

// SQS configures the optional relay of processed events to an external queue.
// The relay is disabled when QueueURL is empty.
type SQS struct {
	Endpoint string `envconfig:"SQS_ENDPOINT"`
	QueueURL string `envconfig:"SQS_QUEUE_URL"`
	Region   string `envconfig:"SQS_REGION" default:"eu-central-1"`
}

// ClickHouse configures the optional event archive sink. The archive is
// disabled when Host is empty.
type ClickHouse struct {
	Host            string `envconfig:"CLICKHOUSE_HOST"`
	Port            string `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	Database        string `envconfig:"CLICKHOUSE_DB" default:"default"`
	User            string `envconfig:"CLICKHOUSE_USER" default:""`
	Password        string `envconfig:"CLICKHOUSE_PASSWORD" default:""`
	UseTLS          bool   `envconfig:"CLICKHOUSE_USE_TLS" default:"false"`
	MaxOpenConns    int    `envconfig:"CLICKHOUSE_MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns    int    `envconfig:"CLICKHOUSE_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime int    `envconfig:"CLICKHOUSE_CONN_MAX_LIFETIME_SEC" default:"3600"`
}

// Config is the process configuration, populated from the environment.
type Config struct {
	Service    Service
	Postgres   Postgres
	Outbox     Outbox
	Analytics  Analytics
	SQS        SQS
	ClickHouse ClickHouse
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
