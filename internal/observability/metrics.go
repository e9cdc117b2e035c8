package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Metrics wraps the otel instruments for ingestion, projection cycles and
// API calls. A nil *Metrics is valid and records nothing, so tests can pass
// nil instead of wiring a meter provider.
type Metrics struct {
	eventsIngested     metric.Int64Counter
	projectionCycles   metric.Int64Counter
	projectionDuration metric.Float64Histogram
	apiRequests        metric.Int64Counter
	apiDuration        metric.Float64Histogram
	dataLag            metric.Float64Gauge

	lagWarnThreshold time.Duration
	log              *zap.Logger
}

// New creates the instrument set. A nil provider falls back to the global
// meter provider.
func New(provider metric.MeterProvider, lagWarnThreshold time.Duration, log *zap.Logger) (*Metrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	if log == nil {
		log = zap.NewNop()
	}

	meter := provider.Meter("polaris.analytics")

	m := &Metrics{
		lagWarnThreshold: lagWarnThreshold,
		log:              log,
	}

	var err error

	m.eventsIngested, err = meter.Int64Counter(
		"analytics.events.ingested",
		metric.WithDescription("Number of events written to the outbox"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create analytics.events.ingested counter: %w", err)
	}

	m.projectionCycles, err = meter.Int64Counter(
		"analytics.projection.cycles",
		metric.WithDescription("Number of projection cycles by result"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create analytics.projection.cycles counter: %w", err)
	}

	m.projectionDuration, err = meter.Float64Histogram(
		"analytics.projection.duration",
		metric.WithDescription("Time taken per projection cycle"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create analytics.projection.duration histogram: %w", err)
	}

	m.apiRequests, err = meter.Int64Counter(
		"analytics.api.requests",
		metric.WithDescription("Number of analytics API calls by endpoint, method and status"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create analytics.api.requests counter: %w", err)
	}

	m.apiDuration, err = meter.Float64Histogram(
		"analytics.api.duration",
		metric.WithDescription("Time taken per analytics API call"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create analytics.api.duration histogram: %w", err)
	}

	m.dataLag, err = meter.Float64Gauge(
		"analytics.data.lag",
		metric.WithDescription("Age of the most recently ingested event"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create analytics.data.lag gauge: %w", err)
	}

	return m, nil
}

// EventIngested counts one event written to the outbox.
func (m *Metrics) EventIngested(ctx context.Context, eventType, source string) {
	if m == nil {
		return
	}
	m.eventsIngested.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("source", source),
	))
}

// ProjectionCycle records one projection cycle and its duration.
func (m *Metrics) ProjectionCycle(ctx context.Context, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("result", result))
	m.projectionCycles.Add(ctx, 1, attrs)
	m.projectionDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// APICall records one analytics API call and its duration.
func (m *Metrics) APICall(ctx context.Context, endpoint, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("method", method),
		attribute.Int("status", status),
	)
	m.apiRequests.Add(ctx, 1, attrs)
	m.apiDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordLag updates the data-lag gauge and warns once the configured
// threshold is exceeded.
func (m *Metrics) RecordLag(ctx context.Context, lag time.Duration) {
	if m == nil {
		return
	}
	m.dataLag.Record(ctx, lag.Seconds())

	if m.lagWarnThreshold > 0 && lag > m.lagWarnThreshold {
		m.log.Warn("Projection data lag exceeds threshold",
			zap.Duration("lag", lag),
			zap.Duration("threshold", m.lagWarnThreshold))
	}
}
