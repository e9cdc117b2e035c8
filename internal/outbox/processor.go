package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Dominus-Gray/polaris-analytics/internal/domain"
	"github.com/Dominus-Gray/polaris-analytics/internal/repository"
)

// MarkPolicy decides when a processed batch row advances processed_at.
type MarkPolicy string

const (
	// MarkAlways advances processed_at after all handlers were attempted,
	// success or failure. At-most-once per consumer, guaranteed forward
	// progress.
	MarkAlways MarkPolicy = "always"

	// MarkOnSuccess leaves the row pending when any handler fails, so the
	// next poll retries it. Requires idempotent handlers.
	MarkOnSuccess MarkPolicy = "on_success"
)

// ParseMarkPolicy validates a configured policy string.
func ParseMarkPolicy(raw string) (MarkPolicy, error) {
	switch MarkPolicy(raw) {
	case MarkAlways, MarkOnSuccess:
		return MarkPolicy(raw), nil
	default:
		return "", fmt.Errorf("invalid mark policy %q (supported: always, on_success)", raw)
	}
}

// Processor states.
const (
	stateStopped int32 = iota
	stateRunning
	stateStopping
)

var ErrProcessorRunning = errors.New("outbox processor is already running")

// ProcessorConfig configures the poll loop.
type ProcessorConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MarkPolicy   MarkPolicy
}

func (cfg *ProcessorConfig) normalize() {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MarkPolicy == "" {
		cfg.MarkPolicy = MarkAlways
	}
}

// BatchResult summarizes one poll cycle.
type BatchResult struct {
	Fetched   int
	Delivered int
	Failed    int
}

// Processor is the single long-lived background consumer of the outbox. It
// polls unprocessed records in occurred_at order, fans each one out to the
// registered async handlers, and marks rows per the configured policy.
//
// Run exactly one processor per outbox: there is no row-level lease, so
// concurrent instances double-deliver.
type Processor struct {
	repo     repository.OutboxRepository
	registry *Registry
	cfg      ProcessorConfig
	log      *zap.Logger

	state atomic.Int32

	// mu guards stop, which is recreated on every Start so the processor
	// can be restarted after a Stop.
	mu   sync.Mutex
	stop chan struct{}

	// now and sleep are injectable so tests drive cycles deterministically.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
}

// NewProcessor creates a stopped processor.
func NewProcessor(repo repository.OutboxRepository, registry *Registry, cfg ProcessorConfig, log *zap.Logger) *Processor {
	cfg.normalize()

	p := &Processor{
		repo:     repo,
		registry: registry,
		cfg:      cfg,
		log:      log,
		stop:     make(chan struct{}),
		now:      time.Now,
	}
	p.sleep = p.waitInterval

	return p
}

// waitInterval blocks for d, returning false when the processor should exit.
func (p *Processor) waitInterval(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-p.stopChan():
		return false
	case <-timer.C:
		return true
	}
}

// Start runs the poll loop until Stop is called or ctx is cancelled. The
// stop request is checked once per iteration; the in-flight batch always
// finishes first (non-preemptive cancellation). A stopped processor can be
// started again.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	if !p.state.CompareAndSwap(stateStopped, stateRunning) {
		p.mu.Unlock()
		return ErrProcessorRunning
	}
	p.stop = make(chan struct{})
	p.mu.Unlock()
	defer p.state.Store(stateStopped)

	p.log.Info("Outbox processor started",
		zap.Duration("poll_interval", p.cfg.PollInterval),
		zap.Int("batch_size", p.cfg.BatchSize),
		zap.String("mark_policy", string(p.cfg.MarkPolicy)))

	for {
		result, err := p.RunOnce(ctx)
		if err != nil {
			// The loop never stops on a batch-level error; the poll
			// interval is the backoff.
			p.log.Error("Outbox batch failed", zap.Error(err))
		} else if result.Fetched > 0 {
			p.log.Info("Outbox batch processed",
				zap.Int("fetched", result.Fetched),
				zap.Int("delivered", result.Delivered),
				zap.Int("failed", result.Failed))
		}

		if p.stopRequested(ctx) {
			p.state.Store(stateStopping)
			p.log.Info("Outbox processor stopping")
			return nil
		}

		if !p.sleep(ctx, p.cfg.PollInterval) {
			p.state.Store(stateStopping)
			p.log.Info("Outbox processor stopping")
			return nil
		}
	}
}

// Stop requests cooperative shutdown. Safe to call more than once.
func (p *Processor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.CompareAndSwap(stateRunning, stateStopping) {
		close(p.stop)
	}
}

func (p *Processor) stopChan() chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stop
}

// Running reports whether the poll loop is active.
func (p *Processor) Running() bool {
	return p.state.Load() == stateRunning
}

func (p *Processor) stopRequested(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-p.stopChan():
		return true
	default:
		return false
	}
}

// RunOnce fetches and delivers a single bounded batch. Exposed so tests and
// backfills can drive cycles without the poll loop.
func (p *Processor) RunOnce(ctx context.Context) (BatchResult, error) {
	var result BatchResult

	records, err := p.repo.ListUnprocessed(ctx, p.cfg.BatchSize)
	if err != nil {
		return result, fmt.Errorf("failed to list unprocessed outbox records: %w", err)
	}

	result.Fetched = len(records)

	for _, record := range records {
		if p.deliver(ctx, record) {
			result.Delivered++
		} else {
			result.Failed++
		}
	}

	return result, nil
}

// deliver fans one record out to the async handlers and marks it per policy.
// Returns true when every handler succeeded.
func (p *Processor) deliver(ctx context.Context, record *domain.OutboxRecord) bool {
	event, err := domain.Decode(record.Payload)
	if err != nil {
		// A payload that cannot be decoded will never succeed; mark it
		// regardless of policy so it cannot poison the queue.
		p.log.Error("Failed to decode outbox record",
			zap.String("record_id", record.ID.String()),
			zap.String("event_type", record.EventType),
			zap.Error(err))
		p.mark(ctx, record)
		return false
	}

	failed := false
	for i, handler := range p.registry.HandlersFor(record.EventType) {
		if err := handler(ctx, event); err != nil {
			failed = true
			p.log.Warn("Async handler failed",
				zap.String("record_id", record.ID.String()),
				zap.String("event_type", record.EventType),
				zap.Int("handler_index", i),
				zap.Error(err))
		}
	}

	if !failed || p.cfg.MarkPolicy == MarkAlways {
		p.mark(ctx, record)
	}

	return !failed
}

func (p *Processor) mark(ctx context.Context, record *domain.OutboxRecord) {
	if err := p.repo.MarkProcessed(ctx, record.ID, p.now().UTC()); err != nil {
		p.log.Error("Failed to mark outbox record processed",
			zap.String("record_id", record.ID.String()),
			zap.Error(err))
	}
}
