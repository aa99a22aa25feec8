// Package ingest bridges raw sensor telemetry from the source topic into
// the telemetry store that estimation queries read from.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/airshed-labs/estimate-service/internal/domain"
	"github.com/airshed-labs/estimate-service/internal/observability"
)

// RawMessage is one unparsed telemetry message plus enough metadata to
// commit its offset after a durable write.
type RawMessage struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Commit    func(ctx context.Context) error
}

// BatchExtractor reads up to batchSize raw messages from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]RawMessage, error)
}

// BatchInserter writes validated readings to the telemetry store.
type BatchInserter interface {
	InsertReadings(ctx context.Context, table string, readings []domain.SensorReading) (int64, error)
}

// Bridge runs the consume-validate-insert loop. Offsets commit only after
// the store write succeeds, so a crash re-delivers rather than drops.
type Bridge struct {
	extractor BatchExtractor
	inserter  BatchInserter
	table     string
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	batchSize int
}

// New creates a Bridge writing into the named telemetry table.
func New(e BatchExtractor, i BatchInserter, table string, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Bridge {
	return &Bridge{
		extractor: e,
		inserter:  i,
		table:     table,
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
	}
}

// CheckReadiness returns nil once at least one batch has been written.
func (b *Bridge) CheckReadiness(_ context.Context) error {
	if !b.ready.Load() {
		return errors.New("bridge has not written any readings yet")
	}
	return nil
}

// Run executes the ingest loop until the context is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	b.logger.Info("ingest bridge started", "table", b.table, "batch_size", b.batchSize)
	b.metrics.IngestRunning.Set(1)
	defer b.metrics.IngestRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("ingest bridge stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !b.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one consume-validate-insert cycle. Returns false when
// the bridge should stop.
func (b *Bridge) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	rawBatch, err := b.extractor.ExtractBatch(ctx, b.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		b.logger.Error("extract batch failed", "error", err)
		return b.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	b.metrics.IngestConsumed.Add(float64(len(rawBatch)))
	*backoff = 200 * time.Millisecond

	readings := make([]domain.SensorReading, 0, len(rawBatch))
	accepted := make([]RawMessage, 0, len(rawBatch))
	for _, raw := range rawBatch {
		r, err := domain.ParseRawReading(raw.Value)
		if err != nil {
			b.logger.Warn("rejecting telemetry message",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			b.metrics.IngestRejected.Inc()
			// Rejection is final for this message; move past it.
			b.commitOffset(ctx, raw)
			continue
		}
		readings = append(readings, r)
		accepted = append(accepted, raw)
	}

	if len(readings) == 0 {
		return true
	}

	n, err := b.inserter.InsertReadings(ctx, b.table, readings)
	if err != nil {
		b.logger.Error("insert batch failed", "error", err, "batch_size", len(readings))
		return b.backoffOrStop(ctx, backoff, maxBackoff)
	}
	b.metrics.IngestInserted.Add(float64(n))

	for _, raw := range accepted {
		b.commitOffset(ctx, raw)
	}

	b.ready.Store(true)
	return true
}

// backoffOrStop sleeps with the current backoff and advances it. Returns
// false when the bridge should stop.
func (b *Bridge) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

func (b *Bridge) commitOffset(ctx context.Context, raw RawMessage) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		b.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
