package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airshed-labs/estimate-service/internal/domain"
	"github.com/airshed-labs/estimate-service/internal/observability"
)

// scriptedExtractor serves pre-built batches, then cancels the run.
type scriptedExtractor struct {
	batches [][]RawMessage
	cancel  context.CancelFunc
}

func (s *scriptedExtractor) ExtractBatch(ctx context.Context, _ int) ([]RawMessage, error) {
	if len(s.batches) == 0 {
		s.cancel()
		return nil, ctx.Err()
	}
	batch := s.batches[0]
	s.batches = s.batches[1:]
	return batch, nil
}

type recordingInserter struct {
	mu       sync.Mutex
	err      error
	failures int
	batches  [][]domain.SensorReading
	table    string
}

func (r *recordingInserter) InsertReadings(_ context.Context, table string, readings []domain.SensorReading) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		return 0, r.err
	}
	r.table = table
	r.batches = append(r.batches, readings)
	return int64(len(readings)), nil
}

type commitLog struct {
	mu      sync.Mutex
	offsets []int64
}

func (c *commitLog) message(offset int64, payload string) RawMessage {
	return RawMessage{
		Value:  []byte(payload),
		Topic:  "telemetry",
		Offset: offset,
		Commit: func(context.Context) error {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.offsets = append(c.offsets, offset)
			return nil
		},
	}
}

func newBridge(e BatchExtractor, i BatchInserter) *Bridge {
	return New(e, i, "telemetry", slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting(), 100)
}

const validPayload = `{"id":"S-07","time":"2022-03-15T08:30:00Z","lat":40.76,"lon":-111.89,"pm2_5":14.2,"sensor_model":"PMS5003"}`

func TestBridgeRun(t *testing.T) {
	t.Run("valid batch inserted then committed", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		commits := &commitLog{}
		ext := &scriptedExtractor{
			cancel: cancel,
			batches: [][]RawMessage{{
				commits.message(1, validPayload),
				commits.message(2, `{"id":"S-08","time":"2022-03-15T08:31:00Z","lat":40.75,"lon":-111.90,"pm2_5":9.5}`),
			}},
		}
		ins := &recordingInserter{}
		b := newBridge(ext, ins)

		assert.Error(t, b.CheckReadiness(ctx), "not ready before first write")
		require.NoError(t, b.Run(ctx))

		require.Len(t, ins.batches, 1)
		require.Len(t, ins.batches[0], 2)
		assert.Equal(t, "telemetry", ins.table)
		assert.Equal(t, "S-07", ins.batches[0][0].ID)
		assert.ElementsMatch(t, []int64{1, 2}, commits.offsets)
		assert.NoError(t, b.CheckReadiness(ctx))
	})

	t.Run("invalid messages rejected and committed", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		commits := &commitLog{}
		ext := &scriptedExtractor{
			cancel: cancel,
			batches: [][]RawMessage{{
				commits.message(1, `{broken`),
				commits.message(2, validPayload),
			}},
		}
		ins := &recordingInserter{}
		b := newBridge(ext, ins)

		require.NoError(t, b.Run(ctx))

		require.Len(t, ins.batches, 1)
		assert.Len(t, ins.batches[0], 1, "only the valid reading is inserted")
		// The broken message commits too; redelivery would just fail again.
		assert.ElementsMatch(t, []int64{1, 2}, commits.offsets)
	})

	t.Run("all invalid skips insert", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		commits := &commitLog{}
		ext := &scriptedExtractor{
			cancel:  cancel,
			batches: [][]RawMessage{{commits.message(1, `{broken`)}},
		}
		ins := &recordingInserter{}
		b := newBridge(ext, ins)

		require.NoError(t, b.Run(ctx))
		assert.Empty(t, ins.batches)
		assert.Error(t, b.CheckReadiness(ctx))
	})

	t.Run("insert failure retries without committing", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		commits := &commitLog{}
		// Same message delivered twice, as a broker would after no commit.
		ext := &scriptedExtractor{
			cancel: cancel,
			batches: [][]RawMessage{
				{commits.message(1, validPayload)},
				{commits.message(1, validPayload)},
			},
		}
		ins := &recordingInserter{err: errors.New("deadlock detected"), failures: 1}
		b := newBridge(ext, ins)

		require.NoError(t, b.Run(ctx))

		require.Len(t, ins.batches, 1)
		assert.Equal(t, []int64{1}, commits.offsets, "committed once, after the successful write")
	})
}
