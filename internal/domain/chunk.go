package domain

import "time"

// TimeChunk is one bounded piece of a query time sequence, paired with the
// padded window the sensor retrieval and model fit use so estimates near
// the chunk edges still see context beyond them.
type TimeChunk struct {
	Times       []time.Time
	WindowStart time.Time
	WindowEnd   time.Time
}

// ChunkQueryTimes splits a sorted query time sequence into chunks spanning
// at most chunkDuration each, so the per-chunk model solve stays bounded;
// the solve's cost grows worse than linearly in the number of time points.
// The span is divided into floor(span/chunkDuration) equal-width pieces and
// timestamps are dealt into them by boundary; a sequence shorter than one
// chunk becomes a single chunk. Every input timestamp lands in exactly one
// chunk, in order; empty pieces are dropped.
func ChunkQueryTimes(times []time.Time, chunkDuration, padding time.Duration) []TimeChunk {
	if len(times) == 0 {
		return nil
	}

	span := times[len(times)-1].Sub(times[0])
	pieces := 0
	if chunkDuration > 0 {
		pieces = int(span / chunkDuration)
	}

	var groups [][]time.Time
	if pieces <= 1 {
		groups = [][]time.Time{times}
	} else {
		width := span / time.Duration(pieces)
		idx := 0
		for i := 0; i < pieces-1; i++ {
			boundary := times[0].Add(time.Duration(i+1) * width)
			start := idx
			for idx < len(times) && times[idx].Before(boundary) {
				idx++
			}
			if idx > start {
				groups = append(groups, times[start:idx])
			}
		}
		if idx < len(times) {
			groups = append(groups, times[idx:])
		}
	}

	chunks := make([]TimeChunk, len(groups))
	for i, g := range groups {
		chunks[i] = TimeChunk{
			Times:       g,
			WindowStart: g[0].Add(-padding),
			WindowEnd:   g[len(g)-1].Add(padding),
		}
	}
	return chunks
}
