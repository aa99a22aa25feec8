// Package postgres is the telemetry store adapter. Each served area maps
// onto one or more telemetry tables whose naming is described in the area
// configuration; retrieval stitches them together with a single UNION ALL
// query so one request issues exactly one round trip.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/airshed-labs/estimate-service/internal/domain"
	"github.com/airshed-labs/estimate-service/internal/geo"
)

// MaxAllowedPM25 is the retrieval-side plausibility ceiling. Values at or
// above it are instrument faults, not air quality, and never reach the
// pipeline. Non-positive values are excluded for the same reason.
const MaxAllowedPM25 = 1000.0

// Store reads and writes sensor telemetry in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New connects a pooled store and verifies the connection.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Readings fetches the readings for an area inside the bounding box and
// [start, end] window, ascending by time. Rows outside the plausibility
// bounds are filtered in SQL. An empty result is not an error.
func (s *Store) Readings(ctx context.Context, area *domain.AreaModel, box geo.BBox, start, end time.Time) ([]domain.SensorReading, error) {
	if len(area.Sources) == 0 {
		return nil, fmt.Errorf("area %s has no telemetry sources", area.Name)
	}

	query, args := buildReadingsQuery(area, box, start, end)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query telemetry for area %s: %w", area.Name, err)
	}
	defer rows.Close()

	var readings []domain.SensorReading
	for rows.Next() {
		var r domain.SensorReading
		if err := rows.Scan(&r.ID, &r.Time, &r.Lat, &r.Lon, &r.PM25, &r.SensorModel, &r.SensorSource); err != nil {
			return nil, fmt.Errorf("scan telemetry row: %w", err)
		}
		r.Time = r.Time.UTC()
		r.Area = area.Name
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read telemetry rows: %w", err)
	}
	return readings, nil
}

// buildReadingsQuery assembles the per-source UNION ALL. Table and column
// names come from operator-controlled area configuration, never from
// request input; all request-derived values are bound parameters.
func buildReadingsQuery(area *domain.AreaModel, box geo.BBox, start, end time.Time) (string, []any) {
	args := []any{start, end, box.LatLo, box.LatHi, box.LonLo, box.LonHi, MaxAllowedPM25}

	parts := make([]string, 0, len(area.Sources))
	for _, src := range area.Sources {
		model := "''"
		if src.ModelColumn != "" {
			model = quoteIdent(src.ModelColumn)
		}
		source := "''"
		if src.SourceColumn != "" {
			source = quoteIdent(src.SourceColumn)
		}
		parts = append(parts, fmt.Sprintf(
			`SELECT %s AS id, %s AS time, %s AS lat, %s AS lon, %s AS pm2_5, %s AS sensor_model, %s AS sensor_source
FROM %s
WHERE %s BETWEEN $1 AND $2
  AND %s BETWEEN $3 AND $4
  AND %s BETWEEN $5 AND $6
  AND %s > 0 AND %s < $7`,
			quoteIdent(src.IDColumn),
			quoteIdent(src.TimeColumn),
			quoteIdent(src.LatColumn),
			quoteIdent(src.LonColumn),
			quoteIdent(src.PM25Column),
			model,
			source,
			quoteIdent(src.Table),
			quoteIdent(src.TimeColumn),
			quoteIdent(src.LatColumn),
			quoteIdent(src.LonColumn),
			quoteIdent(src.PM25Column),
			quoteIdent(src.PM25Column),
		))
	}

	query := strings.Join(parts, "\nUNION ALL\n") + "\nORDER BY time ASC"
	return query, args
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// InsertReadings bulk-writes validated readings into the ingest table with
// the binary copy protocol. Returns the number of rows written.
func (s *Store) InsertReadings(ctx context.Context, table string, readings []domain.SensorReading) (int64, error) {
	if len(readings) == 0 {
		return 0, nil
	}
	rows := make([][]any, len(readings))
	for i, r := range readings {
		rows[i] = []any{r.ID, r.Time, r.Lat, r.Lon, r.PM25, r.SensorModel, r.SensorSource, r.Area}
	}
	n, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{table},
		[]string{"id", "time", "lat", "lon", "pm2_5", "sensor_model", "sensor_source", "area"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", table, err)
	}
	return n, nil
}
