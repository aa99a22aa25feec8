package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://aq:aq@localhost:5432/aq")
	t.Setenv("MODEL_SERVICE_URL", "http://localhost:5000")
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		setRequired(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "telemetry", cfg.IngestTable)
		assert.Equal(t, ":8080", cfg.HTTPAddr)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, "json", cfg.LogFormat)
		assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
		assert.Equal(t, 120*time.Second, cfg.ModelServiceTimeout)
		assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
		assert.Equal(t, "raw-telemetry", cfg.KafkaSourceTopic)
		assert.Equal(t, 500, cfg.IngestBatchSize)

		assert.Equal(t, 2.0, cfg.SpaceKernelPadding)
		assert.Equal(t, 3.0, cfg.TimeKernelPadding)
		assert.Equal(t, 20.0, cfg.ChunkSizeFactor)
		assert.Equal(t, -5.0, cfg.MinAcceptableEstimate)
		assert.Equal(t, 350.0, cfg.DayMeanCeiling)
		assert.Equal(t, 1, cfg.QuarantineDays)
	})

	t.Run("overrides", func(t *testing.T) {
		setRequired(t)
		t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
		t.Setenv("MODEL_SERVICE_TIMEOUT", "30s")
		t.Setenv("OUTLIER_DAY_MEAN_CEILING", "275")
		t.Setenv("OUTLIER_QUARANTINE_DAYS", "2")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
		assert.Equal(t, 30*time.Second, cfg.ModelServiceTimeout)
		assert.Equal(t, 275.0, cfg.DayMeanCeiling)
		assert.Equal(t, 2, cfg.QuarantineDays)
	})

	t.Run("required settings", func(t *testing.T) {
		t.Setenv("MODEL_SERVICE_URL", "http://localhost:5000")
		t.Setenv("DATABASE_URL", "")
		_, err := Load()
		assert.ErrorContains(t, err, "DATABASE_URL")

		t.Setenv("DATABASE_URL", "postgres://aq:aq@localhost:5432/aq")
		t.Setenv("MODEL_SERVICE_URL", "")
		_, err = Load()
		assert.ErrorContains(t, err, "MODEL_SERVICE_URL")
	})

	t.Run("invalid values rejected", func(t *testing.T) {
		setRequired(t)

		tests := []struct{ key, value string }{
			{"SHUTDOWN_TIMEOUT", "soon"},
			{"SHUTDOWN_TIMEOUT", "-1s"},
			{"MODEL_SERVICE_TIMEOUT", "0s"},
			{"INGEST_BATCH_SIZE", "many"},
			{"INGEST_BATCH_SIZE", "0"},
			{"SPACE_KERNEL_PADDING", "wide"},
			{"OUTLIER_QUARANTINE_DAYS", "-1"},
		}
		for _, tt := range tests {
			t.Run(tt.key+"="+tt.value, func(t *testing.T) {
				setRequired(t)
				t.Setenv(tt.key, tt.value)
				_, err := Load()
				assert.Error(t, err)
			})
		}
	})
}

const areasJSON = `[
  {
    "name": "slc_ut",
    "timezone": "America/Denver",
    "boundingbox": [
      {"lat": 40.4817, "lon": -112.1594},
      {"lat": 40.4817, "lon": -111.7616},
      {"lat": 40.8206, "lon": -111.7616},
      {"lat": 40.8206, "lon": -112.1594}
    ],
    "sources": [
      {"table": "slc_telemetry", "id_column": "device_id", "time_column": "observed_at",
       "pm2_5_column": "pm2_5", "lat_column": "lat", "lon_column": "lon",
       "model_column": "device_model"}
    ],
    "correctionfactors": [
      {"sensor_model": "PMS5003", "start_date": "2022-01-01T00:00:00Z",
       "end_date": "2022-07-01T00:00:00Z", "slope": 0.52, "intercept": 1.7}
    ],
    "lengthscales": [
      {"start_date": "2020-01-01T00:00:00Z", "end_date": "2030-01-01T00:00:00Z",
       "latlon": 4000, "elevation": 5, "time": 0.25}
    ],
    "elevationfile": "slc.json"
  }
]`

func writeAreas(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "areas.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAreaModels(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		areas, err := LoadAreaModels(writeAreas(t, areasJSON))
		require.NoError(t, err)
		require.Len(t, areas, 1)

		a := areas[0]
		assert.Equal(t, "slc_ut", a.Name)
		assert.Len(t, a.Boundary, 4)
		assert.Equal(t, "slc_telemetry", a.Sources[0].Table)
		assert.Equal(t, 0.52, a.CorrectionFactors[0].Slope)
		assert.Equal(t, 0.25, a.LengthScales[0].Time)
		assert.Equal(t, "slc.json", a.ElevationFile)
	})

	t.Run("rejects bad files", func(t *testing.T) {
		tests := []struct {
			name    string
			content string
		}{
			{"not json", `nope`},
			{"empty list", `[]`},
			{"missing name", `[{"boundingbox":[{"lat":1,"lon":1},{"lat":2,"lon":1},{"lat":2,"lon":2}],"sources":[{"table":"t"}]}]`},
			{"degenerate boundary", `[{"name":"a","boundingbox":[{"lat":1,"lon":1}],"sources":[{"table":"t"}]}]`},
			{"no sources", `[{"name":"a","boundingbox":[{"lat":1,"lon":1},{"lat":2,"lon":1},{"lat":2,"lon":2}]}]`},
			{"duplicate names", `[
				{"name":"a","boundingbox":[{"lat":1,"lon":1},{"lat":2,"lon":1},{"lat":2,"lon":2}],"sources":[{"table":"t"}]},
				{"name":"a","boundingbox":[{"lat":1,"lon":1},{"lat":2,"lon":1},{"lat":2,"lon":2}],"sources":[{"table":"t"}]}
			]`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := LoadAreaModels(writeAreas(t, tt.content))
				assert.Error(t, err)
			})
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadAreaModels(filepath.Join(t.TempDir(), "absent.json"))
		assert.Error(t, err)
	})
}
