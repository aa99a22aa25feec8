// Package config loads service settings from the environment, with an
// optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DatabaseURL string
	IngestTable string

	AreasPath    string
	ElevationDir string

	ModelServiceURL     string
	ModelServiceTimeout time.Duration

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaGroupID     string
	IngestBatchSize  int

	// Estimation pipeline tuning. The defaults are the production
	// constants; overriding them is for experiments, not deployments.
	SpaceKernelPadding    float64
	TimeKernelPadding     float64
	ChunkSizeFactor       float64
	MinAcceptableEstimate float64
	DayMeanCeiling        float64
	QuarantineDays        int
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is merged in first when
// present.
func Load() (*Config, error) {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	modelTimeout, err := parseDuration("MODEL_SERVICE_TIMEOUT", "120s")
	if err != nil {
		return nil, err
	}

	batchSize, err := parseInt("INGEST_BATCH_SIZE", 500)
	if err != nil {
		return nil, err
	}
	quarantineDays, err := parseInt("OUTLIER_QUARANTINE_DAYS", 1)
	if err != nil {
		return nil, err
	}

	spacePad, err := parseFloat("SPACE_KERNEL_PADDING", 2.0)
	if err != nil {
		return nil, err
	}
	timePad, err := parseFloat("TIME_KERNEL_PADDING", 3.0)
	if err != nil {
		return nil, err
	}
	chunkFactor, err := parseFloat("CHUNK_SIZE_FACTOR", 20.0)
	if err != nil {
		return nil, err
	}
	minEstimate, err := parseFloat("MIN_ACCEPTABLE_ESTIMATE", -5.0)
	if err != nil {
		return nil, err
	}
	dayCeiling, err := parseFloat("OUTLIER_DAY_MEAN_CEILING", 350.0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		IngestTable: envOrDefault("INGEST_TABLE", "telemetry"),

		AreasPath:    envOrDefault("AREAS_PATH", "config/areas.json"),
		ElevationDir: envOrDefault("ELEVATION_DIR", "data/elevation"),

		ModelServiceURL:     os.Getenv("MODEL_SERVICE_URL"),
		ModelServiceTimeout: modelTimeout,

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers:     parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic: envOrDefault("KAFKA_SOURCE_TOPIC", "raw-telemetry"),
		KafkaGroupID:     envOrDefault("KAFKA_GROUP_ID", "aq-estimate-ingest"),
		IngestBatchSize:  batchSize,

		SpaceKernelPadding:    spacePad,
		TimeKernelPadding:     timePad,
		ChunkSizeFactor:       chunkFactor,
		MinAcceptableEstimate: minEstimate,
		DayMeanCeiling:        dayCeiling,
		QuarantineDays:        quarantineDays,
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.ModelServiceURL == "" {
		return nil, errors.New("MODEL_SERVICE_URL is required")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.IngestBatchSize <= 0 {
		return nil, errors.New("INGEST_BATCH_SIZE must be positive")
	}
	if cfg.QuarantineDays < 0 {
		return nil, errors.New("OUTLIER_QUARANTINE_DAYS must not be negative")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBrokers(s string) []string {
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}
