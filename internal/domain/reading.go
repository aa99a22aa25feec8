package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/airshed-labs/estimate-service/internal/geo"
)

// CorrectionStatus tags a reading's calibration outcome so corrected and
// uncorrected values are distinguishable downstream.
type CorrectionStatus string

const (
	// CorrectionNone means calibration has not been applied yet.
	CorrectionNone CorrectionStatus = ""
	// Corrected means a matching correction factor was applied.
	Corrected CorrectionStatus = "corrected"
	// Uncorrected means no factor covered the reading's timestamp or sensor
	// model; the raw value was kept (clamped non-negative).
	Uncorrected CorrectionStatus = "uncorrected"
)

// SensorReading is one PM2.5 telemetry observation. Lat/Lon/Time/PM25 come
// from the telemetry store; the remaining fields are derived during
// conditioning and are zero until then. Elevation is a pointer because some
// sources report their own altitude and some do not; absence means "look
// it up from the area's raster".
type SensorReading struct {
	ID           string
	Time         time.Time
	Lat          float64
	Lon          float64
	PM25         float64
	SensorModel  string
	SensorSource string
	Area         string

	// Derived by conditioning.
	UTM            geo.UTMCoord
	Elevation      *float64
	DaysSinceEpoch int
	Correction     CorrectionStatus
}

// rawReading is the flat JSON shape produced by the telemetry collectors.
type rawReading struct {
	ID           string   `json:"id"`
	Time         string   `json:"time"`
	Lat          float64  `json:"lat"`
	Lon          float64  `json:"lon"`
	PM25         float64  `json:"pm2_5"`
	SensorModel  string   `json:"sensor_model"`
	SensorSource string   `json:"sensor_source"`
	Area         string   `json:"area"`
	Elevation    *float64 `json:"elevation,omitempty"`
}

// ParseRawReading deserializes a collector message into a SensorReading.
// Readings with no id, no timestamp, or a non-finite value are rejected so
// they never reach the telemetry table.
func ParseRawReading(value []byte) (SensorReading, error) {
	var rec rawReading
	if err := json.Unmarshal(value, &rec); err != nil {
		return SensorReading{}, fmt.Errorf("parse raw reading: %w", err)
	}
	if rec.ID == "" {
		return SensorReading{}, fmt.Errorf("parse raw reading: missing id")
	}
	ts, err := time.Parse(time.RFC3339, rec.Time)
	if err != nil {
		return SensorReading{}, fmt.Errorf("parse raw reading: time %q: %w", rec.Time, err)
	}
	if math.IsNaN(rec.PM25) || math.IsInf(rec.PM25, 0) {
		return SensorReading{}, fmt.Errorf("parse raw reading: non-finite pm2_5")
	}

	return SensorReading{
		ID:           rec.ID,
		Time:         ts.UTC(),
		Lat:          rec.Lat,
		Lon:          rec.Lon,
		PM25:         rec.PM25,
		SensorModel:  rec.SensorModel,
		SensorSource: rec.SensorSource,
		Area:         rec.Area,
		Elevation:    rec.Elevation,
	}, nil
}

// DayBucket returns the reading's UTC calendar day as whole days since the
// Unix epoch, flooring for pre-1970 timestamps. Used as the grouping key
// for the outlier quarantine.
func DayBucket(t time.Time) int {
	return int(math.Floor(float64(t.Unix()) / 86400.0))
}
