package domain

import (
	"fmt"
	"log/slog"

	"github.com/airshed-labs/estimate-service/internal/geo"
)

// ConditionParams carries the outlier-quarantine constants. The defaults
// come from the deployed calibration work; see the package documentation
// for why they are configurable rather than re-derived.
type ConditionParams struct {
	// DayMeanCeiling is the daily mean (µg/m³) above which a sensor's day
	// is considered invalid.
	DayMeanCeiling float64
	// QuarantineDays is how many days on each side of a flagged day are
	// dropped along with it.
	QuarantineDays int
}

// DefaultConditionParams returns the production constants: 350 µg/m³
// ceiling with a one-day quarantine on either side.
func DefaultConditionParams() ConditionParams {
	return ConditionParams{DayMeanCeiling: 350.0, QuarantineDays: 1}
}

// ElevationSampler interpolates terrain elevation at a point. The argument
// order is longitude first, matching the raster's own axis convention;
// a transposed lookup silently produces wrong elevations.
type ElevationSampler interface {
	ElevationAt(lon, lat float64) (float64, error)
}

// Condition runs the data-conditioning pipeline over one retrieval window,
// in order: UTM projection, invalid-sensor/day quarantine, calibration,
// elevation augmentation. Projection and elevation failures abort the whole
// window; the quarantine is a filter, never an error. The input slice is
// not modified.
func Condition(readings []SensorReading, area *AreaModel, elev ElevationSampler, params ConditionParams, logger *slog.Logger) ([]SensorReading, error) {
	out, err := ProjectReadings(readings)
	if err != nil {
		return nil, err
	}

	out = RemoveInvalidDays(out, params, logger)

	uncorrected := 0
	for i := range out {
		res := ApplyCorrection(area.CorrectionFactors, out[i].SensorModel, out[i].Time, out[i].PM25)
		out[i].PM25 = res.Value
		out[i].Correction = res.Status
		if res.Status == Uncorrected {
			uncorrected++
		}
	}
	if uncorrected > 0 {
		logger.Debug("readings without correction factor", "count", uncorrected, "area", area.Name)
	}

	if err := augmentElevations(out, elev); err != nil {
		return nil, err
	}

	return out, nil
}

// ProjectReadings returns a copy of the readings with UTM coordinates and
// day buckets filled in. Any unprojectable coordinate fails the whole
// window: the model cannot safely run with partial geometry.
func ProjectReadings(readings []SensorReading) ([]SensorReading, error) {
	out := make([]SensorReading, len(readings))
	for i, r := range readings {
		coord, err := geo.ToUTM(r.Lat, r.Lon)
		if err != nil {
			return nil, fmt.Errorf("project reading %s at (%.4f, %.4f): %w", r.ID, r.Lat, r.Lon, err)
		}
		r.UTM = coord
		r.DaysSinceEpoch = DayBucket(r.Time)
		out[i] = r
	}
	return out, nil
}

// RemoveInvalidDays drops every (sensor, day) group whose mean PM2.5
// exceeds the ceiling, together with the quarantine days on either side for
// that sensor. The filter is idempotent: the surviving groups' means are
// unchanged by removal, so a second pass removes nothing.
func RemoveInvalidDays(readings []SensorReading, params ConditionParams, logger *slog.Logger) []SensorReading {
	type dayKey struct {
		day int
		id  string
	}

	counts := make(map[dayKey]int)
	sums := make(map[dayKey]float64)
	for _, r := range readings {
		k := dayKey{day: r.DaysSinceEpoch, id: r.ID}
		counts[k]++
		sums[k] += r.PM25
	}

	removed := make(map[dayKey]struct{})
	for k, n := range counts {
		if sums[k]/float64(n) <= params.DayMeanCeiling {
			continue
		}
		for d := k.day - params.QuarantineDays; d <= k.day+params.QuarantineDays; d++ {
			removed[dayKey{day: d, id: k.id}] = struct{}{}
		}
	}
	if len(removed) == 0 {
		return readings
	}
	logger.Info("quarantining sensor days above daily mean ceiling",
		"ceiling", params.DayMeanCeiling,
		"sensor_days", len(removed),
	)

	out := make([]SensorReading, 0, len(readings))
	for _, r := range readings {
		if _, drop := removed[dayKey{day: r.DaysSinceEpoch, id: r.ID}]; drop {
			continue
		}
		out = append(out, r)
	}
	return out
}

// augmentElevations fills missing elevations from the area raster. Readings
// that reported their own altitude keep it.
func augmentElevations(readings []SensorReading, elev ElevationSampler) error {
	for i := range readings {
		if readings[i].Elevation != nil {
			continue
		}
		e, err := elev.ElevationAt(readings[i].Lon, readings[i].Lat)
		if err != nil {
			return fmt.Errorf("elevation for reading %s: %w", readings[i].ID, err)
		}
		readings[i].Elevation = &e
	}
	return nil
}
