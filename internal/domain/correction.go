package domain

import "time"

// CorrectionResult is the outcome of a calibration lookup: the (possibly
// adjusted) value plus a tag saying whether a factor was applied. An
// explicit result replaces the silent fall-through the calibration data
// used to get, so callers can count uncorrected readings.
type CorrectionResult struct {
	Value  float64
	Status CorrectionStatus
}

// LookupCorrection finds the first factor, in configured order, that covers
// the sensor model and timestamp. The interval is half-open: a factor
// matches when Start <= t < End.
func LookupCorrection(factors []CorrectionFactor, sensorModel string, t time.Time) (CorrectionFactor, bool) {
	for _, f := range factors {
		if f.SensorModel != sensorModel {
			continue
		}
		if !t.Before(f.Start) && t.Before(f.End) {
			return f, true
		}
	}
	return CorrectionFactor{}, false
}

// ApplyCorrection calibrates a raw PM2.5 value. With a matching factor the
// value becomes slope*value + intercept; without one the value is kept as
// is. Either way the result is clamped non-negative, since a negative
// concentration is physically meaningless.
func ApplyCorrection(factors []CorrectionFactor, sensorModel string, t time.Time, value float64) CorrectionResult {
	f, ok := LookupCorrection(factors, sensorModel, t)
	if !ok {
		return CorrectionResult{Value: max(value, 0), Status: Uncorrected}
	}
	return CorrectionResult{Value: max(value*f.Slope+f.Intercept, 0), Status: Corrected}
}
