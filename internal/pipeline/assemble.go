package pipeline

import (
	"log/slog"
	"time"
)

// TimeLayout is the wire format for output timestamps.
const TimeLayout = "2006-01-02 15:04:05-0700"

// TimeLabel formats an output timestamp for responses.
func TimeLabel(t time.Time) string {
	return t.Format(TimeLayout)
}

// appendEstimates concatenates one chunk's estimates onto the result along
// the time axis. Location rows are allocated on first use.
func appendEstimates(res *Result, est Estimates) {
	for i := range res.Predictions {
		res.Predictions[i] = append(res.Predictions[i], est.Predictions[i]...)
		res.Variances[i] = append(res.Variances[i], est.Variances[i]...)
	}
	res.Statuses = append(res.Statuses, est.Statuses...)
}

// finalize clamps predictions to zero. Raw values below the acceptable
// floor are logged first; they indicate a poorly conditioned model fit.
func finalize(res *Result, minAcceptable float64, logger *slog.Logger) {
	for i := range res.Predictions {
		for t, v := range res.Predictions[i] {
			if v < minAcceptable {
				logger.Warn("implausible raw estimate",
					"value", v,
					"location_index", i,
					"time_index", t,
				)
			}
			if v < 0 {
				res.Predictions[i][t] = 0
			}
		}
	}
}

// ReshapeGrid cuts one time slice out of [location][time] values and
// reshapes it to [lat][lon], matching the MeshFlatten ordering.
func ReshapeGrid(values [][]float64, latSize, lonSize, timeIdx int) [][]float64 {
	grid := make([][]float64, latSize)
	for i := 0; i < latSize; i++ {
		row := make([]float64, lonSize)
		for j := 0; j < lonSize; j++ {
			row[j] = values[i*lonSize+j][timeIdx]
		}
		grid[i] = row
	}
	return grid
}

// ReshapeElevations reshapes per-location elevations to [lat][lon].
func ReshapeElevations(elevations []float64, latSize, lonSize int) [][]float64 {
	grid := make([][]float64, latSize)
	for i := 0; i < latSize; i++ {
		grid[i] = elevations[i*lonSize : (i+1)*lonSize : (i+1)*lonSize]
	}
	return grid
}
