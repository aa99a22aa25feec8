package pipeline

import (
	"time"
)

// InterpolateQueryDates expands [start, end] into timestamps every
// periodHours, inclusive of the end when it lands on the step. A
// non-positive period or end before start yields just the start.
func InterpolateQueryDates(start, end time.Time, periodHours float64) []time.Time {
	if periodHours <= 0 || !start.Before(end) {
		return []time.Time{start}
	}
	step := hoursToDuration(periodHours)
	times := make([]time.Time, 0, int(end.Sub(start)/step)+1)
	for t := start; !t.After(end); t = t.Add(step) {
		times = append(times, t)
	}
	return times
}

// Linspace returns n evenly spaced values over [lo, hi], endpoints
// included. n must be at least 1; n == 1 yields just lo.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}

// MeshFlatten expands a lat vector and a lon vector into flat parallel
// coordinate slices covering the full grid, latitude as the outer axis and
// longitude varying fastest. Grid outputs reshape back with the same
// ordering.
func MeshFlatten(latVec, lonVec []float64) (lats, lons []float64) {
	lats = make([]float64, 0, len(latVec)*len(lonVec))
	lons = make([]float64, 0, len(latVec)*len(lonVec))
	for _, lat := range latVec {
		for _, lon := range lonVec {
			lats = append(lats, lat)
			lons = append(lons, lon)
		}
	}
	return lats, lons
}
