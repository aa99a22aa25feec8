// Package pipeline orchestrates the estimation-request flow: resolve
// length scales, retrieve and condition sensor telemetry, chunk the query
// time range, invoke the external interpolation model per chunk, and
// assemble the results into response-ready arrays.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/airshed-labs/estimate-service/internal/domain"
	"github.com/airshed-labs/estimate-service/internal/geo"
	"github.com/airshed-labs/estimate-service/internal/observability"
)

// StatusNoSensorData labels output times whose retrieval window contained
// zero sensor readings. The estimate degrades to 0.0 with NaN variance
// instead of failing the request.
const StatusNoSensorData = "no sensor data"

// ReadingStore retrieves raw sensor readings for a space and time bound.
// One call issues exactly one retrieval; an empty result is not an error.
type ReadingStore interface {
	Readings(ctx context.Context, area *domain.AreaModel, box geo.BBox, start, end time.Time) ([]domain.SensorReading, error)
}

// Model is a fitted interpolation model held by the external service. An
// empty Handle means the service could not build a usable model for the
// window, such as when it holds zero usable readings. That is a
// recoverable outcome whose Status explains why.
type Model struct {
	Handle     string
	TimeOffset float64
	Status     string
}

// Estimates are the model's predictions at the query locations, shaped
// [location][time]; Statuses carries one label per time.
type Estimates struct {
	Predictions [][]float64
	Variances   [][]float64
	Statuses    []string
}

// ModelService is the boundary to the external interpolation model.
type ModelService interface {
	// CreateModel fits a model over the readings within [windowStart, windowEnd].
	CreateModel(ctx context.Context, readings []domain.SensorReading, scales domain.LengthScaleProfile, windowStart, windowEnd time.Time) (Model, error)

	// Estimate predicts mean and variance at every location for every time.
	Estimate(ctx context.Context, model Model, lats, lons, elevations []float64, times []time.Time) (Estimates, error)
}

// ElevationProvider hands out the elevation sampler for an area's raster.
type ElevationProvider interface {
	ForArea(area *domain.AreaModel) (domain.ElevationSampler, error)
}

// Params are the kernel-padding and chunking constants, in units of the
// active length scales.
type Params struct {
	// SpaceKernelPadding scales the spatial length scale into the sensor
	// search radius.
	SpaceKernelPadding float64
	// TimeKernelPadding scales the time length scale (hours) into the
	// retrieval-window padding on each side of a chunk.
	TimeKernelPadding float64
	// ChunkSizeFactor is how many time length scales fit in one chunk.
	ChunkSizeFactor float64
	// MinAcceptableEstimate is the floor below which a raw prediction is
	// logged as implausible before clamping. Not an error.
	MinAcceptableEstimate float64
}

// DefaultParams returns the production constants.
func DefaultParams() Params {
	return Params{
		SpaceKernelPadding:    2.0,
		TimeKernelPadding:     3.0,
		ChunkSizeFactor:       20.0,
		MinAcceptableEstimate: -5.0,
	}
}

// Result is a completed estimation: predictions and variances shaped
// [location][time], one elevation per location, one status label per time.
type Result struct {
	Predictions [][]float64
	Variances   [][]float64
	Elevations  []float64
	Statuses    []string
}

// Estimator runs the estimation pipeline. It holds no per-request state;
// one Estimator serves concurrent requests, each running single-threaded.
type Estimator struct {
	store      ReadingStore
	models     ModelService
	elevations ElevationProvider
	logger     *slog.Logger
	metrics    *observability.Metrics
	params     Params
	condition  domain.ConditionParams
}

// NewEstimator wires the pipeline's collaborators together.
func NewEstimator(
	store ReadingStore,
	models ModelService,
	elevations ElevationProvider,
	logger *slog.Logger,
	metrics *observability.Metrics,
	params Params,
	condition domain.ConditionParams,
) *Estimator {
	return &Estimator{
		store:      store,
		models:     models,
		elevations: elevations,
		logger:     logger,
		metrics:    metrics,
		params:     params,
		condition:  condition,
	}
}

// ComputeForLocations estimates PM2.5 at each (lats[i], lons[i]) for every
// timestamp in times. Times must be ascending; lats and lons must be the
// same length. Terminal failures return an error; a window with no usable
// sensor data degrades to zero predictions with NaN variances and a
// per-time status, never an error.
func (e *Estimator) ComputeForLocations(ctx context.Context, area *domain.AreaModel, times []time.Time, lats, lons []float64) (Result, error) {
	start := time.Now()
	res, err := e.compute(ctx, area, times, lats, lons)
	e.metrics.EstimateDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		e.metrics.EstimateRequests.WithLabelValues("error").Inc()
		return Result{}, err
	}
	outcome := "ok"
	for _, s := range res.Statuses {
		if s != "" && s != "ok" {
			outcome = "degraded"
			break
		}
	}
	e.metrics.EstimateRequests.WithLabelValues(outcome).Inc()
	return res, nil
}

func (e *Estimator) compute(ctx context.Context, area *domain.AreaModel, times []time.Time, lats, lons []float64) (Result, error) {
	if len(lats) != len(lons) {
		return Result{}, domain.ErrShapeMismatch
	}
	if len(times) == 0 || len(lats) == 0 {
		return Result{}, domain.ErrEmptyQuery
	}

	first, last := times[0], times[len(times)-1]

	scales, err := domain.LengthScalesForWindow(area.LengthScales, first, last)
	if err != nil {
		return Result{}, fmt.Errorf("area %s, window [%s, %s]: %w",
			area.Name, first.Format(time.RFC3339), last.Format(time.RFC3339), err)
	}

	sampler, err := e.elevations.ForArea(area)
	if err != nil {
		return Result{}, fmt.Errorf("elevation raster for area %s: %w", area.Name, err)
	}

	queryElevations := make([]float64, len(lats))
	for i := range lats {
		// The raster speaks lon-lat order.
		queryElevations[i], err = sampler.ElevationAt(lons[i], lats[i])
		if err != nil {
			return Result{}, fmt.Errorf("elevation at (%.4f, %.4f): %w", lats[i], lons[i], err)
		}
	}

	box, err := searchBox(lats, lons, e.params.SpaceKernelPadding*scales.LatLon)
	if err != nil {
		return Result{}, err
	}

	padding := hoursToDuration(e.params.TimeKernelPadding * scales.Time)

	readings, err := e.store.Readings(ctx, area, box, first.Add(-padding), last.Add(padding))
	if err != nil {
		return Result{}, fmt.Errorf("sensor retrieval: %w", err)
	}
	e.metrics.ReadingsFetched.Observe(float64(len(readings)))

	if len(readings) == 0 {
		e.logger.Info("no sensor readings in window", "area", area.Name, "box", box)
		return degradedResult(len(lats), len(times), queryElevations, StatusNoSensorData), nil
	}

	conditioned, err := domain.Condition(readings, area, sampler, e.condition, e.logger)
	if err != nil {
		return Result{}, fmt.Errorf("condition readings: %w", err)
	}
	e.metrics.ReadingsRemoved.Add(float64(len(readings) - len(conditioned)))

	if len(conditioned) == 0 {
		e.logger.Info("all readings removed by conditioning", "area", area.Name, "fetched", len(readings))
		return degradedResult(len(lats), len(times), queryElevations, StatusNoSensorData), nil
	}

	chunkDuration := hoursToDuration(e.params.ChunkSizeFactor * scales.Time)
	chunks := domain.ChunkQueryTimes(times, chunkDuration, padding)
	e.metrics.ChunksPerRequest.Observe(float64(len(chunks)))

	res := Result{
		Predictions: make([][]float64, len(lats)),
		Variances:   make([][]float64, len(lats)),
		Elevations:  queryElevations,
	}
	for _, chunk := range chunks {
		est, err := e.estimateChunk(ctx, conditioned, scales, chunk, lats, lons, queryElevations)
		if err != nil {
			return Result{}, err
		}
		appendEstimates(&res, est)
	}

	finalize(&res, e.params.MinAcceptableEstimate, e.logger)
	return res, nil
}

// estimateChunk fits a model over the chunk's padded window and predicts at
// the query locations. A service answer of "no usable model" yields the
// well-defined default block instead of an error.
func (e *Estimator) estimateChunk(
	ctx context.Context,
	conditioned []domain.SensorReading,
	scales domain.LengthScaleProfile,
	chunk domain.TimeChunk,
	lats, lons, elevations []float64,
) (Estimates, error) {
	window := readingsInWindow(conditioned, chunk.WindowStart, chunk.WindowEnd)

	createStart := time.Now()
	model, err := e.models.CreateModel(ctx, window, scales, chunk.WindowStart, chunk.WindowEnd)
	e.metrics.ModelCallDuration.WithLabelValues("create").Observe(time.Since(createStart).Seconds())
	if err != nil {
		e.metrics.ModelCalls.WithLabelValues("create", "error").Inc()
		return Estimates{}, fmt.Errorf("create model: %w", err)
	}

	if model.Handle == "" {
		e.metrics.ModelCalls.WithLabelValues("create", "empty").Inc()
		e.logger.Info("no usable model for chunk",
			"window_start", chunk.WindowStart,
			"window_end", chunk.WindowEnd,
			"status", model.Status,
		)
		return defaultEstimates(len(lats), len(chunk.Times), model.Status), nil
	}
	e.metrics.ModelCalls.WithLabelValues("create", "ok").Inc()

	estimateStart := time.Now()
	est, err := e.models.Estimate(ctx, model, lats, lons, elevations, chunk.Times)
	e.metrics.ModelCallDuration.WithLabelValues("estimate").Observe(time.Since(estimateStart).Seconds())
	if err != nil {
		e.metrics.ModelCalls.WithLabelValues("estimate", "error").Inc()
		return Estimates{}, fmt.Errorf("estimate: %w", err)
	}
	e.metrics.ModelCalls.WithLabelValues("estimate", "ok").Inc()
	return est, nil
}

// searchBox folds the per-point bounding boxes into one retrieval box and
// rejects regions straddling a UTM zone boundary, where a single planar
// projection would be wrong.
func searchBox(lats, lons []float64, radiusMeters float64) (geo.BBox, error) {
	box, err := geo.BoundingBox(lats[0], lons[0], radiusMeters)
	if err != nil {
		return geo.BBox{}, fmt.Errorf("query bounding box: %w", err)
	}
	for i := 1; i < len(lats); i++ {
		b, err := geo.BoundingBox(lats[i], lons[i], radiusMeters)
		if err != nil {
			return geo.BBox{}, fmt.Errorf("query bounding box: %w", err)
		}
		box = geo.Union(box, b)
	}

	lo, err := geo.ToUTM(box.LatLo, box.LonLo)
	if err != nil {
		return geo.BBox{}, fmt.Errorf("query bounding box: %w", err)
	}
	hi, err := geo.ToUTM(box.LatHi, box.LonHi)
	if err != nil {
		return geo.BBox{}, fmt.Errorf("query bounding box: %w", err)
	}
	if !lo.SameZone(hi) {
		return geo.BBox{}, fmt.Errorf("box [%f,%f]x[%f,%f]: %w",
			box.LatLo, box.LatHi, box.LonLo, box.LonHi, domain.ErrZoneSpan)
	}
	return box, nil
}

// readingsInWindow returns the readings with WindowStart <= t <= WindowEnd.
func readingsInWindow(readings []domain.SensorReading, start, end time.Time) []domain.SensorReading {
	out := make([]domain.SensorReading, 0, len(readings))
	for _, r := range readings {
		if r.Time.Before(start) || r.Time.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// degradedResult is the whole-request fallback when no sensor data exists:
// zero predictions, NaN variances, one explanatory status per time.
func degradedResult(numLocations, numTimes int, elevations []float64, status string) Result {
	res := Result{
		Predictions: make([][]float64, numLocations),
		Variances:   make([][]float64, numLocations),
		Elevations:  elevations,
		Statuses:    make([]string, numTimes),
	}
	for i := 0; i < numLocations; i++ {
		res.Predictions[i] = make([]float64, numTimes)
		res.Variances[i] = nanRow(numTimes)
	}
	for t := 0; t < numTimes; t++ {
		res.Statuses[t] = status
	}
	return res
}

// defaultEstimates is the per-chunk fallback for a "no usable model"
// outcome, carrying the model service's own status label.
func defaultEstimates(numLocations, numTimes int, status string) Estimates {
	est := Estimates{
		Predictions: make([][]float64, numLocations),
		Variances:   make([][]float64, numLocations),
		Statuses:    make([]string, numTimes),
	}
	for i := 0; i < numLocations; i++ {
		est.Predictions[i] = make([]float64, numTimes)
		est.Variances[i] = nanRow(numTimes)
	}
	for t := 0; t < numTimes; t++ {
		est.Statuses[t] = status
	}
	return est
}

func nanRow(n int) []float64 {
	row := make([]float64, n)
	for i := range row {
		row[i] = math.NaN()
	}
	return row
}

func hoursToDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}
