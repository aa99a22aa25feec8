package httpapi

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/airshed-labs/estimate-service/internal/domain"
	"github.com/airshed-labs/estimate-service/internal/pipeline"
)

// jsonFloat marshals NaN and infinities as null, which strict JSON cannot
// represent. Degraded variances are NaN internally.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(v, 'g', -1, 64)), nil
}

func toJSONFloats(vs []float64) []jsonFloat {
	out := make([]jsonFloat, len(vs))
	for i, v := range vs {
		out[i] = jsonFloat(v)
	}
	return out
}

func toJSONFloatGrid(vs [][]float64) [][]jsonFloat {
	out := make([][]jsonFloat, len(vs))
	for i, row := range vs {
		out[i] = toJSONFloats(row)
	}
	return out
}

type pointEstimate struct {
	PM25      jsonFloat `json:"PM2_5"`
	Variance  jsonFloat `json:"Variance"`
	Time      string    `json:"Time"`
	Latitude  float64   `json:"Latitude"`
	Longitude float64   `json:"Longitude"`
	Elevation float64   `json:"Elevation"`
	Status    string    `json:"Status"`
}

type timeSliceEstimate struct {
	PM25     []jsonFloat `json:"PM2_5"`
	Variance []jsonFloat `json:"Variance"`
	Time     string      `json:"Time"`
	Status   string      `json:"Status"`
}

type locationsResponse struct {
	Latitudes  []float64           `json:"Latitude"`
	Longitudes []float64           `json:"Longitude"`
	Elevations []float64           `json:"Elevation"`
	Estimates  []timeSliceEstimate `json:"Estimates"`
}

type gridSliceEstimate struct {
	PM25     [][]jsonFloat `json:"PM2_5"`
	Variance [][]jsonFloat `json:"Variance"`
	Time     string        `json:"Time"`
	Status   string        `json:"Status"`
}

type gridResponse struct {
	AreaNote   string              `json:"Area model"`
	Latitudes  []float64           `json:"Latitudes"`
	Longitudes []float64           `json:"Longitudes"`
	Elevations [][]float64         `json:"Elevations"`
	Estimates  []gridSliceEstimate `json:"estimates"`
}

// handleEstimate serves a single-location time series.
func (s *Server) handleEstimate(c *gin.Context) {
	lat, err := queryFloat(c, "lat")
	if err != nil {
		badRequest(c, err)
		return
	}
	lon, err := queryFloat(c, "lon")
	if err != nil {
		badRequest(c, err)
		return
	}
	times, err := s.queryTimes(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	area, err := domain.FindAreaModel(s.areas, lat, lon)
	if err != nil {
		s.renderError(c, err)
		return
	}

	res, err := s.estimator.ComputeForLocations(c.Request.Context(), area, times, []float64{lat}, []float64{lon})
	if err != nil {
		s.renderError(c, err)
		return
	}

	out := make([]pointEstimate, len(times))
	for t := range times {
		out[t] = pointEstimate{
			PM25:      jsonFloat(res.Predictions[0][t]),
			Variance:  jsonFloat(res.Variances[0][t]),
			Time:      pipeline.TimeLabel(times[t]),
			Latitude:  lat,
			Longitude: lon,
			Elevation: res.Elevations[0],
			Status:    res.Statuses[t],
		}
	}
	c.JSON(http.StatusOK, out)
}

// handleEstimates serves a shared time series for a list of locations.
func (s *Server) handleEstimates(c *gin.Context) {
	lats, err := queryFloatList(c, "lats")
	if err != nil {
		badRequest(c, err)
		return
	}
	lons, err := queryFloatList(c, "lons")
	if err != nil {
		badRequest(c, err)
		return
	}
	if len(lats) != len(lons) {
		badRequest(c, fmt.Errorf("lats has %d values, lons has %d", len(lats), len(lons)))
		return
	}
	times, err := s.queryTimes(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	// All locations must fall in the same area; the first location routes.
	area, err := domain.FindAreaModel(s.areas, lats[0], lons[0])
	if err != nil {
		s.renderError(c, err)
		return
	}
	for i := 1; i < len(lats); i++ {
		if !area.Contains(lats[i], lons[i]) {
			badRequest(c, fmt.Errorf("location (%f, %f) is outside area %s", lats[i], lons[i], area.Name))
			return
		}
	}

	res, err := s.estimator.ComputeForLocations(c.Request.Context(), area, times, lats, lons)
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, locationsResponse{
		Latitudes:  lats,
		Longitudes: lons,
		Elevations: res.Elevations,
		Estimates:  timeSlices(res, times),
	})
}

// handleEstimateMap serves a lat/lon grid of estimates.
func (s *Server) handleEstimateMap(c *gin.Context) {
	latLo, err := queryFloat(c, "latLo")
	if err != nil {
		badRequest(c, err)
		return
	}
	latHi, err := queryFloat(c, "latHi")
	if err != nil {
		badRequest(c, err)
		return
	}
	lonLo, err := queryFloat(c, "lonLo")
	if err != nil {
		badRequest(c, err)
		return
	}
	lonHi, err := queryFloat(c, "lonHi")
	if err != nil {
		badRequest(c, err)
		return
	}
	latSize, err := queryInt(c, "latSize")
	if err != nil {
		badRequest(c, err)
		return
	}
	lonSize, err := queryInt(c, "lonSize")
	if err != nil {
		badRequest(c, err)
		return
	}
	if latSize < 1 || lonSize < 1 {
		badRequest(c, errors.New("latSize and lonSize must be at least 1"))
		return
	}
	if latHi < latLo || lonHi < lonLo {
		badRequest(c, errors.New("grid extent is inverted"))
		return
	}
	times, err := s.queryTimes(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	// The northwest corner routes the box to an area; every grid point
	// must be inside the retrieval zone anyway or the pipeline rejects
	// the request.
	area, err := domain.FindAreaModel(s.areas, latHi, lonLo)
	if err != nil {
		s.renderError(c, err)
		return
	}

	latVec := pipeline.Linspace(latLo, latHi, latSize)
	lonVec := pipeline.Linspace(lonLo, lonHi, lonSize)
	lats, lons := pipeline.MeshFlatten(latVec, lonVec)

	res, err := s.estimator.ComputeForLocations(c.Request.Context(), area, times, lats, lons)
	if err != nil {
		s.renderError(c, err)
		return
	}

	slices := make([]gridSliceEstimate, len(times))
	for t := range times {
		slices[t] = gridSliceEstimate{
			PM25:     toJSONFloatGrid(pipeline.ReshapeGrid(res.Predictions, latSize, lonSize, t)),
			Variance: toJSONFloatGrid(pipeline.ReshapeGrid(res.Variances, latSize, lonSize, t)),
			Time:     pipeline.TimeLabel(times[t]),
			Status:   res.Statuses[t],
		}
	}

	c.JSON(http.StatusOK, gridResponse{
		AreaNote:   area.Note,
		Latitudes:  latVec,
		Longitudes: lonVec,
		Elevations: pipeline.ReshapeElevations(res.Elevations, latSize, lonSize),
		Estimates:  slices,
	})
}

// handleCorrectionFactors lists an area's calibration table.
func (s *Server) handleCorrectionFactors(c *gin.Context) {
	area, ok := s.areaByName(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, area.CorrectionFactors)
}

// handleBoundingBox returns an area's boundary polygon.
func (s *Server) handleBoundingBox(c *gin.Context) {
	area, ok := s.areaByName(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, area.Boundary)
}

// areaByName resolves the area parameter, writing the error response
// itself when the lookup fails.
func (s *Server) areaByName(c *gin.Context) (*domain.AreaModel, bool) {
	name := c.Query("area")
	if name == "" {
		badRequest(c, errors.New("missing query parameter area"))
		return nil, false
	}
	area, err := domain.FindAreaModelByName(s.areas, name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown area %q", name)})
		return nil, false
	}
	return area, true
}

func timeSlices(res pipeline.Result, times []time.Time) []timeSliceEstimate {
	slices := make([]timeSliceEstimate, len(times))
	for t := range times {
		pm := make([]jsonFloat, len(res.Predictions))
		vr := make([]jsonFloat, len(res.Predictions))
		for i := range res.Predictions {
			pm[i] = jsonFloat(res.Predictions[i][t])
			vr[i] = jsonFloat(res.Variances[i][t])
		}
		slices[t] = timeSliceEstimate{
			PM25:     pm,
			Variance: vr,
			Time:     pipeline.TimeLabel(times[t]),
			Status:   res.Statuses[t],
		}
	}
	return slices
}

// queryTimes builds the query timestamps: either an explicit start/end
// range stepped by interval hours, a single time, or the current hour when
// nothing is given.
func (s *Server) queryTimes(c *gin.Context) ([]time.Time, error) {
	if ts := c.Query("time"); ts != "" {
		t, err := parseTime(ts)
		if err != nil {
			return nil, err
		}
		return []time.Time{t}, nil
	}

	startStr, endStr := c.Query("start"), c.Query("end")
	if startStr == "" && endStr == "" {
		return []time.Time{s.clock.Now().UTC().Truncate(time.Hour)}, nil
	}
	if startStr == "" || endStr == "" {
		return nil, errors.New("start and end must be given together")
	}

	start, err := parseTime(startStr)
	if err != nil {
		return nil, err
	}
	end, err := parseTime(endStr)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, errors.New("end is before start")
	}

	interval := 1.0
	if iv := c.Query("interval"); iv != "" {
		interval, err = strconv.ParseFloat(iv, 64)
		if err != nil || interval <= 0 {
			return nil, errors.New("interval must be a positive number of hours")
		}
	}

	return pipeline.InterpolateQueryDates(start, end, interval), nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q, want RFC3339", s)
	}
	return t.UTC(), nil
}

func queryFloat(c *gin.Context, name string) (float64, error) {
	s := c.Query(name)
	if s == "" {
		return 0, fmt.Errorf("missing query parameter %s", name)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, s)
	}
	return v, nil
}

func queryInt(c *gin.Context, name string) (int, error) {
	s := c.Query(name)
	if s == "" {
		return 0, fmt.Errorf("missing query parameter %s", name)
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, s)
	}
	return v, nil
}

func queryFloatList(c *gin.Context, name string) ([]float64, error) {
	s := c.Query(name)
	if s == "" {
		return nil, fmt.Errorf("missing query parameter %s", name)
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q", name, p)
		}
		out = append(out, v)
	}
	return out, nil
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// renderError maps pipeline errors onto HTTP statuses. Anything not
// recognized is a 500 with the detail kept server-side.
func (s *Server) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNoAreaModel):
		c.JSON(http.StatusNotFound, gin.H{"error": "location is outside every served area"})
	case errors.Is(err, domain.ErrZoneSpan),
		errors.Is(err, domain.ErrShapeMismatch),
		errors.Is(err, domain.ErrEmptyQuery),
		errors.Is(err, domain.ErrNoLengthScales):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.logger.Error("estimation request failed", "error", err, "path", c.FullPath())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
