// Package modelsvc is the HTTP client for the external interpolation model
// service, which fits a model over conditioned readings and answers
// mean/variance queries against it.
package modelsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/airshed-labs/estimate-service/internal/domain"
	"github.com/airshed-labs/estimate-service/internal/pipeline"
)

// Client talks to one model service instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client with a bounded request timeout. Model fits can
// run long, so the timeout should be generous relative to typical HTTP
// defaults.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type wireReading struct {
	ID        string  `json:"id"`
	Time      string  `json:"time"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	UTMEast   float64 `json:"utm_east"`
	UTMNorth  float64 `json:"utm_north"`
	Zone      string  `json:"zone"`
	PM25      float64 `json:"pm2_5"`
	Elevation float64 `json:"elevation"`
}

type createModelRequest struct {
	Readings    []wireReading `json:"readings"`
	LatLonScale float64       `json:"latlon_scale"`
	ElevScale   float64       `json:"elevation_scale"`
	TimeScale   float64       `json:"time_scale"`
	WindowStart string        `json:"window_start"`
	WindowEnd   string        `json:"window_end"`
}

type createModelResponse struct {
	ModelID    string  `json:"model_id"`
	TimeOffset float64 `json:"time_offset"`
	Status     string  `json:"status"`
}

// CreateModel fits a model over the readings within the padded window. A
// response without a model id is the service saying the window is not
// fittable; that comes back as a Model with an empty Handle, not an error.
func (c *Client) CreateModel(ctx context.Context, readings []domain.SensorReading, scales domain.LengthScaleProfile, windowStart, windowEnd time.Time) (pipeline.Model, error) {
	wire := make([]wireReading, len(readings))
	for i, r := range readings {
		var elev float64
		if r.Elevation != nil {
			elev = *r.Elevation
		}
		wire[i] = wireReading{
			ID:        r.ID,
			Time:      r.Time.Format(time.RFC3339),
			Lat:       r.Lat,
			Lon:       r.Lon,
			UTMEast:   r.UTM.Easting,
			UTMNorth:  r.UTM.Northing,
			Zone:      r.UTM.Zone(),
			PM25:      r.PM25,
			Elevation: elev,
		}
	}
	req := createModelRequest{
		Readings:    wire,
		LatLonScale: scales.LatLon,
		ElevScale:   scales.Elevation,
		TimeScale:   scales.Time,
		WindowStart: windowStart.Format(time.RFC3339),
		WindowEnd:   windowEnd.Format(time.RFC3339),
	}

	var resp createModelResponse
	if err := c.post(ctx, "/api/v1/model", req, &resp); err != nil {
		return pipeline.Model{}, err
	}
	return pipeline.Model{
		Handle:     resp.ModelID,
		TimeOffset: resp.TimeOffset,
		Status:     resp.Status,
	}, nil
}

type estimateRequest struct {
	ModelID    string    `json:"model_id"`
	TimeOffset float64   `json:"time_offset"`
	Lats       []float64 `json:"lats"`
	Lons       []float64 `json:"lons"`
	Elevations []float64 `json:"elevations"`
	Times      []string  `json:"times"`
}

type estimateResponse struct {
	Predictions [][]float64 `json:"predictions"`
	Variances   [][]float64 `json:"variances"`
	Statuses    []string    `json:"statuses"`
}

// Estimate queries the fitted model at each location for every time.
// Predictions and variances come back shaped [location][time].
func (c *Client) Estimate(ctx context.Context, model pipeline.Model, lats, lons, elevations []float64, times []time.Time) (pipeline.Estimates, error) {
	req := estimateRequest{
		ModelID:    model.Handle,
		TimeOffset: model.TimeOffset,
		Lats:       lats,
		Lons:       lons,
		Elevations: elevations,
		Times:      make([]string, len(times)),
	}
	for i, t := range times {
		req.Times[i] = t.Format(time.RFC3339)
	}

	var resp estimateResponse
	if err := c.post(ctx, "/api/v1/estimate", req, &resp); err != nil {
		return pipeline.Estimates{}, err
	}

	if len(resp.Predictions) != len(lats) || len(resp.Variances) != len(lats) {
		return pipeline.Estimates{}, fmt.Errorf("model service returned %d prediction rows for %d locations: %w",
			len(resp.Predictions), len(lats), domain.ErrShapeMismatch)
	}
	for i := range resp.Predictions {
		if len(resp.Predictions[i]) != len(times) || len(resp.Variances[i]) != len(times) {
			return pipeline.Estimates{}, fmt.Errorf("model service returned %d columns for %d times: %w",
				len(resp.Predictions[i]), len(times), domain.ErrShapeMismatch)
		}
	}
	if len(resp.Statuses) != len(times) {
		// Statuses are advisory; fill rather than fail.
		resp.Statuses = make([]string, len(times))
		for i := range resp.Statuses {
			resp.Statuses[i] = "ok"
		}
	}

	return pipeline.Estimates{
		Predictions: resp.Predictions,
		Variances:   resp.Variances,
		Statuses:    resp.Statuses,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("model service request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("model service %s returned %d: %s", path, resp.StatusCode, snippet)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
