package modelsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airshed-labs/estimate-service/internal/domain"
	"github.com/airshed-labs/estimate-service/internal/geo"
	"github.com/airshed-labs/estimate-service/internal/pipeline"
)

func testReading() domain.SensorReading {
	elev := 1430.0
	return domain.SensorReading{
		ID:   "S-07",
		Time: time.Date(2022, 3, 15, 8, 0, 0, 0, time.UTC),
		Lat:  40.7608, Lon: -111.8910,
		PM25:        14.2,
		SensorModel: "PMS5003",
		UTM:         geo.UTMCoord{Easting: 424798, Northing: 4512583, ZoneNumber: 12, ZoneLetter: 'T'},
		Elevation:   &elev,
	}
}

func TestCreateModel(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		var got createModelRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/v1/model", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			json.NewEncoder(w).Encode(createModelResponse{ModelID: "m-42", TimeOffset: 19066.3, Status: "ok"})
		}))
		defer srv.Close()

		c := NewClient(srv.URL, 5*time.Second)
		scales := domain.LengthScaleProfile{LatLon: 4000, Elevation: 5, Time: 0.25}
		start := time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC)

		model, err := c.CreateModel(context.Background(), []domain.SensorReading{testReading()}, scales, start, start.Add(24*time.Hour))
		require.NoError(t, err)

		assert.Equal(t, pipeline.Model{Handle: "m-42", TimeOffset: 19066.3, Status: "ok"}, model)

		require.Len(t, got.Readings, 1)
		assert.Equal(t, "S-07", got.Readings[0].ID)
		assert.Equal(t, "12T", got.Readings[0].Zone)
		assert.Equal(t, 1430.0, got.Readings[0].Elevation)
		assert.Equal(t, 4000.0, got.LatLonScale)
		assert.Equal(t, "2022-03-15T00:00:00Z", got.WindowStart)
	})

	t.Run("unfittable window has empty handle", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(createModelResponse{Status: "insufficient observations"})
		}))
		defer srv.Close()

		model, err := NewClient(srv.URL, time.Second).CreateModel(
			context.Background(), nil, domain.LengthScaleProfile{}, time.Now(), time.Now())
		require.NoError(t, err)
		assert.Empty(t, model.Handle)
		assert.Equal(t, "insufficient observations", model.Status)
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "fit diverged", http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, time.Second).CreateModel(
			context.Background(), nil, domain.LengthScaleProfile{}, time.Now(), time.Now())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "500")
		assert.Contains(t, err.Error(), "fit diverged")
	})
}

func TestEstimate(t *testing.T) {
	times := []time.Time{
		time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2022, 3, 15, 1, 0, 0, 0, time.UTC),
	}
	model := pipeline.Model{Handle: "m-42", TimeOffset: 19066.3}

	t.Run("round trip", func(t *testing.T) {
		var got estimateRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/estimate", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			json.NewEncoder(w).Encode(estimateResponse{
				Predictions: [][]float64{{8.1, 8.4}},
				Variances:   [][]float64{{1.2, 1.3}},
				Statuses:    []string{"ok", "ok"},
			})
		}))
		defer srv.Close()

		est, err := NewClient(srv.URL, time.Second).Estimate(
			context.Background(), model, []float64{40.76}, []float64{-111.89}, []float64{1430}, times)
		require.NoError(t, err)

		assert.Equal(t, "m-42", got.ModelID)
		assert.Equal(t, 19066.3, got.TimeOffset)
		assert.Equal(t, []string{"2022-03-15T00:00:00Z", "2022-03-15T01:00:00Z"}, got.Times)
		assert.Equal(t, [][]float64{{8.1, 8.4}}, est.Predictions)
		assert.Equal(t, []string{"ok", "ok"}, est.Statuses)
	})

	t.Run("shape mismatch rejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(estimateResponse{
				Predictions: [][]float64{{8.1}},
				Variances:   [][]float64{{1.2}},
			})
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, time.Second).Estimate(
			context.Background(), model, []float64{40.76}, []float64{-111.89}, []float64{1430}, times)
		assert.ErrorIs(t, err, domain.ErrShapeMismatch)
	})

	t.Run("missing statuses filled", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(estimateResponse{
				Predictions: [][]float64{{8.1, 8.4}},
				Variances:   [][]float64{{1.2, 1.3}},
			})
		}))
		defer srv.Close()

		est, err := NewClient(srv.URL, time.Second).Estimate(
			context.Background(), model, []float64{40.76}, []float64{-111.89}, []float64{1430}, times)
		require.NoError(t, err)
		assert.Equal(t, []string{"ok", "ok"}, est.Statuses)
	})
}
