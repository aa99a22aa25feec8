package domain

import (
	"time"

	"github.com/golang/geo/s2"
)

// Vertex is one corner of an area's bounding polygon, in configured order.
type Vertex struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// SourceTable describes one telemetry table backing an area: the table name
// and its column naming, which varies per deployment. The retrieval adapter
// uses it as a projection description instead of hard-coding SQL per area.
type SourceTable struct {
	Table        string `json:"table"`
	IDColumn     string `json:"id_column"`
	TimeColumn   string `json:"time_column"`
	PM25Column   string `json:"pm2_5_column"`
	LatColumn    string `json:"lat_column"`
	LonColumn    string `json:"lon_column"`
	ModelColumn  string `json:"model_column,omitempty"`
	SourceColumn string `json:"source_column,omitempty"`
	LabelColumn  string `json:"label_column,omitempty"`
}

// LengthScaleProfile holds the interpolation kernel widths valid over the
// half-open interval [Start, End).
type LengthScaleProfile struct {
	Start     time.Time `json:"start_date"`
	End       time.Time `json:"end_date"`
	LatLon    float64   `json:"latlon"`    // meters
	Elevation float64   `json:"elevation"` // meters
	Time      float64   `json:"time"`      // hours
}

// CorrectionFactor is a linear calibration valid for one sensor model over
// the half-open interval [Start, End).
type CorrectionFactor struct {
	SensorModel string    `json:"sensor_model"`
	Start       time.Time `json:"start_date"`
	End         time.Time `json:"end_date"`
	Slope       float64   `json:"slope"`
	Intercept   float64   `json:"intercept"`
}

// AreaModel is a served geographic region and everything needed to estimate
// inside it. Loaded from configuration at startup and immutable afterwards;
// the pipeline never mutates it.
type AreaModel struct {
	Name              string               `json:"name"`
	Note              string               `json:"note"`
	Timezone          string               `json:"timezone"`
	Boundary          []Vertex             `json:"boundingbox"`
	Sources           []SourceTable        `json:"sources"`
	CorrectionFactors []CorrectionFactor   `json:"correctionfactors"`
	LengthScales      []LengthScaleProfile `json:"lengthscales"`
	ElevationFile     string               `json:"elevationfile"`
}

// Contains reports whether a point lies inside the area's bounding polygon.
func (a *AreaModel) Contains(lat, lon float64) bool {
	if len(a.Boundary) < 3 {
		return false
	}
	pts := make([]s2.Point, len(a.Boundary))
	for i, v := range a.Boundary {
		pts[i] = s2.PointFromLatLng(s2.LatLngFromDegrees(v.Lat, v.Lon))
	}
	loop := s2.LoopFromPoints(pts)
	// Normalize so the loop encloses the polygon's interior regardless of
	// the winding order used in the config file.
	loop.Normalize()
	return loop.ContainsPoint(s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon)))
}

// FindAreaModel routes a query location to its area model. Exactly the
// first area (in configured order) containing the point is selected.
// Returns ErrNoAreaModel when the point is outside every area.
func FindAreaModel(areas []AreaModel, lat, lon float64) (*AreaModel, error) {
	for i := range areas {
		if areas[i].Contains(lat, lon) {
			return &areas[i], nil
		}
	}
	return nil, ErrNoAreaModel
}

// FindAreaModelByName selects an area by its stable name.
func FindAreaModelByName(areas []AreaModel, name string) (*AreaModel, error) {
	for i := range areas {
		if areas[i].Name == name {
			return &areas[i], nil
		}
	}
	return nil, ErrNoAreaModel
}

// LengthScalesForWindow picks the first profile whose validity interval
// overlaps [start, end). A point query (start == end) is padded by a day on
// each side for the lookup only, so a profile boundary falling exactly on
// the query instant still matches. Ties between overlapping profiles go to
// the first in configured order; that order is part of the configuration
// contract, not computed here.
func LengthScalesForWindow(profiles []LengthScaleProfile, start, end time.Time) (LengthScaleProfile, error) {
	lookupStart, lookupEnd := start, end
	if start.Equal(end) {
		lookupStart = start.Add(-24 * time.Hour)
		lookupEnd = end.Add(24 * time.Hour)
	}
	for _, p := range profiles {
		if lookupStart.Before(p.End) && !lookupEnd.Before(p.Start) {
			return p, nil
		}
	}
	return LengthScaleProfile{}, ErrNoLengthScales
}
