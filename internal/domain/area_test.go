package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saltLakeArea() AreaModel {
	return AreaModel{
		Name:     "slc_ut",
		Note:     "Salt Lake City, UT",
		Timezone: "America/Denver",
		Boundary: []Vertex{
			{Lat: 40.4817, Lon: -112.1594},
			{Lat: 40.4817, Lon: -111.7616},
			{Lat: 40.8206, Lon: -111.7616},
			{Lat: 40.8206, Lon: -112.1594},
		},
	}
}

func chattanoogaArea() AreaModel {
	return AreaModel{
		Name: "chatt_tn",
		Boundary: []Vertex{
			{Lat: 34.9853, Lon: -85.3773},
			{Lat: 34.9853, Lon: -85.2101},
			{Lat: 35.0899, Lon: -85.2101},
			{Lat: 35.0899, Lon: -85.3773},
		},
	}
}

func TestAreaModelContains(t *testing.T) {
	area := saltLakeArea()

	assert.True(t, area.Contains(40.7608, -111.8910))
	assert.False(t, area.Contains(35.0456, -85.3097))
	assert.False(t, area.Contains(41.5, -111.9))
}

func TestAreaModelContains_WindingOrderIrrelevant(t *testing.T) {
	area := saltLakeArea()
	reversed := area
	reversed.Boundary = []Vertex{
		{Lat: 40.8206, Lon: -112.1594},
		{Lat: 40.8206, Lon: -111.7616},
		{Lat: 40.4817, Lon: -111.7616},
		{Lat: 40.4817, Lon: -112.1594},
	}

	assert.True(t, reversed.Contains(40.7608, -111.8910))
	assert.False(t, reversed.Contains(35.0456, -85.3097))
}

func TestAreaModelContains_DegeneratePolygon(t *testing.T) {
	area := AreaModel{Boundary: []Vertex{{Lat: 40, Lon: -112}, {Lat: 41, Lon: -111}}}
	assert.False(t, area.Contains(40.5, -111.5))
}

func TestFindAreaModel(t *testing.T) {
	areas := []AreaModel{saltLakeArea(), chattanoogaArea()}

	t.Run("routes to containing area", func(t *testing.T) {
		area, err := FindAreaModel(areas, 35.0456, -85.3097)
		require.NoError(t, err)
		assert.Equal(t, "chatt_tn", area.Name)
	})

	t.Run("no area contains point", func(t *testing.T) {
		_, err := FindAreaModel(areas, 51.5, -0.12)
		assert.ErrorIs(t, err, ErrNoAreaModel)
	})
}

func TestFindAreaModelByName(t *testing.T) {
	areas := []AreaModel{saltLakeArea(), chattanoogaArea()}

	area, err := FindAreaModelByName(areas, "slc_ut")
	require.NoError(t, err)
	assert.Equal(t, "Salt Lake City, UT", area.Note)

	_, err = FindAreaModelByName(areas, "kc_mo")
	assert.ErrorIs(t, err, ErrNoAreaModel)
}

func TestLengthScalesForWindow(t *testing.T) {
	jan := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)
	dec := time.Date(2022, 12, 1, 0, 0, 0, 0, time.UTC)

	profiles := []LengthScaleProfile{
		{Start: jan, End: jun, LatLon: 500, Elevation: 100, Time: 2},
		{Start: jun, End: dec, LatLon: 800, Elevation: 150, Time: 3},
	}

	t.Run("window inside first profile", func(t *testing.T) {
		p, err := LengthScalesForWindow(profiles, jan.AddDate(0, 1, 0), jan.AddDate(0, 2, 0))
		require.NoError(t, err)
		assert.Equal(t, 500.0, p.LatLon)
	})

	t.Run("window inside second profile", func(t *testing.T) {
		p, err := LengthScalesForWindow(profiles, jun.AddDate(0, 1, 0), jun.AddDate(0, 2, 0))
		require.NoError(t, err)
		assert.Equal(t, 800.0, p.LatLon)
	})

	t.Run("window straddling both takes first in order", func(t *testing.T) {
		p, err := LengthScalesForWindow(profiles, jan.AddDate(0, 4, 0), jun.AddDate(0, 1, 0))
		require.NoError(t, err)
		assert.Equal(t, 500.0, p.LatLon)
	})

	t.Run("point query padded for lookup", func(t *testing.T) {
		// Exactly on the first profile's end boundary: the half-open
		// interval excludes it, but the ±1 day point-query padding lets the
		// first profile match.
		p, err := LengthScalesForWindow(profiles, jun, jun)
		require.NoError(t, err)
		assert.Equal(t, 500.0, p.LatLon)
	})

	t.Run("window outside all profiles", func(t *testing.T) {
		_, err := LengthScalesForWindow(profiles, dec.AddDate(1, 0, 0), dec.AddDate(1, 1, 0))
		assert.ErrorIs(t, err, ErrNoLengthScales)
	})

	t.Run("no profiles", func(t *testing.T) {
		_, err := LengthScalesForWindow(nil, jan, jun)
		assert.ErrorIs(t, err, ErrNoLengthScales)
	})
}
