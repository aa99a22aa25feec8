// Package elevation serves ground elevation lookups from per-area raster
// files. Rasters are JSON grids exported from a DEM, loaded once and cached
// for the life of the process.
package elevation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/airshed-labs/estimate-service/internal/domain"
)

// Raster is a regular lon/lat elevation grid with bilinear interpolation.
// Coordinates are queried lon-first to match the grid's axis order.
type Raster struct {
	lons  []float64
	lats  []float64
	elevs [][]float64 // [lat index][lon index]
}

type rasterFile struct {
	GridLons   []float64   `json:"grid_lons"`
	GridLats   []float64   `json:"grid_lats"`
	Elevations [][]float64 `json:"elevations"`
}

// LoadRaster reads and validates a raster file.
func LoadRaster(path string) (*Raster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read raster: %w", err)
	}
	var rf rasterFile
	if err := json.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse raster %s: %w", path, err)
	}

	if len(rf.GridLons) < 2 || len(rf.GridLats) < 2 {
		return nil, fmt.Errorf("raster %s: grid axes need at least 2 points", path)
	}
	if len(rf.Elevations) != len(rf.GridLats) {
		return nil, fmt.Errorf("raster %s: %d elevation rows for %d latitudes", path, len(rf.Elevations), len(rf.GridLats))
	}
	for i, row := range rf.Elevations {
		if len(row) != len(rf.GridLons) {
			return nil, fmt.Errorf("raster %s: row %d has %d columns for %d longitudes", path, i, len(row), len(rf.GridLons))
		}
	}
	if !sort.Float64sAreSorted(rf.GridLons) || !sort.Float64sAreSorted(rf.GridLats) {
		return nil, fmt.Errorf("raster %s: grid axes must be ascending", path)
	}

	return &Raster{lons: rf.GridLons, lats: rf.GridLats, elevs: rf.Elevations}, nil
}

// ElevationAt bilinearly interpolates the elevation at (lon, lat). Points
// outside the grid extent return 0; readings near an area's edge should not
// fail the whole request over a missing cell.
func (r *Raster) ElevationAt(lon, lat float64) (float64, error) {
	if lon < r.lons[0] || lon > r.lons[len(r.lons)-1] ||
		lat < r.lats[0] || lat > r.lats[len(r.lats)-1] {
		return 0, nil
	}

	li, lf := bracket(r.lons, lon)
	ti, tf := bracket(r.lats, lat)

	z00 := r.elevs[ti][li]
	z01 := r.elevs[ti][li+1]
	z10 := r.elevs[ti+1][li]
	z11 := r.elevs[ti+1][li+1]

	bottom := z00 + (z01-z00)*lf
	top := z10 + (z11-z10)*lf
	return bottom + (top-bottom)*tf, nil
}

// bracket finds the cell index containing v and the fractional position
// inside it. v must be within [axis[0], axis[len-1]].
func bracket(axis []float64, v float64) (int, float64) {
	i := sort.SearchFloat64s(axis, v)
	if i > 0 {
		i--
	}
	if i >= len(axis)-1 {
		i = len(axis) - 2
	}
	span := axis[i+1] - axis[i]
	if span == 0 {
		return i, 0
	}
	return i, (v - axis[i]) / span
}

// Provider hands out cached rasters keyed by area.
type Provider struct {
	dir string

	mu      sync.Mutex
	rasters map[string]*Raster
}

// NewProvider creates a provider loading rasters from dir.
func NewProvider(dir string) *Provider {
	return &Provider{dir: dir, rasters: make(map[string]*Raster)}
}

// ForArea returns the raster sampler for an area, loading it on first use.
func (p *Provider) ForArea(area *domain.AreaModel) (domain.ElevationSampler, error) {
	if area.ElevationFile == "" {
		return nil, fmt.Errorf("area %s has no elevation raster configured", area.Name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if r, ok := p.rasters[area.ElevationFile]; ok {
		return r, nil
	}
	r, err := LoadRaster(filepath.Join(p.dir, area.ElevationFile))
	if err != nil {
		return nil, err
	}
	p.rasters[area.ElevationFile] = r
	return r, nil
}
