package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/airshed-labs/estimate-service/internal/domain"
)

// LoadAreaModels reads the served areas from a JSON file. Order matters:
// the first area containing a query point wins, and the first matching
// length-scale profile within an area wins.
func LoadAreaModels(path string) ([]domain.AreaModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read areas: %w", err)
	}

	var areas []domain.AreaModel
	if err := json.Unmarshal(data, &areas); err != nil {
		return nil, fmt.Errorf("parse areas %s: %w", path, err)
	}
	if len(areas) == 0 {
		return nil, fmt.Errorf("areas %s: no areas configured", path)
	}

	seen := make(map[string]bool, len(areas))
	for i, a := range areas {
		if a.Name == "" {
			return nil, fmt.Errorf("areas %s: area %d has no name", path, i)
		}
		if seen[a.Name] {
			return nil, fmt.Errorf("areas %s: duplicate area name %q", path, a.Name)
		}
		seen[a.Name] = true
		if len(a.Boundary) < 3 {
			return nil, fmt.Errorf("areas %s: area %q needs at least 3 boundary vertices", path, a.Name)
		}
		if len(a.Sources) == 0 {
			return nil, fmt.Errorf("areas %s: area %q has no telemetry sources", path, a.Name)
		}
	}
	return areas, nil
}
