package geo

// BBox is an axis-aligned latitude/longitude box.
type BBox struct {
	LatLo float64
	LatHi float64
	LonLo float64
	LonHi float64
}

// Contains reports whether a point lies inside the box, inclusive of edges.
func (b BBox) Contains(lat, lon float64) bool {
	return lat >= b.LatLo && lat <= b.LatHi && lon >= b.LonLo && lon <= b.LonHi
}

// BoundingBox computes a lat/lon box covering ±radius meters around a point.
// The radius is applied along the UTM axes, so the box approximates a
// geodesic circle rather than tracing it. That is good enough for limiting
// a telemetry query to relevant sensors.
func BoundingBox(lat, lon, radiusMeters float64) (BBox, error) {
	center, err := ToUTM(lat, lon)
	if err != nil {
		return BBox{}, err
	}

	south := center
	south.Northing -= radiusMeters
	north := center
	north.Northing += radiusMeters
	west := center
	west.Easting -= radiusMeters
	east := center
	east.Easting += radiusMeters

	latLo, _, err := ToLatLon(south)
	if err != nil {
		return BBox{}, err
	}
	latHi, _, err := ToLatLon(north)
	if err != nil {
		return BBox{}, err
	}
	_, lonLo, err := ToLatLon(west)
	if err != nil {
		return BBox{}, err
	}
	_, lonHi, err := ToLatLon(east)
	if err != nil {
		return BBox{}, err
	}

	return BBox{LatLo: latLo, LatHi: latHi, LonLo: lonLo, LonHi: lonHi}, nil
}

// Union folds two boxes into the smallest box covering both. The operation
// is associative and commutative, so multi-point queries can fold their
// per-point boxes in any order.
func Union(a, b BBox) BBox {
	return BBox{
		LatLo: min(a.LatLo, b.LatLo),
		LatHi: max(a.LatHi, b.LatHi),
		LonLo: min(a.LonLo, b.LonLo),
		LonHi: max(a.LonHi, b.LonHi),
	}
}
