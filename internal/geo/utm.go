package geo

import (
	"errors"
	"fmt"
	"math"
)

// WGS-84 ellipsoid and Krüger series coefficients. The expansion is the
// conventional six-term transverse Mercator series, accurate to well under
// a meter anywhere inside a zone.
const (
	equatorialRadius = 6378137.0
	eccSquared       = 0.00669438
	scaleFactor      = 0.9996

	falseEasting  = 500000.0
	falseNorthing = 10000000.0
)

var (
	eccPrimeSquared = eccSquared / (1 - eccSquared)

	m1 = 1 - eccSquared/4 - 3*eccSquared*eccSquared/64 - 5*eccSquared*eccSquared*eccSquared/256
	m2 = 3*eccSquared/8 + 3*eccSquared*eccSquared/32 + 45*eccSquared*eccSquared*eccSquared/1024
	m3 = 15*eccSquared*eccSquared/256 + 45*eccSquared*eccSquared*eccSquared/1024
	m4 = 35 * eccSquared * eccSquared * eccSquared / 3072

	e1 = (1 - math.Sqrt(1-eccSquared)) / (1 + math.Sqrt(1-eccSquared))

	p2 = 3*e1/2 - 27*e1*e1*e1/32
	p3 = 21*e1*e1/16 - 55*e1*e1*e1*e1/32
	p4 = 151 * e1 * e1 * e1 / 96
	p5 = 1097 * e1 * e1 * e1 * e1 / 512
)

// zoneLetters maps 8-degree latitude bands starting at 80°S.
const zoneLetters = "CDEFGHJKLMNPQRSTUVWXX"

// ErrUnprojectable reports a coordinate that cannot be converted to UTM,
// such as the (0,0) sentinel emitted by sensors with no GPS fix or a
// latitude outside the UTM bands.
var ErrUnprojectable = errors.New("coordinate not projectable to UTM")

// UTMCoord is a projected position in meters within a single UTM zone.
type UTMCoord struct {
	Easting    float64
	Northing   float64
	ZoneNumber int
	ZoneLetter byte
}

// Zone formats the grid zone designator, e.g. "12T".
func (c UTMCoord) Zone() string {
	return fmt.Sprintf("%d%c", c.ZoneNumber, c.ZoneLetter)
}

// SameZone reports whether two projected coordinates share a UTM zone.
func (c UTMCoord) SameZone(o UTMCoord) bool {
	return c.ZoneNumber == o.ZoneNumber && c.ZoneLetter == o.ZoneLetter
}

// ToUTM performs the forward transverse Mercator projection of a WGS-84
// lat/lon pair. Latitude must lie within the UTM bands [-80, 84]. The (0,0)
// pair is rejected because it is the universal "no GPS fix" sentinel in
// sensor telemetry.
func ToUTM(lat, lon float64) (UTMCoord, error) {
	if lat == 0 && lon == 0 {
		return UTMCoord{}, fmt.Errorf("%w: (0,0) sentinel", ErrUnprojectable)
	}
	if lat < -80 || lat > 84 {
		return UTMCoord{}, fmt.Errorf("%w: latitude %.4f outside [-80, 84]", ErrUnprojectable, lat)
	}
	if lon < -180 || lon > 180 {
		return UTMCoord{}, fmt.Errorf("%w: longitude %.4f outside [-180, 180]", ErrUnprojectable, lon)
	}

	zone := zoneNumber(lat, lon)
	letter := zoneLetters[int(lat+80)/8]

	latRad := lat * math.Pi / 180
	lonRad := lon * math.Pi / 180
	centralRad := float64(centralMeridian(zone)) * math.Pi / 180

	sinLat := math.Sin(latRad)
	cosLat := math.Cos(latRad)
	tanLat := sinLat / cosLat

	n := equatorialRadius / math.Sqrt(1-eccSquared*sinLat*sinLat)
	c := eccPrimeSquared * cosLat * cosLat
	a := cosLat * (lonRad - centralRad)
	t := tanLat * tanLat

	m := equatorialRadius * (m1*latRad - m2*math.Sin(2*latRad) + m3*math.Sin(4*latRad) - m4*math.Sin(6*latRad))

	a2 := a * a
	a3 := a2 * a
	a4 := a3 * a
	a5 := a4 * a
	a6 := a5 * a

	easting := scaleFactor*n*(a+
		a3/6*(1-t+c)+
		a5/120*(5-18*t+t*t+72*c-58*eccPrimeSquared)) + falseEasting
	northing := scaleFactor * (m + n*tanLat*(a2/2+
		a4/24*(5-t+9*c+4*c*c)+
		a6/720*(61-58*t+t*t+600*c-330*eccPrimeSquared)))
	if lat < 0 {
		northing += falseNorthing
	}

	return UTMCoord{Easting: easting, Northing: northing, ZoneNumber: zone, ZoneLetter: letter}, nil
}

// ToLatLon performs the inverse projection from UTM back to WGS-84 degrees.
func ToLatLon(c UTMCoord) (lat, lon float64, err error) {
	if c.ZoneNumber < 1 || c.ZoneNumber > 60 {
		return 0, 0, fmt.Errorf("%w: zone number %d", ErrUnprojectable, c.ZoneNumber)
	}
	x := c.Easting - falseEasting
	y := c.Northing
	if c.ZoneLetter != 0 && c.ZoneLetter < 'N' {
		y -= falseNorthing
	}

	m := y / scaleFactor
	mu := m / (equatorialRadius * m1)

	pRad := mu + p2*math.Sin(2*mu) + p3*math.Sin(4*mu) + p4*math.Sin(6*mu) + p5*math.Sin(8*mu)
	pSin := math.Sin(pRad)
	pCos := math.Cos(pRad)
	pTan := pSin / pCos
	pTan2 := pTan * pTan
	pTan4 := pTan2 * pTan2

	epSin := 1 - eccSquared*pSin*pSin
	n := equatorialRadius / math.Sqrt(epSin)
	r := (1 - eccSquared) / epSin

	cc := eccPrimeSquared * pCos * pCos
	cc2 := cc * cc

	d := x / (n * scaleFactor)
	d2 := d * d
	d3 := d2 * d
	d4 := d3 * d
	d5 := d4 * d
	d6 := d5 * d

	latRad := pRad - (pTan/r)*(d2/2-
		d4/24*(5+3*pTan2+10*cc-4*cc2-9*eccPrimeSquared)) +
		d6/720*(61+90*pTan2+298*cc+45*pTan4-252*eccPrimeSquared-3*cc2)
	lonRad := (d -
		d3/6*(1+2*pTan2+cc) +
		d5/120*(5-2*cc+28*pTan2-3*cc2+8*eccPrimeSquared+24*pTan4)) / pCos

	lat = latRad * 180 / math.Pi
	lon = lonRad*180/math.Pi + float64(centralMeridian(c.ZoneNumber))
	return lat, lon, nil
}

// zoneNumber computes the UTM zone for a coordinate, honoring the Norway
// and Svalbard exceptions.
func zoneNumber(lat, lon float64) int {
	if lat >= 56 && lat < 64 && lon >= 3 && lon < 12 {
		return 32
	}
	if lat >= 72 && lat <= 84 && lon >= 0 {
		switch {
		case lon < 9:
			return 31
		case lon < 21:
			return 33
		case lon < 33:
			return 35
		case lon < 42:
			return 37
		}
	}
	return int((lon+180)/6) + 1
}

// centralMeridian returns the central meridian of a zone in degrees.
func centralMeridian(zone int) int {
	return (zone-1)*6 - 180 + 3
}
