package geo

import (
	"math"

	"github.com/tidwall/geodesic"
)

// WGS84 parameters
const (
	semiMajorAxis = 6378137.0
	flattening    = 1.0 / 298.257223563
	eccentricity2 = flattening * (2.0 - flattening)
)

// CartesianPosition is a point in a local east/north plane, in metres.
type CartesianPosition struct {
	X float64
	Y float64
}

type ecef struct {
	x, y, z float64
}

func toECEF(p Position) ecef {
	lat := p.Latitude * math.Pi / 180.0
	lon := p.Longitude * math.Pi / 180.0
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)
	n := semiMajorAxis / math.Sqrt(1.0-eccentricity2*sinLat*sinLat)
	return ecef{
		x: n * cosLat * cosLon,
		y: n * cosLat * sinLon,
		z: n * (1.0 - eccentricity2) * sinLat,
	}
}

// LocalCartesian is an east-north-up frame tangent to the ellipsoid at an origin.
type LocalCartesian struct {
	origin                         ecef
	sinLat, cosLat, sinLon, cosLon float64
}

func NewLocalCartesian(origin Position) LocalCartesian {
	sinLat, cosLat := math.Sincos(origin.Latitude * math.Pi / 180.0)
	sinLon, cosLon := math.Sincos(origin.Longitude * math.Pi / 180.0)
	return LocalCartesian{
		origin: toECEF(origin),
		sinLat: sinLat, cosLat: cosLat,
		sinLon: sinLon, cosLon: cosLon,
	}
}

// Forward projects p into the frame; X points east and Y points north. Height is dropped.
func (l LocalCartesian) Forward(p Position) CartesianPosition {
	q := toECEF(p)
	dx := q.x - l.origin.x
	dy := q.y - l.origin.y
	dz := q.z - l.origin.z
	return CartesianPosition{
		X: -l.sinLon*dx + l.cosLon*dy,
		Y: -l.sinLat*l.cosLon*dx - l.sinLat*l.sinLon*dy + l.cosLat*dz,
	}
}

// Distance returns the geodesic distance between a and b on the WGS84 ellipsoid, in metres.
func Distance(a, b Position) float64 {
	var s12 float64
	geodesic.WGS84.Inverse(a.Latitude, a.Longitude, b.Latitude, b.Longitude, &s12, nil, nil)
	return s12
}
