package geomath

import (
	"errors"
	"fmt"
	"math"
)

const (
	// EarthRadiusMiles используется и для подсчёта, и для отрисовки радиусов
	EarthRadiusMiles = 3958.8
	EarthRadiusKm    = 6371.0

	// MilesPerDegree - длина одного градуса дуги большого круга
	MilesPerDegree = EarthRadiusMiles * math.Pi / 180

	DefaultCircleSegments = 64
)

var ErrInvalidPosition = errors.New("invalid position")

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// FromPosition converts a GeoJSON position ([lon, lat, ...]) into a Point.
// This and Position are the only places where axis order is swapped.
func FromPosition(pos []float64) (Point, error) {
	if len(pos) < 2 {
		return Point{}, fmt.Errorf("%w: %d coordinates", ErrInvalidPosition, len(pos))
	}
	p := Point{Lat: pos[1], Lon: pos[0]}
	if !p.Valid() {
		return Point{}, fmt.Errorf("%w: lat=%v lon=%v", ErrInvalidPosition, p.Lat, p.Lon)
	}
	return p, nil
}

// Position returns the GeoJSON [lon, lat] form of the point.
func (p Point) Position() []float64 {
	return []float64{p.Lon, p.Lat}
}

func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

func toDeg(rad float64) float64 { return rad * 180 / math.Pi }

func haversine(a, b Point, radius float64) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	// округление может дать h чуть больше 1
	h = math.Min(1, math.Max(0, h))
	return 2 * radius * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// HaversineMiles returns the great-circle distance between a and b in miles.
func HaversineMiles(a, b Point) float64 {
	return haversine(a, b, EarthRadiusMiles)
}

func HaversineKm(a, b Point) float64 {
	return haversine(a, b, EarthRadiusKm)
}

// CirclePolygon approximates a circle of radiusMiles around center as a closed
// GeoJSON ring ([lon, lat] positions, first == last). Vertices are placed by the
// spherical destination formula with the same Earth radius HaversineMiles uses,
// so every vertex is radiusMiles away from center by HaversineMiles.
func CirclePolygon(center Point, radiusMiles float64, segments int) [][]float64 {
	if segments < 3 {
		segments = DefaultCircleSegments
	}

	ring := make([][]float64, 0, segments+1)
	angular := radiusMiles / EarthRadiusMiles
	lat1 := toRad(center.Lat)
	lon1 := toRad(center.Lon)

	for i := 0; i < segments; i++ {
		bearing := 2 * math.Pi * float64(i) / float64(segments)
		lat2 := math.Asin(math.Sin(lat1)*math.Cos(angular) +
			math.Cos(lat1)*math.Sin(angular)*math.Cos(bearing))
		lon2 := lon1 + math.Atan2(
			math.Sin(bearing)*math.Sin(angular)*math.Cos(lat1),
			math.Cos(angular)-math.Sin(lat1)*math.Sin(lat2),
		)
		p := Point{Lat: toDeg(lat2), Lon: normalizeLon(toDeg(lon2))}
		ring = append(ring, p.Position())
	}
	ring = append(ring, []float64{ring[0][0], ring[0][1]})

	return ring
}

func normalizeLon(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}

// RingCentroid returns the vertex mean of a GeoJSON ring, ignoring the closing
// position. Used when a footprint arrives without an explicit centroid.
func RingCentroid(ring [][]float64) (Point, error) {
	n := len(ring)
	if n > 1 && len(ring[0]) >= 2 && len(ring[n-1]) >= 2 &&
		ring[0][0] == ring[n-1][0] && ring[0][1] == ring[n-1][1] {
		n--
	}
	if n == 0 {
		return Point{}, fmt.Errorf("%w: empty ring", ErrInvalidPosition)
	}

	var lat, lon float64
	for _, pos := range ring[:n] {
		p, err := FromPosition(pos)
		if err != nil {
			return Point{}, err
		}
		lat += p.Lat
		lon += p.Lon
	}
	return Point{Lat: lat / float64(n), Lon: lon / float64(n)}, nil
}
