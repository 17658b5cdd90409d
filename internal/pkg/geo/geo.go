// Package geo holds the great-circle helpers shared by the profile builder
// and the feature extractor.
package geo

import (
	"math"
	"time"
)

const earthRadiusKm = 6371.0

// Point is a WGS84 coordinate pair in degrees.
type Point struct {
	Latitude  float64
	Longitude float64
}

// DistanceKm returns the haversine distance between two points in kilometres.
func DistanceKm(a, b Point) float64 {
	lat1Rad := a.Latitude * math.Pi / 180
	lat2Rad := b.Latitude * math.Pi / 180
	deltaLat := (b.Latitude - a.Latitude) * math.Pi / 180
	deltaLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// VelocityKmh returns the speed needed to cover distanceKm in elapsed.
// Zero or negative elapsed time yields 0.
func VelocityKmh(distanceKm float64, elapsed time.Duration) float64 {
	hours := elapsed.Hours()
	if hours <= 0 {
		return 0
	}
	return distanceKm / hours
}

// Centroid returns the arithmetic mean of the given points. The second
// return value is false when points is empty.
func Centroid(points []Point) (Point, bool) {
	if len(points) == 0 {
		return Point{}, false
	}
	var lat, lon float64
	for _, p := range points {
		lat += p.Latitude
		lon += p.Longitude
	}
	n := float64(len(points))
	return Point{Latitude: lat / n, Longitude: lon / n}, true
}
