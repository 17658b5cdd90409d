package geo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKm(t *testing.T) {
	nyc := Point{Latitude: 40.7128, Longitude: -74.0060}
	london := Point{Latitude: 51.5074, Longitude: -0.1278}

	assert.InDelta(t, 5570, DistanceKm(nyc, london), 10)
	assert.Zero(t, DistanceKm(nyc, nyc))
	assert.InDelta(t, DistanceKm(nyc, london), DistanceKm(london, nyc), 1e-9)
}

func TestVelocityKmh(t *testing.T) {
	assert.InDelta(t, 3600, VelocityKmh(600, 10*time.Minute), 1e-9)
	assert.Zero(t, VelocityKmh(600, 0))
	assert.Zero(t, VelocityKmh(600, -time.Minute))
}

func TestCentroid(t *testing.T) {
	_, ok := Centroid(nil)
	assert.False(t, ok)

	c, ok := Centroid([]Point{{Latitude: 10, Longitude: 20}, {Latitude: 20, Longitude: 40}})
	assert.True(t, ok)
	assert.InDelta(t, 15, c.Latitude, 1e-9)
	assert.InDelta(t, 30, c.Longitude, 1e-9)
}
