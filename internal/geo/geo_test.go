package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceZeroForIdenticalPoints(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, DistanceMiles(39.0997, -94.5786, 39.0997, -94.5786))
}

func TestDistanceSymmetric(t *testing.T) {
	t.Parallel()

	ab := DistanceMiles(39.0997, -94.5786, 39.7392, -104.9903)
	ba := DistanceMiles(39.7392, -104.9903, 39.0997, -94.5786)

	assert.InDelta(t, ab, ba, 1e-9)
	// Kansas City to Denver is roughly 558 miles.
	assert.InDelta(t, 558, ab, 5)
}

func TestDistanceOneDegreeLatitude(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 69.09, DistanceMiles(0, 10, 1, 10), 0.01)
}

func TestRound2(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.23, Round2(1.2345))
	assert.Equal(t, 1.24, Round2(1.235001))
}

func TestBoxContainsRadius(t *testing.T) {
	t.Parallel()

	lat, lon, radius := 39.1, -94.58, 25.0
	box := Box(lat, lon, radius)

	assert.False(t, box.WrapsLon)
	north := lat + radius/EarthRadiusMiles*180/3.141592653589793
	assert.LessOrEqual(t, north, box.MaxLat)
	assert.Less(t, box.MinLon, lon)
	assert.Greater(t, box.MaxLon, lon)

	// A point due east at exactly the radius must fall inside the box.
	eastLon := lon
	for DistanceMiles(lat, lon, lat, eastLon) < radius {
		eastLon += 0.001
	}
	assert.LessOrEqual(t, eastLon-0.001, box.MaxLon)
}

func TestBoxNearPoleDropsLongitude(t *testing.T) {
	t.Parallel()

	box := Box(89.9, 0, 50)
	assert.True(t, box.WrapsLon)
}
