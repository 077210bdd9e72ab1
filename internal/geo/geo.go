package geo

import (
	"math"

	"P3Recon/internal/domain"
)

// EarthRadiusMiles is the mean Earth radius used for great-circle distances.
const EarthRadiusMiles = 3958.8

// DistanceMiles returns the haversine distance between two points.
func DistanceMiles(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	a = math.Min(1, math.Max(0, a))
	return 2 * EarthRadiusMiles * math.Asin(math.Sqrt(a))
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Box returns a rectangle that contains every point within radiusMiles of the
// centre, padded by one percent. Longitude bounds are dropped near the poles
// and when the box would cross the antimeridian.
func Box(lat, lon, radiusMiles float64) domain.BoundingBox {
	padded := radiusMiles * 1.01
	dLat := padded / EarthRadiusMiles * 180 / math.Pi

	box := domain.BoundingBox{
		MinLat: math.Max(-90, lat-dLat),
		MaxLat: math.Min(90, lat+dLat),
		MinLon: -180,
		MaxLon: 180,
	}

	if box.MinLat <= -90 || box.MaxLat >= 90 {
		box.WrapsLon = true
		return box
	}

	cosLat := math.Cos(toRadians(math.Max(math.Abs(box.MinLat), math.Abs(box.MaxLat))))
	if cosLat < 1e-6 {
		box.WrapsLon = true
		return box
	}

	dLon := dLat / cosLat
	if dLon >= 180 || lon-dLon < -180 || lon+dLon > 180 {
		box.WrapsLon = true
		return box
	}

	box.MinLon = lon - dLon
	box.MaxLon = lon + dLon
	return box
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
