package domain

import (
	"fmt"
	"math"
)

// SearchQuery carries the geofence and thresholds of a ranked search.
type SearchQuery struct {
	Lat         float64
	Lon         float64
	RadiusMiles float64
	MinAcres    float64
	MinBldgSqft float64
	MinScore    int
}

// Validate rejects queries that cannot describe a point and radius on Earth.
func (q SearchQuery) Validate() error {
	for name, v := range map[string]float64{"lat": q.Lat, "lon": q.Lon, "radius": q.RadiusMiles, "min_acres": q.MinAcres, "min_bldg_sqft": q.MinBldgSqft} {
		if !Finite(v) {
			return fmt.Errorf("%w: %s must be a finite number", ErrInvalidQuery, name)
		}
	}
	if q.Lat < -90 || q.Lat > 90 {
		return fmt.Errorf("%w: latitude %f out of range", ErrInvalidQuery, q.Lat)
	}
	if q.Lon < -180 || q.Lon > 180 {
		return fmt.Errorf("%w: longitude %f out of range", ErrInvalidQuery, q.Lon)
	}
	if q.RadiusMiles <= 0 {
		return fmt.Errorf("%w: radius must be positive", ErrInvalidQuery)
	}
	if q.MinAcres < 0 || q.MinBldgSqft < 0 {
		return fmt.Errorf("%w: size thresholds must not be negative", ErrInvalidQuery)
	}
	return nil
}

// Finite reports whether v is neither NaN nor an infinity.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// BoundingBox is an inclusive lat/lon rectangle used to prefilter rows in SQL.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
	// WrapsLon is set when the box cannot be expressed as one longitude range.
	WrapsLon bool
}

// StoreFilter is the coarse, index-friendly part of a search handed to the store.
type StoreFilter struct {
	Box         *BoundingBox
	MinAcres    float64
	MinBldgSqft float64
	MinScore    int
}

// ScoredCandidate is a stored candidate joined with its score and signals.
type ScoredCandidate struct {
	Candidate Candidate
	Score     Score
	Signals   []Signal
}

// RankedResult is one search hit.
type RankedResult struct {
	Candidate     Candidate
	DistanceMiles float64
	ScoreTotal    int
	Breakdown     Breakdown
	Signals       []Signal
	// Corroborated is true when at least one signal came from an external source.
	Corroborated bool
}

// CandidateDetail is the full record served for a single candidate lookup.
type CandidateDetail struct {
	Candidate Candidate
	Signals   []Signal
	Score     Score
	HasScore  bool
}
