package domain

import (
	"fmt"
	"strings"
	"time"
)

// Candidate is a parcel evaluated as a possible P3 redevelopment site.
type Candidate struct {
	ID        int64
	Name      string
	Lat       float64
	Lon       float64
	Address   string
	Town      string
	County    string
	Acres     float64
	BldgSqft  float64
	LandUse   string
	Owner     string
	Source    string
	CreatedAt time.Time
}

// Validate enforces the invariants every persisted candidate must satisfy.
func (c Candidate) Validate() error {
	if c.Lat == 0 || c.Lon == 0 {
		return fmt.Errorf("candidate %q: missing coordinates", c.Name)
	}
	if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("candidate %q: coordinates out of range (%f, %f)", c.Name, c.Lat, c.Lon)
	}
	if c.Acres < 0 || c.BldgSqft < 0 {
		return fmt.Errorf("candidate %q: negative size", c.Name)
	}
	if !PermittedLandUse(c.LandUse) {
		return fmt.Errorf("candidate %q: land use %q is not permitted", c.Name, c.LandUse)
	}
	return nil
}

// DedupeKey identifies a candidate irrespective of letter case.
func (c Candidate) DedupeKey() string {
	return strings.ToLower(strings.TrimSpace(c.Name)) + "|" +
		strings.ToLower(strings.TrimSpace(c.Address)) + "|" +
		strings.ToLower(strings.TrimSpace(c.Town))
}

// Dedupe drops later candidates sharing a DedupeKey with an earlier one.
func Dedupe(candidates []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		key := c.DedupeKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// MeetsSize reports whether the candidate clears both size thresholds.
func (c Candidate) MeetsSize(minAcres, minBldgSqft float64) bool {
	return c.Acres >= minAcres && c.BldgSqft >= minBldgSqft
}

// DatasetOrigin tells where a loaded candidate set came from.
type DatasetOrigin string

const (
	OriginExternal DatasetOrigin = "external"
	OriginFallback DatasetOrigin = "fallback"
)

// Dataset is the ingestor's output: either externally sourced rows or the
// built-in sample set, never both.
type Dataset struct {
	Origin     DatasetOrigin
	Candidates []Candidate
	// Reason explains a fallback; empty for external data.
	Reason string
}
