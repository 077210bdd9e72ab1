package domain

import (
	"fmt"
	"time"
)

// SignalType enumerates the facts the pipeline knows how to observe.
type SignalType string

const (
	SignalParcelLandUse SignalType = "parcel_land_use"
	SignalParcelSize    SignalType = "parcel_size"
	SignalNews          SignalType = "news"
	SignalWARN          SignalType = "warn"
	SignalTaxSale       SignalType = "tax_sale"
)

// IsParcel reports whether the type is one of the two synthetic parcel signals.
func (t SignalType) IsParcel() bool {
	return t == SignalParcelLandUse || t == SignalParcelSize
}

// Signal is an observed fact linked to one candidate. Enrichers fill Type,
// Value and URL; the orchestrator stamps CandidateID and ObservedAt.
type Signal struct {
	CandidateID int64
	Type        SignalType
	Value       string
	URL         string
	ObservedAt  time.Time
}

// ParcelSignals builds the two synthetic signals every candidate carries.
func ParcelSignals(c Candidate) []Signal {
	return []Signal{
		{Type: SignalParcelLandUse, Value: c.LandUse, URL: c.Source},
		{Type: SignalParcelSize, Value: fmt.Sprintf("%.2f acres / %.0f sqft", c.Acres, c.BldgSqft), URL: c.Source},
	}
}

// DistinctTypes counts the different signal types in the slice.
func DistinctTypes(signals []Signal) int {
	seen := make(map[SignalType]struct{}, len(signals))
	for _, s := range signals {
		seen[s.Type] = struct{}{}
	}
	return len(seen)
}

// HasExternal reports whether any signal came from an enricher rather than
// from the parcel record itself.
func HasExternal(signals []Signal) bool {
	for _, s := range signals {
		if !s.Type.IsParcel() {
			return true
		}
	}
	return false
}
