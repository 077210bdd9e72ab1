package dataset

import "P3Recon/internal/domain"

const sampleSource = "sample"

// SampleCandidates is the built-in Kansas City area set used when no external
// dataset can be obtained. Every entry satisfies domain.Candidate.Validate.
func SampleCandidates() []domain.Candidate {
	return []domain.Candidate{
		{
			Name:     "KCI Logistics Campus",
			Address:  "11500 N Ambassador Dr",
			Town:     "Kansas City",
			County:   "Platte",
			Lat:      39.3156,
			Lon:      -94.7139,
			Acres:    64.5,
			BldgSqft: 410000,
			LandUse:  "Industrial Warehouse",
			Owner:    "Kansas City Aviation Department",
			Source:   sampleSource,
		},
		{
			Name:     "West Bottoms Revamp",
			Address:  "1600 Genessee St",
			Town:     "Kansas City",
			County:   "Jackson",
			Lat:      39.1084,
			Lon:      -94.6036,
			Acres:    12.3,
			BldgSqft: 96000,
			LandUse:  "Light Industrial",
			Owner:    "West Bottoms Holdings LLC",
			Source:   sampleSource,
		},
		{
			Name:     "Independence Rail Yard",
			Address:  "901 S Noland Rd",
			Town:     "Independence",
			County:   "Jackson",
			Lat:      39.0951,
			Lon:      -94.4211,
			Acres:    31.0,
			BldgSqft: 42000,
			LandUse:  "Heavy Industrial",
			Owner:    "Independence Terminal Co",
			Source:   sampleSource,
		},
		{
			Name:     "Rivergate Freight Terminal",
			Address:  "2200 Front St",
			Town:     "Kansas City",
			County:   "Clay",
			Lat:      39.1213,
			Lon:      -94.5531,
			Acres:    18.7,
			BldgSqft: 155000,
			LandUse:  "Warehouse / Distribution",
			Owner:    "Rivergate Partners",
			Source:   sampleSource,
		},
		{
			Name:     "Oak Ridge Transit Hub",
			Address:  "7800 E 40 Hwy",
			Town:     "Raytown",
			County:   "Jackson",
			Lat:      39.0402,
			Lon:      -94.4702,
			Acres:    8.2,
			BldgSqft: 58000,
			LandUse:  "Institutional",
			Owner:    "Kansas City Area Transportation Authority",
			Source:   sampleSource,
		},
		{
			Name:     "Cedar Point Industrial Park",
			Address:  "4100 Birmingham Rd",
			Town:     "North Kansas City",
			County:   "Clay",
			Lat:      39.1502,
			Lon:      -94.5297,
			Acres:    26.4,
			BldgSqft: 182000,
			LandUse:  "Industrial",
			Owner:    "Cedar Point Realty Trust",
			Source:   sampleSource,
		},
	}
}
