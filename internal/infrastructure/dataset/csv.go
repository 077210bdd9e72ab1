package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"P3Recon/internal/domain"
)

type field int

const (
	fieldName field = iota
	fieldAddress
	fieldTown
	fieldCounty
	fieldLandUse
	fieldOwner
	fieldAcres
	fieldBldgSqft
	fieldLat
	fieldLon
)

// aliases maps normalized header names onto record fields. The first alias
// present in a header wins.
var aliases = map[field][]string{
	fieldName:     {"name", "property_name", "site_name"},
	fieldAddress:  {"address", "site_address", "situs", "property_address"},
	fieldTown:     {"city", "town", "municipality"},
	fieldCounty:   {"county", "county_name"},
	fieldLandUse:  {"land_use", "land_use_description", "landuse", "use_description", "property_class"},
	fieldOwner:    {"owner", "owner_name"},
	fieldAcres:    {"acres", "acreage", "lot_acres"},
	fieldBldgSqft: {"bldg_sqft", "building_sqft", "building_area", "sqft"},
	fieldLat:      {"lat", "latitude"},
	fieldLon:      {"lon", "lng", "longitude"},
}

// ParseResult is the outcome of reading one CSV document.
type ParseResult struct {
	Candidates         []domain.Candidate
	Rows               int
	FilteredLandUse    int
	MissingCoordinates int
	Malformed          []*domain.ParseError
}

// Parse reads a parcel CSV, keeping rows with a permitted land use and
// resolvable coordinates. Malformed rows are skipped and reported.
func Parse(r io.Reader, source string) (ParseResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return ParseResult{}, &domain.ParseError{Source: source, Item: "header", Err: err}
	}

	columns := resolveColumns(header)
	if _, ok := columns[fieldLat]; !ok {
		return ParseResult{}, &domain.ParseError{Source: source, Item: "header", Err: errors.New("no latitude column")}
	}
	if _, ok := columns[fieldLon]; !ok {
		return ParseResult{}, &domain.ParseError{Source: source, Item: "header", Err: errors.New("no longitude column")}
	}

	var result ParseResult
	line := 1
	for {
		record, err := reader.Read()
		line++
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			result.Malformed = append(result.Malformed, &domain.ParseError{Source: source, Item: fmt.Sprintf("line %d", line), Err: err})
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				continue
			}
			return result, &domain.ParseError{Source: source, Item: fmt.Sprintf("line %d", line), Err: err}
		}
		result.Rows++

		get := func(f field) string {
			idx, ok := columns[f]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		landUse := get(fieldLandUse)
		if !domain.PermittedLandUse(landUse) {
			result.FilteredLandUse++
			continue
		}

		lat, latOK := parseCoordinate(get(fieldLat))
		lon, lonOK := parseCoordinate(get(fieldLon))
		if !latOK || !lonOK {
			result.MissingCoordinates++
			continue
		}

		c := domain.Candidate{
			Name:     get(fieldName),
			Address:  get(fieldAddress),
			Town:     get(fieldTown),
			County:   get(fieldCounty),
			LandUse:  landUse,
			Owner:    get(fieldOwner),
			Acres:    parseSize(get(fieldAcres)),
			BldgSqft: parseSize(get(fieldBldgSqft)),
			Lat:      lat,
			Lon:      lon,
			Source:   source,
		}
		if c.Name == "" {
			c.Name = c.Address
		}

		if err := c.Validate(); err != nil {
			result.Malformed = append(result.Malformed, &domain.ParseError{Source: source, Item: fmt.Sprintf("line %d", line), Err: err})
			continue
		}
		result.Candidates = append(result.Candidates, c)
	}

	return result, nil
}

func resolveColumns(header []string) map[field]int {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if _, exists := index[key]; !exists {
			index[key] = i
		}
	}

	columns := make(map[field]int, len(aliases))
	for f, names := range aliases {
		for _, name := range names {
			if i, ok := index[name]; ok {
				columns[f] = i
				break
			}
		}
	}
	return columns
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "_", "-", "_", ".", "_").Replace(h)
}

func parseCoordinate(value string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseSize tolerates thousands separators and treats anything else
// non-numeric or negative as zero.
func parseSize(value string) float64 {
	cleaned := strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
