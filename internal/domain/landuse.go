package domain

import "strings"

var (
	allowedLandUse = []string{"industrial", "commercial", "institutional", "warehouse", "utility"}
	blockedLandUse = []string{"residential", "single family", "multi family", "restaurant", "retail", "condo", "apartment", "hotel"}
)

// NormalizeLandUse lower-cases and trims a land-use description.
func NormalizeLandUse(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// PermittedLandUse keeps industrial-style uses. Any blocked keyword wins over
// an allowed one.
func PermittedLandUse(value string) bool {
	normalized := NormalizeLandUse(value)
	if normalized == "" {
		return false
	}
	for _, kw := range blockedLandUse {
		if strings.Contains(normalized, kw) {
			return false
		}
	}
	for _, kw := range allowedLandUse {
		if strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}
