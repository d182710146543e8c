package normalizer

import (
	"strings"

	"farmlink_backend/internal/farmapi"
	"farmlink_backend/platform/coerce"
)

// FormatLocation concatenates the administrative levels that are present,
// in fixed order from most to least specific. The city is skipped when it
// duplicates a level already included. Yields "N/A" when nothing is set.
func FormatLocation(loc *farmapi.RawLocation) string {
	if loc == nil {
		return coerce.MarkerNA
	}

	levels := []string{
		loc.FarmName,
		loc.Village,
		loc.Cell,
		loc.Sector,
		loc.District,
		loc.Province,
	}

	parts := make([]string, 0, len(levels)+1)
	for _, level := range levels {
		trimmed := strings.TrimSpace(level)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}

	city := strings.TrimSpace(loc.City)
	if city != "" && !containsFold(parts, city) {
		parts = append(parts, city)
	}

	if len(parts) == 0 {
		return coerce.MarkerNA
	}
	return strings.Join(parts, ", ")
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}
