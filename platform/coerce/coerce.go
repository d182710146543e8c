// Package coerce provides best-effort field fallback helpers for records
// arriving from upstream sources with inconsistent shapes. Display fields
// must never end up empty: when no candidate carries a value, a literal
// marker string is returned instead.
// This is part of the platform layer and contains no business logic.
package coerce

import "strings"

// MarkerNA is the display marker for absent free-form fields.
const MarkerNA = "N/A"

// MarkerUnknown is the display marker for absent name-like fields.
const MarkerUnknown = "Unknown"

// First returns the first non-blank candidate, trimmed. Candidates are
// checked in order, so callers list the preferred (nested, structured)
// field before legacy flat fields. Returns "" when all are blank.
func First(candidates ...string) string {
	for _, c := range candidates {
		trimmed := strings.TrimSpace(c)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// FirstOr returns the first non-blank candidate, or the given marker when
// none is present.
func FirstOr(marker string, candidates ...string) string {
	if v := First(candidates...); v != "" {
		return v
	}
	return marker
}

// NA returns the first non-blank candidate or "N/A".
func NA(candidates ...string) string {
	return FirstOr(MarkerNA, candidates...)
}

// Unknown returns the first non-blank candidate or "Unknown".
func Unknown(candidates ...string) string {
	return FirstOr(MarkerUnknown, candidates...)
}

// Deref returns the pointed-to string, or "" for a nil pointer. Useful for
// feeding optional upstream fields into First/NA/Unknown.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
