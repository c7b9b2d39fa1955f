// Package vocabulary implements parsing and validation of the enum-valued
// task fields (status, priority, type, tags, custom fields) against the
// resolved workspace configuration. Matching is case-insensitive and ignores
// the separators people commonly swap (-, _, space); near-misses produce a
// "did you mean" suggestion computed by Levenshtein distance.
package vocabulary

import (
	"fmt"
	"strings"

	"github.com/localtaskrepo/lotar/pkg/constants"
)

// Wildcard is the sentinel that opens a list-valued field to any value.
const Wildcard = "*"

// ValidationError reports an enum value that failed validation, carrying the
// allowed values and the closest match when one is near enough to suggest.
type ValidationError struct {
	Field      string
	Value      string
	Allowed    []string
	Suggestion string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s %q (allowed: %s)", e.Field, e.Value, strings.Join(e.Allowed, ", "))
	if e.Suggestion != "" {
		msg += fmt.Sprintf(". Did you mean %q?", e.Suggestion)
	}
	return msg
}

// Normalize lowercases a token and strips the separator characters that are
// treated as equivalent when matching enum values.
func Normalize(s string) string {
	s = strings.ToLower(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', ' ':
			return -1
		}
		return r
	}, s)
}

// ParseEnum resolves raw against the allowed values and returns the canonical
// casing. Comparison ignores case and the -/_/space separators. When no value
// matches, the returned ValidationError carries the closest allowed value as
// a suggestion if its distance is below the half-length threshold.
func ParseEnum(field, raw string, allowed []string) (string, error) {
	if raw == "" {
		return "", &ValidationError{Field: field, Value: raw, Allowed: allowed}
	}

	normalized := Normalize(raw)
	for _, candidate := range allowed {
		if Normalize(candidate) == normalized {
			return candidate, nil
		}
	}

	verr := &ValidationError{Field: field, Value: raw, Allowed: allowed}
	if closest, distance := ClosestMatch(raw, allowed); closest != "" {
		if distance < len(raw)/2+1 {
			verr.Suggestion = closest
		}
	}
	return "", verr
}

// CheckListValue validates a value against a list-valued field configuration.
// A list containing the wildcard sentinel accepts any non-empty value;
// otherwise strict (normalized) membership applies and the canonical casing
// is returned.
func CheckListValue(field, raw string, allowed []string) (string, error) {
	if raw == "" {
		return "", &ValidationError{Field: field, Value: raw, Allowed: allowed}
	}
	for _, candidate := range allowed {
		if candidate == Wildcard {
			return raw, nil
		}
	}
	return ParseEnum(field, raw, allowed)
}

// CheckCustomFieldName rejects custom field names that would shadow one of
// the reserved task fields.
func CheckCustomFieldName(name string) error {
	normalized := Normalize(name)
	for _, reserved := range constants.ReservedTaskFields {
		if Normalize(reserved) == normalized {
			return fmt.Errorf("custom field name %q collides with a reserved task field", name)
		}
	}
	return nil
}

// ClosestMatch finds the candidate with the smallest Levenshtein distance to
// target. Comparison is case-insensitive. Returns the original candidate
// casing and the distance, or ("", 0) when candidates is empty.
func ClosestMatch(target string, candidates []string) (string, int) {
	targetLower := strings.ToLower(target)

	best := ""
	bestDistance := 0
	for _, candidate := range candidates {
		if candidate == Wildcard {
			continue
		}
		distance := LevenshteinDistance(targetLower, strings.ToLower(candidate))
		if best == "" || distance < bestDistance {
			best = candidate
			bestDistance = distance
		}
	}
	return best, bestDistance
}

// LevenshteinDistance computes the Levenshtein distance between two strings.
// Uses the two-row dynamic programming formulation so memory stays linear in
// the length of b.
func LevenshteinDistance(a, b string) int {
	aLen := len(a)
	bLen := len(b)

	if aLen == 0 {
		return bLen
	}
	if bLen == 0 {
		return aLen
	}

	previousRow := make([]int, bLen+1)
	currentRow := make([]int, bLen+1)

	for i := 0; i <= bLen; i++ {
		previousRow[i] = i
	}

	for i := 1; i <= aLen; i++ {
		currentRow[0] = i

		for j := 1; j <= bLen; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}

			deletion := previousRow[j] + 1
			insertion := currentRow[j-1] + 1
			substitution := previousRow[j-1] + cost

			currentRow[j] = min(deletion, min(insertion, substitution))
		}

		previousRow, currentRow = currentRow, previousRow
	}

	return previousRow[bLen]
}
