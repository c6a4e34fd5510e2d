// Package strings provides string-slice utilities used when sanitizing
// client-supplied id lists.
package strings

import (
	"slices"
	"strings"
)

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved.
//
//	DedupeAndTrim([]string{"  foo ", "bar", "foo", "", "  "})
//	// Returns: []string{"foo", "bar"}
func DedupeAndTrim(values []string) []string {
	return FilterDedupe(values, nil, 0)
}

// FilterDedupe trims, drops empties and duplicates, keeps only values for which
// keep returns true (all values when keep is nil), and stops after limit
// results (no limit when limit <= 0). Order is preserved.
func FilterDedupe(values []string, keep func(string) bool, limit int) []string {
	return filterDedupe(values, keep, limit, false)
}

// FilterDedupeLower is like FilterDedupe but lowercases each element first, so
// values differing only in case collapse into one.
//
//	FilterDedupeLower([]string{"ABC", " abc", "Def"}, nil, 0)
//	// Returns: []string{"abc", "def"}
func FilterDedupeLower(values []string, keep func(string) bool, limit int) []string {
	return filterDedupe(values, keep, limit, true)
}

func filterDedupe(values []string, keep func(string) bool, limit int, lower bool) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		if limit > 0 && len(result) == limit {
			break
		}
		trimmed := strings.TrimSpace(v)
		if lower {
			trimmed = strings.ToLower(trimmed)
		}
		if trimmed == "" {
			continue
		}
		if keep != nil && !keep(trimmed) {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}

	return result
}

// SameSet reports whether a and b contain the same elements, ignoring order
// and duplicates.
func SameSet(a, b []string) bool {
	left := sortedUnique(a)
	right := sortedUnique(b)
	return slices.Equal(left, right)
}

// Subtract returns the elements of values not present in remove, preserving order.
func Subtract(values, remove []string) []string {
	if len(remove) == 0 {
		return values
	}
	drop := make(map[string]struct{}, len(remove))
	for _, r := range remove {
		drop[r] = struct{}{}
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := drop[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}

func sortedUnique(values []string) []string {
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}
