package models

import "strings"

// SanitizeKeySegment replaces the ':' delimiter in a key segment. IPv6
// addresses would otherwise split into several segments.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}
