package util

import "strings"

// ContainsFold reports whether substr is within s, ignoring case
func ContainsFold(s string, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
