// Package utils provides tiny generic helpers shared across layers. Nothing
// in here knows about the relay domain.
package utils

import "strconv"

// AtoiDefault parses s as an int, returning def when s is empty or not a
// number. Handy for query parameters where absence and garbage both mean
// "use the default".
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampInt bounds n to [lo, hi].
func ClampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
