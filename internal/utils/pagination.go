// Package utils holds small helpers shared across layers with no domain
// knowledge of circles, resources, or claims.
package utils

import "strconv"

// AtoiDefault parses s as a base-10 integer and falls back to def when s is
// empty or not a number. Query parameters like page and page_size arrive as
// strings and are frequently absent, so callers pass their default through
// instead of branching on every parse.
//
// Input is not trimmed: " 42" is not a number and yields def.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
