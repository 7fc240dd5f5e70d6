package search

import (
	"strconv"
	"strings"
)

// MaxLimit caps the number of results one search may ask for. It is the
// largest top_k the supported vector stores accept.
const MaxLimit = 10000

// ResolveLimit parses a user-supplied result limit. Missing, non-integer,
// zero or negative values yield def; values above MaxLimit yield MaxLimit.
func ResolveLimit(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, MaxLimit)
}
