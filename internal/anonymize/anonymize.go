// Package anonymize masks search result fields for unauthorized callers.
//
// A masked value keeps a short prefix of the original followed by "***":
//
//	"https://example.com/contact" -> "https://***"
//	"ab"                          -> "ab***"
//	""                            -> ""
package anonymize

import "math"

// Suffix is appended to every masked value.
const Suffix = "***"

const (
	prefixRatio = 0.3
	minPrefix   = 3
)

// Value masks v. The kept prefix is max(3, floor(0.3*len(v))) runes, or all
// of v when it is shorter than that.
func Value(v string) string {
	if v == "" {
		return v
	}
	runes := []rune(v)
	n := max(minPrefix, int(math.Floor(prefixRatio*float64(len(runes)))))
	if n > len(runes) {
		n = len(runes)
	}
	return string(runes[:n]) + Suffix
}

// Record returns rec unchanged when authorized, otherwise a new map with
// every value masked. rec is never modified.
func Record(rec map[string]string, authorized bool) map[string]string {
	if authorized {
		return rec
	}
	out := make(map[string]string, len(rec))
	for k, v := range rec {
		out[k] = Value(v)
	}
	return out
}

// Records applies Record to each element.
func Records(recs []map[string]string, authorized bool) []map[string]string {
	out := make([]map[string]string, len(recs))
	for i, rec := range recs {
		out[i] = Record(rec, authorized)
	}
	return out
}
