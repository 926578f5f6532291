// internal/pesapal/token.go
package pesapal

import (
	"sort"
	"strings"
)

// tokenFields are checked in order before falling back to the longest-string heuristic.
var tokenFields = []string{"token", "access_token", "accessToken"}

// minTokenLength is the shortest string the fallback accepts as a bearer token.
// Gateway tokens are JWTs, far longer than any status or date field in the response.
const minTokenLength = 32

// ExtractToken finds the bearer token in a decoded RequestToken response.
//
// Older and newer gateway versions have used different field names, so the known
// names are tried first. If none is present, the longest top-level string without
// whitespace and at least minTokenLength characters is taken as the token.
func ExtractToken(fields map[string]any) (string, bool) {
	for _, name := range tokenFields {
		if s, ok := fields[name].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), true
		}
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var best string
	for _, k := range keys {
		s, ok := fields[k].(string)
		if !ok || len(s) < minTokenLength || strings.ContainsAny(s, " \t\r\n") {
			continue
		}
		if len(s) > len(best) {
			best = s
		}
	}
	return best, best != ""
}
