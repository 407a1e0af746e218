// Package urlpath composes and normalizes route paths.
package urlpath

import (
	"regexp"
	"strings"
)

var (
	repeatedSlashes = regexp.MustCompile(`/{2,}`)
	namedSegment    = regexp.MustCompile(`/:([A-Za-z_][A-Za-z0-9_]*)`)
)

// Join concatenates path parts left to right and normalizes the result:
// backslashes become slashes, repeated slashes collapse, the result has
// exactly one leading slash and no trailing slash unless it is the root.
//
//	Join("", "/admin/", "users") // "/admin/users"
//	Join("", "")                 // "/"
func Join(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		kept = append(kept, strings.ReplaceAll(p, `\`, "/"))
	}

	joined := repeatedSlashes.ReplaceAllString(strings.Join(kept, "/"), "/")
	joined = strings.TrimSuffix(joined, "/")
	if !strings.HasPrefix(joined, "/") {
		joined = "/" + joined
	}
	return joined
}

// ToPattern rewrites ":name" segments into chi's "{name}" form. Paths already
// using braces pass through unchanged.
func ToPattern(path string) string {
	return namedSegment.ReplaceAllString(path, "/{$1}")
}
