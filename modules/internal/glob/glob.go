// Package glob matches slash-separated relative paths against doublestar
// patterns for the built-in plugins.
package glob

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Set is a compiled list of patterns.
type Set []string

// Compile validates patterns.
func Compile(patterns []string) (Set, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid pattern %q", p)
		}
	}
	return Set(patterns), nil
}

// Match reports whether rel matches any pattern. Patterns without a slash
// also match against the base name, so "*.js" finds scripts at any depth.
func (s Set) Match(rel string) bool {
	for _, p := range s {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if !strings.Contains(p, "/") {
			if ok, _ := doublestar.Match(p, path.Base(rel)); ok {
				return true
			}
		}
	}
	return false
}
