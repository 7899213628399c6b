package graph

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// matcher decides whether a per-file transform processes a file. Extension
// matchers also allow the destination extension to be rewritten.
type matcher struct {
	ext  string
	re   *regexp.Regexp
	glob string
}

// compileAccept parses accept patterns: ".ext" matches by extension,
// "re:<expr>" is a regular expression over the slash-separated relative path,
// anything else is a doublestar glob.
func compileAccept(patterns []string) ([]matcher, error) {
	out := make([]matcher, 0, len(patterns))
	for _, p := range patterns {
		switch {
		case strings.HasPrefix(p, "re:"):
			re, err := regexp.Compile(strings.TrimPrefix(p, "re:"))
			if err != nil {
				return nil, fmt.Errorf("invalid accept pattern %q: %w", p, err)
			}
			out = append(out, matcher{re: re})
		case isExtension(p):
			out = append(out, matcher{ext: p})
		default:
			if !doublestar.ValidatePattern(p) {
				return nil, fmt.Errorf("invalid accept pattern %q", p)
			}
			out = append(out, matcher{glob: p})
		}
	}
	return out, nil
}

func isExtension(p string) bool {
	return strings.HasPrefix(p, ".") && !strings.ContainsAny(p, "/*?[{")
}

func (m matcher) match(rel string) bool {
	slash := filepath.ToSlash(rel)
	switch {
	case m.ext != "":
		return strings.HasSuffix(slash, m.ext)
	case m.re != nil:
		return m.re.MatchString(slash)
	default:
		if ok, _ := doublestar.Match(m.glob, slash); ok {
			return true
		}
		if !strings.Contains(m.glob, "/") {
			ok, _ := doublestar.Match(m.glob, path.Base(slash))
			return ok
		}
		return false
	}
}

// acceptance reports whether rel is accepted and, if an extension matcher
// accepted it, which extension matched. No matchers accept everything.
func acceptance(ms []matcher, rel string) (accepted bool, ext string) {
	if len(ms) == 0 {
		return true, ""
	}
	for _, m := range ms {
		if m.match(rel) {
			return true, m.ext
		}
	}
	return false, ""
}

// destName rewrites rel's matched extension to newExt.
func destName(rel, matchedExt, newExt string) string {
	if matchedExt == "" || newExt == "" {
		return rel
	}
	return strings.TrimSuffix(rel, matchedExt) + newExt
}
