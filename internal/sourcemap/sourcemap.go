// Package sourcemap rewrites the source maps produced by per-file plugins so
// that they point from the node's output back to the node's input.
package sourcemap

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Map is a version 3 source map.
type Map struct {
	Version        int      `json:"version"`
	File           string   `json:"file"`
	SourceRoot     string   `json:"sourceRoot,omitempty"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent,omitempty"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

// Parse decodes a JSON source map.
func Parse(data []byte) (*Map, error) {
	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid source map: %w", err)
	}
	if m.Version == 0 {
		m.Version = 3
	}
	return &m, nil
}

// Marshal encodes m as JSON.
func (m *Map) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

var commentRe = regexp.MustCompile(`\n*(?://[@#]\s*sourceMappingURL=([^'"\s]+)|/\*#?\s*sourceMappingURL=([^'"\s]+)\s*\*/)\s*$`)

var errNotBase64 = errors.New("sourceMappingURL is not base64-encoded")

// Comment returns the trailing sourceMappingURL comment for a file with the
// given extension.
func Comment(url, ext string) string {
	if ext == ".css" {
		return "\n/*# sourceMappingURL=" + url + " */\n"
	}
	return "\n//# sourceMappingURL=" + url + "\n"
}

// Strip removes a trailing sourceMappingURL comment from code.
func Strip(code string) string {
	return commentRe.ReplaceAllString(code, "")
}

// url returns the target of code's trailing sourceMappingURL comment.
func url(code string) string {
	m := commentRe.FindStringSubmatch(code)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}

// ExtractInline decodes an inline base64 data-URI source map from code. It
// returns nil when code carries no inline map.
func ExtractInline(code string) (*Map, error) {
	u := url(code)
	if !strings.HasPrefix(u, "data:") {
		return nil, nil
	}
	idx := strings.Index(u, "base64,")
	if idx < 0 {
		return nil, errNotBase64
	}
	raw, err := base64.StdEncoding.DecodeString(u[idx+len("base64,"):])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errNotBase64, err)
	}
	return Parse(raw)
}

// Process prepares a plugin result for writing. If m is nil an inline map in
// code is used instead. When there is a map, code gets a comment pointing at
// mapName and the map is rewritten to describe dest generated from src, with
// original as the embedded source content. Without a map code is returned
// unchanged.
func Process(code string, m *Map, src, dest, original, mapName string) (string, *Map, error) {
	if m == nil {
		inline, err := ExtractInline(code)
		if err != nil {
			return "", nil, err
		}
		if inline == nil {
			return code, nil, nil
		}
		m = inline
	}

	out := *m
	out.File = filepath.Base(dest)
	out.Sources = []string{src}
	out.SourcesContent = []string{original}

	return Strip(code) + Comment(mapName, filepath.Ext(dest)), &out, nil
}
