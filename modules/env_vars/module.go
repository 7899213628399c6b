// Package env_vars provides the "env" plugin, which fills ${NAME}
// placeholders from the process environment.
package env_vars

import (
	"context"
	"os"
	"regexp"
	"strings"

	"github.com/specialistvlad/gobblego/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

var placeholderRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Expand replaces ${NAME} with the environment variable NAME. Unset
// variables fall back to the "defaults" option, then stay untouched, unless
// "strict" is set, in which case they are an error.
func Expand(ctx context.Context, code string, opts registry.Options, file *registry.File) (registry.Result, error) {
	defaults, _ := opts["defaults"].(map[string]any)
	strict, _ := opts["strict"].(bool)

	var b strings.Builder
	var missing *MissingError
	last := 0
	for _, loc := range placeholderRe.FindAllStringSubmatchIndex(code, -1) {
		b.WriteString(code[last:loc[0]])
		last = loc[1]

		name := code[loc[2]:loc[3]]
		if v, ok := os.LookupEnv(name); ok {
			b.WriteString(v)
			continue
		}
		if v, ok := defaults[name].(string); ok {
			b.WriteString(v)
			continue
		}
		if missing == nil {
			missing = &MissingError{
				File:   file.Name,
				Line:   strings.Count(code[:loc[0]], "\n") + 1,
				Column: loc[0] - strings.LastIndex(code[:loc[0]], "\n"),
			}
		}
		missing.Names = append(missing.Names, name)
		b.WriteString(code[loc[0]:loc[1]])
	}
	b.WriteString(code[last:])

	if strict && missing != nil {
		return registry.Result{}, missing
	}
	return registry.Result{Code: b.String()}, nil
}

// Register registers the plugin.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Plugin{
		Name: "env",
		File: Expand,
		Keys: []string{"defaults", "strict"},
	})
}
