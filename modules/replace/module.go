// Package replace provides the "replace" plugin, which fills {{key}}
// placeholders with the values of the node's options.
package replace

import (
	"context"
	"fmt"
	"regexp"

	"github.com/specialistvlad/gobblego/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

var placeholderRe = regexp.MustCompile(`\{\{\s*([\w.-]+)\s*\}\}`)

// Replace substitutes every {{key}} in code whose key is an option.
// Placeholders without a matching option are left alone.
func Replace(ctx context.Context, code string, opts registry.Options, file *registry.File) (registry.Result, error) {
	out := placeholderRe.ReplaceAllStringFunc(code, func(m string) string {
		key := placeholderRe.FindStringSubmatch(m)[1]
		v, ok := opts[key]
		if !ok {
			return m
		}
		return format(v)
	})
	return registry.Result{Code: out}, nil
}

func format(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
	}
	return fmt.Sprint(v)
}

// Register registers the plugin.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Plugin{
		Name: "replace",
		File: Replace,
	})
}
