// Package uppercase provides the "uppercase" plugin, a per-file transform
// mostly useful for trying out pipelines.
package uppercase

import (
	"context"
	"strings"

	"github.com/specialistvlad/gobblego/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Upper returns code in upper case.
func Upper(ctx context.Context, code string, opts registry.Options, file *registry.File) (registry.Result, error) {
	return registry.Result{Code: strings.ToUpper(code)}, nil
}

// Register registers the plugin.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Plugin{
		Name: "uppercase",
		File: Upper,
	})
}
