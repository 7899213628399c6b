// Package moveto provides the "moveto" plugin, which nests its input under
// a subdirectory.
package moveto

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/specialistvlad/gobblego/internal/fsutil"
	"github.com/specialistvlad/gobblego/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// MoveTo links the contents of d.InputDir below the "dir" subdirectory of
// d.OutputDir.
func MoveTo(ctx context.Context, d *registry.Dir) error {
	sub := d.Options.String("dir", "")
	if sub == "" {
		return fmt.Errorf("moveto needs a dir option")
	}
	_, err := fsutil.LinkFiles(d.InputDir, filepath.Join(d.OutputDir, filepath.FromSlash(sub)), nil)
	return err
}

// Register registers the plugin.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Plugin{
		Name: "moveto",
		Dir:  MoveTo,
		Keys: []string{"dir"},
	})
}
