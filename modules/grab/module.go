// Package grab provides the "grab" plugin, which re-roots its input at a
// subdirectory.
package grab

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/specialistvlad/gobblego/internal/fsutil"
	"github.com/specialistvlad/gobblego/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Grab links the contents of the "dir" subdirectory of d.InputDir to the
// root of d.OutputDir.
func Grab(ctx context.Context, d *registry.Dir) error {
	sub := d.Options.String("dir", "")
	if sub == "" {
		return fmt.Errorf("grab needs a dir option")
	}
	src := filepath.Join(d.InputDir, filepath.FromSlash(sub))
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("cannot grab %s: %w", sub, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("cannot grab %s: not a directory", sub)
	}
	_, err = fsutil.LinkFiles(src, d.OutputDir, nil)
	return err
}

// Register registers the plugin.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Plugin{
		Name: "grab",
		Dir:  Grab,
		Keys: []string{"dir"},
	})
}
