// Package include provides the "include" plugin, which keeps only the files
// matching a set of glob patterns.
package include

import (
	"context"
	"fmt"

	"github.com/specialistvlad/gobblego/internal/fsutil"
	"github.com/specialistvlad/gobblego/internal/registry"
	"github.com/specialistvlad/gobblego/modules/internal/glob"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Include links the files of d.InputDir matching the "patterns" option into
// d.OutputDir.
func Include(ctx context.Context, d *registry.Dir) error {
	patterns := d.Options.Strings("patterns")
	if len(patterns) == 0 {
		return fmt.Errorf("include needs at least one pattern")
	}
	set, err := glob.Compile(patterns)
	if err != nil {
		return err
	}
	n, err := fsutil.LinkFiles(d.InputDir, d.OutputDir, set.Match)
	if err != nil {
		return err
	}
	d.Log(fmt.Sprintf("included %d files", n))
	return nil
}

// Register registers the plugin.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Plugin{
		Name: "include",
		Dir:  Include,
		Keys: []string{"patterns"},
	})
}
