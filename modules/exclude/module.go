// Package exclude provides the "exclude" plugin, which drops the files
// matching a set of glob patterns.
package exclude

import (
	"context"
	"fmt"

	"github.com/specialistvlad/gobblego/internal/fsutil"
	"github.com/specialistvlad/gobblego/internal/registry"
	"github.com/specialistvlad/gobblego/modules/internal/glob"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Exclude links every file of d.InputDir not matching the "patterns" option
// into d.OutputDir.
func Exclude(ctx context.Context, d *registry.Dir) error {
	set, err := glob.Compile(d.Options.Strings("patterns"))
	if err != nil {
		return err
	}
	n, err := fsutil.LinkFiles(d.InputDir, d.OutputDir, func(rel string) bool {
		return !set.Match(rel)
	})
	if err != nil {
		return err
	}
	d.Log(fmt.Sprintf("kept %d files", n))
	return nil
}

// Register registers the plugin.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Plugin{
		Name: "exclude",
		Dir:  Exclude,
		Keys: []string{"patterns"},
	})
}
