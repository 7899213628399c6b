// Package print provides the "print" observer, which reports what its input
// contains and what changed since the last build.
package print

import (
	"context"
	"fmt"

	"github.com/specialistvlad/gobblego/internal/ctxlog"
	"github.com/specialistvlad/gobblego/internal/fsutil"
	"github.com/specialistvlad/gobblego/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Print logs the file count of d.InputDir and, up to the "limit" option,
// each change.
func Print(ctx context.Context, d *registry.Dir) error {
	files, err := fsutil.ListFiles(d.InputDir)
	if err != nil {
		return err
	}
	label := d.Options.String("label", "print")
	ctxlog.FromContext(ctx).Debug("Printing directory.", "label", label, "dir", d.InputDir)

	d.Log(fmt.Sprintf("%s: %d files, %d changed", label, len(files), len(d.Changes)))
	limit := d.Options.Int("limit", 20)
	for i, c := range d.Changes {
		if i == limit {
			d.Log(fmt.Sprintf("%s: ... %d more", label, len(d.Changes)-limit))
			break
		}
		d.Log(fmt.Sprintf("%s:   %s", label, c))
	}
	return nil
}

// Register registers the plugin.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Plugin{
		Name:    "print",
		Observe: Print,
		Keys:    []string{"label", "limit"},
	})
}
