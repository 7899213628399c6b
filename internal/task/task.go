package task

import (
	"context"

	"github.com/specialistvlad/gobblego/internal/graph"
)

// Flattener post-processes an output directory after it was copied to dest.
// Source map chain flattening plugs in here.
type Flattener interface {
	Flatten(ctx context.Context, outputDir, dest string) error
}

// FlattenFunc adapts a function to the Flattener interface.
type FlattenFunc func(ctx context.Context, outputDir, dest string) error

// Flatten calls f.
func (f FlattenFunc) Flatten(ctx context.Context, outputDir, dest string) error {
	return f(ctx, outputDir, dest)
}

// NoFlatten leaves dest untouched.
var NoFlatten Flattener = FlattenFunc(func(context.Context, string, string) error { return nil })

// Handlers receive a task's events. Nil fields are skipped.
type Handlers struct {
	Info  func(info graph.Info)
	Error func(err error)
	// Built is called by Watch after each successful build was written to dest.
	Built func(dest string)
	// Complete is called by Build once dest is fully written.
	Complete func()
}

func (h Handlers) info(info graph.Info) {
	if h.Info != nil {
		h.Info(info)
	}
}

func (h Handlers) fail(err error) {
	if h.Error != nil {
		h.Error(err)
	}
}

func flattener(f Flattener) Flattener {
	if f == nil {
		return NoFlatten
	}
	return f
}
