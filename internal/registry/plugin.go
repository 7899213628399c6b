package registry

import (
	"context"

	"github.com/specialistvlad/gobblego/internal/checksum"
	"github.com/specialistvlad/gobblego/internal/sourcemap"
)

// Options is the plugin-specific configuration of one node.
type Options map[string]any

// Merge returns a copy of defaults overlaid with o.
func (o Options) Merge(defaults Options) Options {
	out := make(Options, len(defaults)+len(o))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range o {
		out[k] = v
	}
	return out
}

// String returns the string option key, or def when it is absent or not a
// string.
func (o Options) String(key, def string) string {
	if v, ok := o[key].(string); ok {
		return v
	}
	return def
}

// Int returns the numeric option key as an int, or def.
func (o Options) Int(key string, def int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// Strings returns the option key as a string slice. A single string is
// promoted to a one-element slice.
func (o Options) Strings(key string) []string {
	switch v := o[key].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Logger lets a plugin report progress. Messages surface as info events of
// the node running the plugin.
type Logger func(message string)

// File describes the file a per-file plugin is processing.
type File struct {
	// Name is the path relative to the input directory.
	Name string
	// Src is the absolute input path.
	Src string
	// Dest is the absolute path the result will be linked to.
	Dest string
	Log  Logger
}

// Result is what a per-file plugin produces. Map is optional; a plugin may
// also embed an inline base64 source map in Code.
type Result struct {
	Code string
	Map  *sourcemap.Map
}

// Dir describes a whole-directory plugin invocation.
type Dir struct {
	InputDir string
	// OutputDir is empty for observers.
	OutputDir string
	Options   Options
	// Changes lists what changed in InputDir since the previous invocation.
	Changes []checksum.Change
	Log     Logger
}

// FileFunc transforms the text of one file.
type FileFunc func(ctx context.Context, code string, opts Options, file *File) (Result, error)

// DirFunc populates d.OutputDir from d.InputDir, blocking until done.
type DirFunc func(ctx context.Context, d *Dir) error

// DirCallbackFunc populates d.OutputDir and calls done exactly once.
type DirCallbackFunc func(ctx context.Context, d *Dir, done func(error))

// ObserveFunc inspects d.InputDir without producing output.
type ObserveFunc func(ctx context.Context, d *Dir) error

// ObserveCallbackFunc inspects d.InputDir and calls done exactly once.
type ObserveCallbackFunc func(ctx context.Context, d *Dir, done func(error))

// Plugin is a named transformation. A plugin used by a transform node needs
// one of File, Dir or DirCallback; one used by an observe node needs Observe
// or ObserveCallback.
type Plugin struct {
	Name string

	File            FileFunc
	Dir             DirFunc
	DirCallback     DirCallbackFunc
	Observe         ObserveFunc
	ObserveCallback ObserveCallbackFunc

	// Defaults are merged under the options given in the build definition.
	Defaults Options
	// Accept and Ext are the defaults for per-file plugins' reserved options.
	Accept []string
	Ext    string
	// Keys, when set, lists every option the plugin understands; other keys
	// are rejected when a node is built.
	Keys []string
}

// Transforms reports whether p can back a transform node.
func (p *Plugin) Transforms() bool {
	return p.File != nil || p.Dir != nil || p.DirCallback != nil
}

// Observes reports whether p can back an observe node.
func (p *Plugin) Observes() bool {
	return p.Observe != nil || p.ObserveCallback != nil
}

// Accepts reports whether key is an option p understands.
func (p *Plugin) Accepts(key string) bool {
	if len(p.Keys) == 0 {
		return true
	}
	for _, k := range p.Keys {
		if k == key {
			return true
		}
	}
	return false
}
