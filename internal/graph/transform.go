package graph

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/specialistvlad/gobblego/internal/builderr"
	"github.com/specialistvlad/gobblego/internal/checksum"
	"github.com/specialistvlad/gobblego/internal/fsutil"
	"github.com/specialistvlad/gobblego/internal/metrics"
	"github.com/specialistvlad/gobblego/internal/registry"
	"github.com/specialistvlad/gobblego/internal/session"
)

// DefaultCacheSize bounds the number of per-file results a transform keeps.
const DefaultCacheSize = 1 << 14

// TransformOptions configures a Transform.
type TransformOptions struct {
	// Name is used in the node id. Default: the plugin name.
	Name string
	// Accept overrides the plugin's default accept patterns. Per-file only.
	Accept []string
	// Ext overrides the plugin's default output extension. Per-file only.
	Ext string
	// Options are passed to the plugin over its defaults.
	Options registry.Options
	// CacheSize bounds the per-file result cache.
	// Default: DefaultCacheSize
	CacheSize int
}

// Transform applies a plugin to the output of its input.
type Transform struct {
	base

	plugin  *registry.Plugin
	opts    registry.Options
	perFile bool
	accept  []matcher
	ext     string
	changes *inputChanges
	cache   *lru.Cache[string, cacheEntry]

	ownMu    sync.Mutex
	produced map[string]struct{}
}

var _ Node = (*Transform)(nil)

// NewTransform returns a node applying plugin to input. It fails with
// INVALID_PLUGIN when the plugin cannot transform and with INVALID_CONFIG
// when the options do not fit the plugin.
func NewTransform(sess *session.Session, input Node, plugin *registry.Plugin, opts TransformOptions) (*Transform, error) {
	if plugin == nil || !plugin.Transforms() {
		return nil, invalidPlugin(plugin, "transform")
	}
	if err := checkKeys(plugin, opts.Options); err != nil {
		return nil, err
	}

	name := opts.Name
	if name == "" {
		name = plugin.Name
	}
	t := &Transform{
		base:    newBase(sess, KindTransform, name, input),
		plugin:  plugin,
		opts:    opts.Options.Merge(plugin.Defaults),
		perFile: plugin.File != nil,
		changes: newInputChanges(input),
	}

	if t.perFile {
		accept := opts.Accept
		if accept == nil {
			accept = plugin.Accept
		}
		ms, err := compileAccept(accept)
		if err != nil {
			return nil, builderr.Wrap(builderr.InvalidConfig, err)
		}
		t.accept = ms
		t.ext = opts.Ext
		if t.ext == "" {
			t.ext = plugin.Ext
		}

		size := opts.CacheSize
		if size <= 0 {
			size = DefaultCacheSize
		}
		cache, err := lru.New[string, cacheEntry](size)
		if err != nil {
			return nil, err
		}
		t.cache = cache
		t.compute = t.computeFiles
	} else {
		if opts.Accept != nil || opts.Ext != "" {
			return nil, builderr.New(builderr.InvalidConfig, "accept and ext only apply to per-file plugins, %q is a directory plugin", plugin.Name)
		}
		t.compute = t.computeDir
	}
	t.onInputInvalidate = func(_ int, changes []checksum.Change) {
		t.changes.add(changes)
	}
	return t, nil
}

// Plugin returns the plugin the node runs.
func (t *Transform) Plugin() *registry.Plugin { return t.plugin }

func (t *Transform) computeDir(ctx context.Context) (string, error) {
	inDir, err := t.inputs[0].Ready(ctx)
	if err != nil {
		return "", err
	}
	if err := aborted(ctx); err != nil {
		return "", err
	}

	changes, commit, err := t.changes.resolve(inDir)
	if err != nil {
		return "", t.fail(builderr.TransformationFailed, err, inDir, "", "")
	}
	n, outDir, err := t.nextGeneration()
	if err != nil {
		return "", t.fail(builderr.TransformationFailed, err, inDir, "", "")
	}

	start := time.Now()
	t.emitInfo(t.info(TransformStart, inDir))

	d := &registry.Dir{
		InputDir:  inDir,
		OutputDir: outDir,
		Options:   t.opts,
		Changes:   changes,
		Log:       t.pluginLog,
	}
	err = <-t.sess.Gate().Submit(func(done func(error)) {
		if ctx.Err() != nil {
			done(builderr.ErrAborted)
			return
		}
		if t.plugin.DirCallback != nil {
			t.plugin.DirCallback(ctx, d, done)
			return
		}
		done(t.plugin.Dir(ctx, d))
	})
	if err == nil {
		err = aborted(ctx)
	}
	t.settle(ctx, n, outDir, err)
	metrics.ObserveTransform("dir", metrics.Status(err, builderr.IsAborted(err)), time.Since(start))
	if err != nil {
		return "", t.fail(builderr.TransformationFailed, err, inDir, outDir, "")
	}

	commit()
	t.setProduced(outDir)
	t.emitInfo(t.complete(TransformComplete, start))
	return outDir, nil
}

func (t *Transform) info(code InfoCode, inDir string) Info {
	info := NewInfo(code, t.id)
	info.Message = fmt.Sprintf("%s transforming %s", t.id, inDir)
	info.Progress = true
	return info
}

func (t *Transform) complete(code InfoCode, start time.Time) Info {
	info := NewInfo(code, t.id)
	info.Duration = time.Since(start)
	info.Message = fmt.Sprintf("%s transformation finished in %s", t.id, info.Duration.Round(time.Millisecond))
	return info
}

func (t *Transform) pluginLog(message string) {
	info := NewInfo(PluginLog, t.id)
	info.Message = message
	t.emitInfo(info)
}

// setProduced records the files of a directory transform's output.
func (t *Transform) setProduced(outDir string) {
	files, err := fsutil.ListFiles(outDir)
	if err != nil {
		return
	}
	produced := make(map[string]struct{}, len(files))
	for _, file := range files {
		produced[file] = struct{}{}
	}
	t.ownMu.Lock()
	t.produced = produced
	t.ownMu.Unlock()
}

// FindOwner claims file if the last successful computation wrote it and
// otherwise asks the input, which covers passed-through files.
func (t *Transform) FindOwner(file string) Node {
	t.ownMu.Lock()
	_, ok := t.produced[file]
	t.ownMu.Unlock()
	if ok {
		return t
	}
	return t.inputs[0].FindOwner(file)
}

func invalidPlugin(p *registry.Plugin, role string) error {
	name := "<nil>"
	if p != nil {
		name = p.Name
	}
	be := builderr.New(builderr.InvalidPlugin, "plugin %q cannot be used to %s", name, role)
	be.Path = name
	return be
}

func checkKeys(p *registry.Plugin, opts registry.Options) error {
	for key := range opts {
		if !p.Accepts(key) {
			return builderr.New(builderr.InvalidConfig, "plugin %q does not understand option %q", p.Name, key)
		}
	}
	return nil
}
