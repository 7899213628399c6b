package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/gobblego/internal/builderr"
	"github.com/specialistvlad/gobblego/internal/checksum"
	"github.com/specialistvlad/gobblego/internal/metrics"
	"github.com/specialistvlad/gobblego/internal/registry"
	"github.com/specialistvlad/gobblego/internal/session"
)

// ObserverOptions configures an Observer.
type ObserverOptions struct {
	// Name is used in the node id. Default: the plugin name.
	Name    string
	Options registry.Options
}

// Observer hands its input's output to a plugin for inspection. It resolves
// to the input directory unchanged.
type Observer struct {
	base

	plugin  *registry.Plugin
	opts    registry.Options
	changes *inputChanges
}

var _ Node = (*Observer)(nil)

// NewObserver returns a node running plugin over input. It fails with
// INVALID_PLUGIN when the plugin cannot observe.
func NewObserver(sess *session.Session, input Node, plugin *registry.Plugin, opts ObserverOptions) (*Observer, error) {
	if plugin == nil || !plugin.Observes() {
		return nil, invalidPlugin(plugin, "observe")
	}
	if err := checkKeys(plugin, opts.Options); err != nil {
		return nil, err
	}
	name := opts.Name
	if name == "" {
		name = plugin.Name
	}
	o := &Observer{
		base:    newBase(sess, KindObserver, name, input),
		plugin:  plugin,
		opts:    opts.Options.Merge(plugin.Defaults),
		changes: newInputChanges(input),
	}
	o.compute = o.observe
	o.onInputInvalidate = func(_ int, changes []checksum.Change) {
		o.changes.add(changes)
	}
	return o, nil
}

func (o *Observer) observe(ctx context.Context) (string, error) {
	inDir, err := o.inputs[0].Ready(ctx)
	if err != nil {
		return "", err
	}
	if err := aborted(ctx); err != nil {
		return "", err
	}
	changes, commit, err := o.changes.resolve(inDir)
	if err != nil {
		return "", o.fail(builderr.ObservationFailed, err, inDir, "", "")
	}

	start := time.Now()
	info := NewInfo(TransformStart, o.id)
	info.Message = fmt.Sprintf("%s observing %s", o.id, inDir)
	info.Progress = true
	o.emitInfo(info)

	d := &registry.Dir{
		InputDir: inDir,
		Options:  o.opts,
		Changes:  changes,
		Log: func(message string) {
			info := NewInfo(PluginLog, o.id)
			info.Message = message
			o.emitInfo(info)
		},
	}
	err = <-o.sess.Gate().Submit(func(done func(error)) {
		if ctx.Err() != nil {
			done(builderr.ErrAborted)
			return
		}
		if o.plugin.ObserveCallback != nil {
			o.plugin.ObserveCallback(ctx, d, done)
			return
		}
		done(o.plugin.Observe(ctx, d))
	})
	if err == nil {
		err = aborted(ctx)
	}
	metrics.ObserveTransform("observe", metrics.Status(err, builderr.IsAborted(err)), time.Since(start))
	if err != nil {
		return "", o.fail(builderr.ObservationFailed, err, inDir, "", "")
	}

	commit()
	done := NewInfo(TransformComplete, o.id)
	done.Duration = time.Since(start)
	done.Message = fmt.Sprintf("%s observation finished in %s", o.id, done.Duration.Round(time.Millisecond))
	o.emitInfo(done)
	return inDir, nil
}

// FindOwner delegates to the input; observers create no files.
func (o *Observer) FindOwner(file string) Node {
	return o.inputs[0].FindOwner(file)
}
