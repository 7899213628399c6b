package task

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/specialistvlad/gobblego/internal/builderr"
	"github.com/specialistvlad/gobblego/internal/ctxlog"
	"github.com/specialistvlad/gobblego/internal/fsutil"
	"github.com/specialistvlad/gobblego/internal/graph"
	"github.com/specialistvlad/gobblego/internal/session"
	"github.com/specialistvlad/gobblego/internal/watch"
)

// WatchOptions configures a continuous build.
type WatchOptions struct {
	// Dest is replaced with the output after every build. Required.
	Dest      string
	Flattener Flattener
}

// Watcher keeps Dest in sync with a graph until it is closed.
type Watcher struct {
	sess     *session.Session
	opts     WatchOptions
	handlers Handlers

	mu     sync.Mutex
	ctx    context.Context
	node   graph.Node
	ctrl   *watch.Controller
	closed bool

	// writeMu serializes writes to Dest.
	writeMu sync.Mutex
}

// Watch starts watching node and writing each build to opts.Dest. The
// session's scratch directory is wiped first.
func Watch(ctx context.Context, sess *session.Session, node graph.Node, opts WatchOptions, h Handlers) (*Watcher, error) {
	if opts.Dest == "" {
		return nil, builderr.New(builderr.MissingDestDir, "you must specify a destination directory for the watch task")
	}
	if err := session.Clean(sess.Root()); err != nil {
		return nil, err
	}
	if err := sess.Begin(ctx); err != nil {
		return nil, err
	}

	w := &Watcher{sess: sess, opts: opts, handlers: h, ctx: ctx, node: node}
	if err := w.Resume(nil); err != nil {
		_ = sess.End()
		return nil, err
	}
	return w, nil
}

// Resume restarts watching after Pause. A non-nil node replaces the graph,
// which is how a reloaded build definition takes effect.
func (w *Watcher) Resume(node graph.Node) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("watch task is closed")
	}
	if w.ctrl != nil {
		return nil
	}
	if node != nil {
		w.node = node
	}
	current := w.node

	ctrl := watch.New(current, watch.Handlers{
		BuildStart: func() {
			ctxlog.FromContext(w.ctx).Debug("Rebuild started.", "node", current.ID())
		},
		BuildEnd: w.built,
		Info:     w.handlers.info,
		Error:    w.handlers.fail,
	})
	if err := ctrl.Start(w.sess.Context()); err != nil {
		return err
	}
	w.ctrl = ctrl
	return nil
}

// Pause stops watching and clears the scratch space. The graph's nodes must
// not be reused afterwards; pass a freshly assembled graph to Resume.
func (w *Watcher) Pause() error {
	w.mu.Lock()
	ctrl := w.ctrl
	w.ctrl = nil
	w.mu.Unlock()

	if ctrl != nil {
		ctrl.Close()
	}
	if err := emptyScratch(w.sess.Root()); err != nil {
		return err
	}
	ctxlog.FromContext(w.ctx).Info("⏸️ Watching paused.")
	return nil
}

// Close stops watching and ends the session.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	ctrl := w.ctrl
	w.ctrl = nil
	w.mu.Unlock()

	if ctrl != nil {
		ctrl.Close()
	}
	return w.sess.End()
}

// built copies a finished build to Dest.
func (w *Watcher) built(dir string, took time.Duration) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	ctx := w.sess.Context()
	dest := w.opts.Dest
	if err := os.RemoveAll(dest); err != nil {
		w.handlers.fail(fmt.Errorf("failed to clear %s: %w", dest, err))
		return
	}
	if err := fsutil.CopyDir(dir, dest); err != nil {
		w.handlers.fail(fmt.Errorf("failed to copy output to %s: %w", dest, err))
		return
	}

	start := time.Now()
	progress := graph.NewInfo(graph.SourcemapProcessStart, "")
	progress.Progress = true
	w.handlers.info(progress)
	if err := flattener(w.opts.Flattener).Flatten(ctx, dir, dest); err != nil {
		w.handlers.fail(err)
		return
	}
	flattened := graph.NewInfo(graph.SourcemapProcessComplete, "")
	flattened.Duration = time.Since(start)
	w.handlers.info(flattened)

	complete := graph.NewInfo(graph.BuildComplete, "")
	complete.Duration = took + flattened.Duration
	complete.Watch = true
	w.handlers.info(complete)

	ctxlog.FromContext(w.ctx).Info("🏁 Build written.", "dest", dest, "duration", complete.Duration)
	if w.handlers.Built != nil {
		w.handlers.Built(dest)
	}
}

// emptyScratch removes everything in the session root but keeps the root.
func emptyScratch(root string) error {
	if err := fsutil.EmptyDir(root); err != nil {
		return fmt.Errorf("failed to clean %s: %w", root, err)
	}
	return nil
}
