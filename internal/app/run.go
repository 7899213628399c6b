package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/specialistvlad/gobblego/internal/builderr"
	"github.com/specialistvlad/gobblego/internal/checksum"
	"github.com/specialistvlad/gobblego/internal/ctxlog"
	"github.com/specialistvlad/gobblego/internal/fswatch"
	"github.com/specialistvlad/gobblego/internal/graph"
	"github.com/specialistvlad/gobblego/internal/notify"
	"github.com/specialistvlad/gobblego/internal/session"
	"github.com/specialistvlad/gobblego/internal/task"
)

// Run executes the configured task. A watch task returns once ctx is done.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.ctx = ctx
	a.logger.Debug("App.Run method started.", "task", a.config.Task, "env", a.config.Env)

	a.healthCheckServer()
	defer func() {
		_ = a.closeHealthCheckServer()
	}()

	var err error
	switch a.config.Task {
	case TaskGraph:
		err = a.graph(ctx)
	case TaskBuild:
		err = a.build(ctx)
	case TaskWatch:
		err = a.watch(ctx)
	default:
		err = fmt.Errorf("unknown task %q", a.config.Task)
	}

	a.logger.Debug("App.Run method finished.", "error", err)
	return err
}

func (a *App) graph(ctx context.Context) error {
	sess := session.New(a.config.TmpDir)
	p, err := a.assemble(ctx, sess)
	if err != nil {
		return err
	}
	return p.Describe(a.outW)
}

func (a *App) build(ctx context.Context) error {
	h, closeHandlers := a.handlers(ctx)
	defer closeHandlers()

	sess := session.New(a.config.TmpDir)
	p, err := a.assemble(ctx, sess)
	if err != nil {
		return err
	}
	return task.Build(ctx, sess, p.Output, task.BuildOptions{
		Dest:  a.config.Dest,
		Force: a.config.Force,
	}, h)
}

func (a *App) watch(ctx context.Context) error {
	h, closeHandlers := a.handlers(ctx)
	defer closeHandlers()

	sess := session.New(a.config.TmpDir)
	p, err := a.assemble(ctx, sess)
	if err != nil {
		return err
	}

	w, err := task.Watch(ctx, sess, p.Output, task.WatchOptions{Dest: a.config.Dest}, h)
	if err != nil {
		return err
	}
	defer func() {
		if err := w.Close(); err != nil {
			a.logger.Warn("Failed to close watch session.", "error", err)
		}
	}()

	defWatcher, err := fswatch.New(a.config.DefinitionPath, a.reloader(ctx, sess, w, h), nil)
	if err != nil {
		return fmt.Errorf("watching build definition: %w", err)
	}
	if err := defWatcher.Start(ctx); err != nil {
		return fmt.Errorf("watching build definition: %w", err)
	}
	defer defWatcher.Stop()

	a.logger.Info("👀 Watching for changes.", "definition", a.config.DefinitionPath, "dest", a.config.Dest)
	<-ctx.Done()
	a.logger.Info("Watch stopped.")
	return nil
}

// reloader returns the definition watcher's handler: it assembles the new
// definition and swaps it into the running watch. On failure the previous
// graph is left untouched.
func (a *App) reloader(ctx context.Context, sess *session.Session, w *task.Watcher, h task.Handlers) fswatch.Handler {
	var mu sync.Mutex
	return func(changes []checksum.Change) {
		if !a.definitionChanged(changes) {
			return
		}
		mu.Lock()
		defer mu.Unlock()

		a.logger.Info("🔄 Build definition changed, reloading.", "changes", len(changes))
		p, err := a.assemble(ctx, sess)
		if err != nil {
			h.Error(err)
			return
		}
		if err := w.Pause(); err != nil {
			h.Error(err)
			return
		}
		if err := w.Resume(p.Output); err != nil {
			h.Error(err)
		}
	}
}

// definitionChanged filters out changes to files that are not definitions,
// including anything under the scratch or destination directory.
func (a *App) definitionChanged(changes []checksum.Change) bool {
	root := a.config.DefinitionPath
	if a.definitionFile(root) {
		root = filepath.Dir(root)
	}
	for _, c := range changes {
		abs := filepath.Join(root, c.File)
		if within(abs, a.config.TmpDir) || within(abs, a.config.Dest) {
			continue
		}
		if a.definitionFile(c.File) {
			return true
		}
	}
	return false
}

func within(path, dir string) bool {
	if dir == "" {
		return false
	}
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// handlers logs task events and, when a notify URL is configured, forwards
// them to the dev server as well. The returned func releases the connection.
func (a *App) handlers(ctx context.Context) (task.Handlers, func()) {
	h := task.Handlers{
		Info:  a.logInfo,
		Error: a.logError,
		Built: func(dest string) {
			a.logger.Debug("Output written.", "dest", dest)
		},
		Complete: func() {
			a.logger.Debug("Build task complete.", "dest", a.config.Dest)
		},
	}
	if a.config.NotifyURL == "" {
		return h, func() {}
	}

	reporter, err := notify.Dial(ctx, notify.Options{URL: a.config.NotifyURL})
	if err != nil {
		a.logger.Warn("Dev server unreachable, build events will only be logged.", "url", a.config.NotifyURL, "error", err)
		return h, func() {}
	}
	return reporter.Wrap(h), reporter.Close
}

func (a *App) logInfo(info graph.Info) {
	switch info.Code {
	case graph.BuildInvalidated:
		files := make([]string, 0, len(info.Changes))
		for _, c := range info.Changes {
			files = append(files, c.String())
		}
		a.logger.Info("Changes detected.", "node", info.NodeID, "changes", files)
	case graph.PluginLog:
		a.logger.Info(info.Message, "node", info.NodeID)
	default:
		args := []any{"code", info.Code}
		if info.NodeID != "" {
			args = append(args, "node", info.NodeID)
		}
		if info.Duration > 0 {
			args = append(args, "duration", info.Duration)
		}
		a.logger.Debug("Build event.", args...)
	}
}

func (a *App) logError(err error) {
	if err == nil || builderr.IsAborted(err) {
		return
	}
	args := []any{"error", err}
	var be *builderr.Error
	if errors.As(err, &be) {
		args = append(args, "code", be.Code)
		if be.NodeID != "" {
			args = append(args, "node", be.NodeID)
		}
		if be.File != "" {
			args = append(args, "file", be.File)
		}
		if be.Creator != "" {
			args = append(args, "creator", be.Creator)
		}
	}
	if loc := builderr.ExtractLocation(err); loc.Line > 0 {
		args = append(args, "line", loc.Line, "column", loc.Column)
	}
	a.logger.Error("❌ Build failed.", args...)
}
