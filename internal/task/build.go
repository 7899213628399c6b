package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/specialistvlad/gobblego/internal/builderr"
	"github.com/specialistvlad/gobblego/internal/ctxlog"
	"github.com/specialistvlad/gobblego/internal/fsutil"
	"github.com/specialistvlad/gobblego/internal/graph"
	"github.com/specialistvlad/gobblego/internal/metrics"
	"github.com/specialistvlad/gobblego/internal/session"
)

// BuildOptions configures a one-shot build.
type BuildOptions struct {
	// Dest receives the output. Required.
	Dest string
	// Force allows Dest to be emptied when it already has content.
	Force     bool
	Flattener Flattener
}

// Build resolves node once and copies its output to opts.Dest. The session's
// scratch directory is wiped before and after.
func Build(ctx context.Context, sess *session.Session, node graph.Node, opts BuildOptions, h Handlers) (err error) {
	logger := ctxlog.FromContext(ctx)
	start := time.Now()
	defer func() {
		metrics.ObserveBuild("build", metrics.Status(err, builderr.IsAborted(err)), time.Since(start))
		if err != nil {
			h.fail(err)
		}
	}()

	if opts.Dest == "" {
		return builderr.New(builderr.MissingDestDir, "you must specify a destination directory for the build task")
	}
	if err := session.Clean(sess.Root()); err != nil {
		return err
	}
	if err := prepareDest(opts.Dest, opts.Force); err != nil {
		return err
	}

	if err := sess.Begin(ctx); err != nil {
		return err
	}
	defer func() {
		if endErr := sess.End(); endErr != nil {
			logger.Warn("Failed to clean up session.", "root", sess.Root(), "error", endErr)
		}
	}()

	var seenMu sync.Mutex
	seen := make(map[uint64]struct{})
	unsub := node.Subscribe(graph.Listener{
		Info: func(info graph.Info) {
			seenMu.Lock()
			_, dup := seen[info.Seq]
			seen[info.Seq] = struct{}{}
			seenMu.Unlock()
			if !dup {
				h.info(info)
			}
		},
	})
	defer unsub()

	h.info(graph.NewInfo(graph.BuildStart, node.ID()))
	logger.Info("🚀 Build started.", "node", node.ID(), "dest", opts.Dest)

	if err := node.Start(ctx); err != nil {
		return err
	}
	defer node.Stop()

	dir, err := node.Ready(ctx)
	if err != nil {
		return err
	}
	if err := fsutil.CopyDir(dir, opts.Dest); err != nil {
		return fmt.Errorf("failed to copy output to %s: %w", opts.Dest, err)
	}
	if err := flattener(opts.Flattener).Flatten(ctx, dir, opts.Dest); err != nil {
		return err
	}

	done := graph.NewInfo(graph.BuildComplete, node.ID())
	done.Duration = time.Since(start)
	h.info(done)
	logger.Info("🏁 Build finished.", "dest", opts.Dest, "duration", done.Duration)
	if h.Complete != nil {
		h.Complete()
	}
	return nil
}

// prepareDest refuses a non-empty dest unless force is set, in which case it
// is emptied.
func prepareDest(dest string, force bool) error {
	empty, err := fsutil.IsEmptyDir(dest)
	if err != nil {
		return err
	}
	if empty {
		return nil
	}
	if !force {
		be := builderr.New(builderr.DirNotEmpty, "destination folder (%s) is not empty", dest)
		be.Path = dest
		return be
	}
	return fsutil.EmptyDir(dest)
}
