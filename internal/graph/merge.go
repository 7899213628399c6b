package graph

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/specialistvlad/gobblego/internal/builderr"
	"github.com/specialistvlad/gobblego/internal/fsutil"
	"github.com/specialistvlad/gobblego/internal/metrics"
	"github.com/specialistvlad/gobblego/internal/session"
)

// Merge overlays the outputs of its inputs. On a path collision the later
// input wins.
type Merge struct {
	base

	dirsMu   sync.Mutex
	lastDirs []string
}

var _ Node = (*Merge)(nil)

// NewMerge returns a node merging inputs in order.
func NewMerge(sess *session.Session, name string, inputs ...Node) (*Merge, error) {
	if len(inputs) == 0 {
		return nil, builderr.New(builderr.InvalidConfig, "merge %q has no inputs", name)
	}
	if name == "" {
		name = "merge"
	}
	m := &Merge{
		base:     newBase(sess, KindMerge, name, inputs...),
		lastDirs: make([]string, len(inputs)),
	}
	m.compute = m.merge
	return m, nil
}

func (m *Merge) merge(ctx context.Context) (string, error) {
	dirs := make([]string, len(m.inputs))

	// Inputs resolve in parallel; their plugin work is still serialized by
	// the session gate.
	g, gctx := errgroup.WithContext(ctx)
	for i, in := range m.inputs {
		i, in := i, in
		g.Go(func() error {
			dir, err := in.Ready(gctx)
			if err != nil {
				return err
			}
			dirs[i] = dir
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	if err := aborted(ctx); err != nil {
		return "", err
	}

	n, outDir, err := m.nextGeneration()
	if err != nil {
		return "", m.fail(builderr.TransformationFailed, err, "", "", "")
	}

	start := time.Now()
	info := NewInfo(MergeStart, m.id)
	info.Message = fmt.Sprintf("%s merging %d inputs", m.id, len(dirs))
	info.Progress = true
	m.emitInfo(info)

	err = m.overlay(ctx, dirs, outDir)
	m.settle(ctx, n, outDir, err)
	metrics.ObserveTransform("merge", metrics.Status(err, builderr.IsAborted(err)), time.Since(start))
	if err != nil {
		if builderr.IsAborted(err) {
			return "", err
		}
		return "", m.fail(builderr.TransformationFailed, err, "", outDir, "")
	}

	m.dirsMu.Lock()
	copy(m.lastDirs, dirs)
	m.dirsMu.Unlock()

	complete := NewInfo(MergeComplete, m.id)
	complete.Duration = time.Since(start)
	complete.Message = fmt.Sprintf("%s merge finished in %s", m.id, complete.Duration.Round(time.Millisecond))
	m.emitInfo(complete)
	return outDir, nil
}

// overlay merges dirs into outDir one after another.
func (m *Merge) overlay(ctx context.Context, dirs []string, outDir string) error {
	for _, dir := range dirs {
		if err := aborted(ctx); err != nil {
			return err
		}
		if err := fsutil.MergeDirectories(dir, outDir); err != nil {
			return err
		}
	}
	return aborted(ctx)
}

// FindOwner asks the inputs from last to first, since later inputs win a
// collision; the first whose last output contains file answers.
func (m *Merge) FindOwner(file string) Node {
	m.dirsMu.Lock()
	dirs := append([]string(nil), m.lastDirs...)
	m.dirsMu.Unlock()

	for i := len(m.inputs) - 1; i >= 0; i-- {
		in := m.inputs[i]
		if dirs[i] == "" || !fsutil.Exists(filepath.Join(dirs[i], file)) {
			continue
		}
		if owner := in.FindOwner(file); owner != nil {
			return owner
		}
		return in
	}
	return nil
}
