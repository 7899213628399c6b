package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/specialistvlad/gobblego/internal/builderr"
	"github.com/specialistvlad/gobblego/internal/checksum"
	"github.com/specialistvlad/gobblego/internal/graph"
	"github.com/specialistvlad/gobblego/internal/registry"
	"github.com/specialistvlad/gobblego/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	starts int
	dirs   []string
	infos  []graph.InfoCode
	errs   []error
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		BuildStart: func() {
			r.mu.Lock()
			r.starts++
			r.mu.Unlock()
		},
		BuildEnd: func(dir string, _ time.Duration) {
			r.mu.Lock()
			r.dirs = append(r.dirs, dir)
			r.mu.Unlock()
		},
		Info: func(info graph.Info) {
			r.mu.Lock()
			r.infos = append(r.infos, info.Code)
			r.mu.Unlock()
		},
		Error: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) built() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.dirs)
}

func (r *recorder) errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func setup(t *testing.T, fn registry.FileFunc) (*graph.Source, graph.Node) {
	t.Helper()
	sess := session.New(filepath.Join(t.TempDir(), "scratch"))
	require.NoError(t, sess.Begin(context.Background()))
	t.Cleanup(func() { _ = sess.End() })

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	src, err := graph.NewSource(sess, dir, graph.SourceOptions{Static: true})
	require.NoError(t, err)

	tr, err := graph.NewTransform(sess, src, &registry.Plugin{Name: "up", File: fn}, graph.TransformOptions{})
	require.NoError(t, err)
	return src, tr
}

func upper(ctx context.Context, code string, opts registry.Options, f *registry.File) (registry.Result, error) {
	return registry.Result{Code: strings.ToUpper(code)}, nil
}

func TestControllerRebuildsOnInvalidation(t *testing.T) {
	src, node := setup(t, upper)
	rec := &recorder{}
	c := New(node, rec.handlers())
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	require.Eventually(t, func() bool { return rec.built() == 1 }, 2*time.Second, 10*time.Millisecond)

	// A burst of invalidations results in a single build.
	src.Invalidate([]checksum.Change{{File: "a.txt", Kind: checksum.Changed}})
	src.Invalidate([]checksum.Change{{File: "a.txt", Kind: checksum.Changed}})

	require.Eventually(t, func() bool { return rec.built() >= 2 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.LessOrEqual(t, len(rec.dirs), 3)
	assert.Contains(t, rec.infos, graph.BuildInvalidated)
	assert.Contains(t, rec.infos, graph.TransformComplete)
	assert.Empty(t, rec.errs)
}

func TestControllerReportsErrorsOnce(t *testing.T) {
	var fail = true
	var mu sync.Mutex
	src, node := setup(t, func(ctx context.Context, code string, opts registry.Options, f *registry.File) (registry.Result, error) {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return registry.Result{}, errors.New("broken at 1:2")
		}
		return registry.Result{Code: code}, nil
	})
	rec := &recorder{}
	c := New(node, rec.handlers())
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	require.Eventually(t, func() bool { return len(rec.errors()) == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.Len(t, rec.errors(), 1)
	assert.Equal(t, builderr.TransformationFailed, builderr.CodeOf(rec.errors()[0]))
	assert.Equal(t, 0, rec.built())

	// Errors are not retried until the next invalidation.
	mu.Lock()
	fail = false
	mu.Unlock()
	src.Invalidate([]checksum.Change{{File: "a.txt", Kind: checksum.Changed}})
	require.Eventually(t, func() bool { return rec.built() == 1 }, 2*time.Second, 10*time.Millisecond)
}

// invalidateOnce invalidates src right before its first Ready call, the way
// a change landing between scheduling and Ready would.
type invalidateOnce struct {
	graph.Node
	src  *graph.Source
	once sync.Once
}

func (n *invalidateOnce) Ready(ctx context.Context) (string, error) {
	n.once.Do(func() {
		n.src.Invalidate([]checksum.Change{{File: "a.txt", Kind: checksum.Changed}})
	})
	return n.Node.Ready(ctx)
}

func TestControllerFoldsInvalidationBeforeReady(t *testing.T) {
	src, node := setup(t, upper)
	rec := &recorder{}
	c := New(&invalidateOnce{Node: node, src: src}, rec.handlers())
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	require.Eventually(t, func() bool { return rec.built() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.dirs, 1, "one result is reported once")
	assert.Equal(t, 1, rec.starts)
	assert.Contains(t, rec.infos, graph.BuildInvalidated)
}

func TestControllerClose(t *testing.T) {
	_, node := setup(t, upper)
	c := New(node, Handlers{})
	require.NoError(t, c.Start(context.Background()))
	c.Close()
	c.Close()
	assert.False(t, node.Active())
}

func TestSameError(t *testing.T) {
	err := errors.New("x")
	assert.True(t, sameError(err, err))
	assert.False(t, sameError(err, errors.New("x")))
	assert.False(t, sameError(nil, err))
}
