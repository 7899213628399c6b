package graph

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/specialistvlad/gobblego/internal/builderr"
	"github.com/specialistvlad/gobblego/internal/checksum"
	"github.com/specialistvlad/gobblego/internal/registry"
	"github.com/specialistvlad/gobblego/internal/session"
	"github.com/specialistvlad/gobblego/internal/sourcemap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformFile(t *testing.T) {
	ctx := context.Background()

	t.Run("ready is memoized", func(t *testing.T) {
		sess := newSession(t)
		src := staticSource(t, sess, "root", map[string]string{"a.txt": "a", "b.txt": "b"})
		u := &upper{}
		tr, err := NewTransform(sess, src, u.plugin(), TransformOptions{})
		require.NoError(t, err)

		first, err := tr.Ready(ctx)
		require.NoError(t, err)
		second, err := tr.Ready(ctx)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, u.called())
		assert.Equal(t, map[string]string{"a.txt": "A", "b.txt": "B"}, readFiles(t, first))
	})

	t.Run("only changed files are recomputed", func(t *testing.T) {
		sess := newSession(t)
		src := staticSource(t, sess, "root", map[string]string{"a.txt": "a", "b.txt": "b"})
		u := &upper{}
		tr, err := NewTransform(sess, src, u.plugin(), TransformOptions{Accept: []string{".txt"}})
		require.NoError(t, err)
		require.NoError(t, tr.Start(ctx))
		defer tr.Stop()

		first, err := tr.Ready(ctx)
		require.NoError(t, err)
		require.Len(t, u.called(), 2)

		writeFiles(t, src.Path(), map[string]string{"a.txt": "aa"})
		src.Invalidate([]checksum.Change{{File: "a.txt", Kind: checksum.Changed}})

		second, err := tr.Ready(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, first, second, "a new generation is allocated")
		assert.Equal(t, []string{"a.txt"}, u.called()[2:])
		assert.Equal(t, map[string]string{"a.txt": "AA", "b.txt": "B"}, readFiles(t, second))

		_, err = os.Stat(first)
		assert.True(t, os.IsNotExist(err), "superseded generation is removed")
		assert.DirExists(t, sess.CacheDir(tr.ID()))
	})

	t.Run("files outside accept pass through", func(t *testing.T) {
		sess := newSession(t)
		src := staticSource(t, sess, "root", map[string]string{"a.txt": "a", "notes.md": "keep me"})
		u := &upper{}
		tr, err := NewTransform(sess, src, u.plugin(), TransformOptions{Accept: []string{".txt"}})
		require.NoError(t, err)

		dir, err := tr.Ready(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a.txt"}, u.called())
		assert.Equal(t, map[string]string{"a.txt": "A", "notes.md": "keep me"}, readFiles(t, dir))
	})

	t.Run("extension is remapped for extension matches", func(t *testing.T) {
		sess := newSession(t)
		src := staticSource(t, sess, "root", map[string]string{"app.coffee": "x = 1", "lib/util.coffee": "y = 2"})
		u := &upper{}
		tr, err := NewTransform(sess, src, u.plugin(), TransformOptions{Accept: []string{".coffee"}, Ext: ".js"})
		require.NoError(t, err)

		dir, err := tr.Ready(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"app.js": "X = 1", "lib/util.js": "Y = 2"}, readFiles(t, dir))
		assert.Equal(t, tr, tr.FindOwner("app.js"))
		assert.Equal(t, src, tr.FindOwner("app.coffee"), "unclaimed files are delegated to the input")
		assert.Nil(t, tr.FindOwner("missing.coffee"))
	})

	t.Run("failure on a passed-through file names its creator", func(t *testing.T) {
		sess := newSession(t)
		src := staticSource(t, sess, "root", map[string]string{"app.js": "js", "a.txt": "a\nb\nc = @"})
		u := &upper{}
		js, err := NewTransform(sess, src, u.plugin(), TransformOptions{Accept: []string{".js"}})
		require.NoError(t, err)
		p := &registry.Plugin{
			Name: "strict",
			File: func(ctx context.Context, code string, opts registry.Options, f *registry.File) (registry.Result, error) {
				if strings.Contains(code, "@") {
					return registry.Result{}, errors.New("SyntaxError: Unexpected token (3:10)")
				}
				return registry.Result{Code: code}, nil
			},
		}
		bad, err := NewTransform(sess, js, p, TransformOptions{})
		require.NoError(t, err)

		_, err = bad.Ready(ctx)
		var be *builderr.Error
		require.ErrorAs(t, err, &be)
		assert.Equal(t, bad.ID(), be.NodeID)
		assert.Equal(t, "a.txt", be.File)
		assert.Equal(t, 3, be.Line)
		assert.Equal(t, 10, be.Column)
		assert.Equal(t, src.ID(), be.Creator)
	})

	t.Run("source maps are written next to the output", func(t *testing.T) {
		sess := newSession(t)
		src := staticSource(t, sess, "root", map[string]string{"app.coffee": "x = 1"})
		p := &registry.Plugin{
			Name: "coffee",
			File: func(ctx context.Context, code string, opts registry.Options, f *registry.File) (registry.Result, error) {
				return registry.Result{Code: "var x = 1;", Map: &sourcemap.Map{Version: 3, Mappings: "AAAA"}}, nil
			},
			Accept: []string{".coffee"},
			Ext:    ".js",
		}
		tr, err := NewTransform(sess, src, p, TransformOptions{})
		require.NoError(t, err)

		dir, err := tr.Ready(ctx)
		require.NoError(t, err)
		files := readFiles(t, dir)
		assert.Equal(t, "var x = 1;\n//# sourceMappingURL=app.js.map\n", files["app.js"])

		m, err := sourcemap.Parse([]byte(files["app.js.map"]))
		require.NoError(t, err)
		assert.Equal(t, "app.js", m.File)
		assert.Equal(t, []string{"app.coffee"}, m.Sources)
		assert.Equal(t, []string{"x = 1"}, m.SourcesContent)
	})

	t.Run("plugin failure carries location and node", func(t *testing.T) {
		sess := newSession(t)
		src := staticSource(t, sess, "root", map[string]string{"app.coffee": "x = (", "ok.coffee": "y"})
		var calls atomic.Int32
		p := &registry.Plugin{
			Name: "coffee",
			File: func(ctx context.Context, code string, opts registry.Options, f *registry.File) (registry.Result, error) {
				calls.Add(1)
				if f.Name == "app.coffee" {
					return registry.Result{}, errors.New("SyntaxError: Unexpected token (3:10)")
				}
				return registry.Result{Code: code}, nil
			},
		}
		tr, err := NewTransform(sess, src, p, TransformOptions{})
		require.NoError(t, err)
		ev := &events{}
		defer tr.Subscribe(ev.listener())()

		_, err = tr.Ready(ctx)
		require.Error(t, err)

		var be *builderr.Error
		require.True(t, errors.As(err, &be))
		assert.Equal(t, builderr.TransformationFailed, be.Code)
		assert.Equal(t, tr.ID(), be.NodeID)
		assert.Equal(t, "app.coffee", be.File)
		assert.Equal(t, 3, be.Line)
		assert.Equal(t, 10, be.Column)
		assert.Equal(t, src.ID(), be.Creator)
		assert.Equal(t, src.Path(), be.InputDir)
		assert.Contains(t, be.Error(), "Unexpected token")
		assert.Equal(t, []error{err}, ev.errors())

		entries, rerr := os.ReadDir(sess.NodeDir(tr.ID()))
		require.NoError(t, rerr)
		for _, e := range entries {
			assert.Equal(t, session.CacheDirName, e.Name(), "failed generation is discarded")
		}

		n := calls.Load()
		_, again := tr.Ready(ctx)
		assert.Same(t, err, again, "failure stays memoized until invalidation")
		assert.Equal(t, n, calls.Load())
	})

	t.Run("invalidation aborts an in-flight computation", func(t *testing.T) {
		sess := newSession(t)
		src := staticSource(t, sess, "root", map[string]string{"a.txt": "a"})
		entered := make(chan struct{})
		release := make(chan struct{})
		var calls atomic.Int32
		p := &registry.Plugin{
			Name: "slow",
			File: func(ctx context.Context, code string, opts registry.Options, f *registry.File) (registry.Result, error) {
				if calls.Add(1) == 1 {
					close(entered)
					<-release
				}
				return registry.Result{Code: strings.ToUpper(code)}, nil
			},
		}
		tr, err := NewTransform(sess, src, p, TransformOptions{})
		require.NoError(t, err)
		require.NoError(t, tr.Start(ctx))
		defer tr.Stop()
		ev := &events{}
		defer tr.Subscribe(ev.listener())()

		result := make(chan error, 1)
		go func() {
			_, err := tr.Ready(ctx)
			result <- err
		}()

		select {
		case <-entered:
		case <-time.After(2 * time.Second):
			t.Fatal("plugin was not called")
		}
		src.Invalidate([]checksum.Change{{File: "a.txt", Kind: checksum.Changed}})
		close(release)

		select {
		case err := <-result:
			assert.True(t, builderr.IsAborted(err))
		case <-time.After(2 * time.Second):
			t.Fatal("aborted computation did not settle")
		}
		assert.Empty(t, ev.errors(), "aborts are not reported as errors")
		assert.Equal(t, 1, ev.invalidations())

		dir, err := tr.Ready(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"a.txt": "A"}, readFiles(t, dir))
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("aborted computation leaves the newer cache entry intact", func(t *testing.T) {
		sess := newSession(t)
		src := staticSource(t, sess, "root", map[string]string{"a.txt": "a"})
		entered := make(chan struct{})
		release := make(chan struct{})
		var calls atomic.Int32
		p := &registry.Plugin{
			Name: "slow",
			File: func(ctx context.Context, code string, opts registry.Options, f *registry.File) (registry.Result, error) {
				if calls.Add(1) == 2 {
					close(entered)
					<-release
				}
				return registry.Result{Code: strings.ToUpper(code)}, nil
			},
		}
		tr, err := NewTransform(sess, src, p, TransformOptions{})
		require.NoError(t, err)
		require.NoError(t, tr.Start(ctx))
		defer tr.Stop()

		_, err = tr.Ready(ctx)
		require.NoError(t, err)

		changed := []checksum.Change{{File: "a.txt", Kind: checksum.Changed}}
		src.Invalidate(changed)
		stale := make(chan error, 1)
		go func() {
			_, err := tr.Ready(ctx)
			stale <- err
		}()
		select {
		case <-entered:
		case <-time.After(2 * time.Second):
			t.Fatal("plugin was not called")
		}

		src.Invalidate(changed)
		type outcome struct {
			dir string
			err error
		}
		fresh := make(chan outcome, 1)
		go func() {
			dir, err := tr.Ready(ctx)
			fresh <- outcome{dir, err}
		}()
		require.Eventually(t, func() bool { return sess.Gate().Len() == 1 }, 2*time.Second, 5*time.Millisecond)
		close(release)

		select {
		case err := <-stale:
			assert.True(t, builderr.IsAborted(err))
		case <-time.After(2 * time.Second):
			t.Fatal("superseded computation did not settle")
		}
		select {
		case got := <-fresh:
			require.NoError(t, got.err)
			assert.Equal(t, map[string]string{"a.txt": "A"}, readFiles(t, got.dir))
		case <-time.After(2 * time.Second):
			t.Fatal("fresh computation did not settle")
		}
		assert.FileExists(t, filepath.Join(sess.CacheDir(tr.ID()), "a.txt"))
	})

	t.Run("info events bracket the transformation", func(t *testing.T) {
		sess := newSession(t)
		src := staticSource(t, sess, "root", map[string]string{"a.txt": "a"})
		u := &upper{}
		tr, err := NewTransform(sess, src, u.plugin(), TransformOptions{})
		require.NoError(t, err)
		ev := &events{}
		defer tr.Subscribe(ev.listener())()

		_, err = tr.Ready(ctx)
		require.NoError(t, err)
		assert.Equal(t, []InfoCode{TransformStart, TransformComplete}, ev.codes())
	})
}

func TestTransformDir(t *testing.T) {
	ctx := context.Background()

	t.Run("directory plugin receives changes", func(t *testing.T) {
		sess := newSession(t)
		src := staticSource(t, sess, "root", map[string]string{"a.txt": "a", "b.txt": "b"})
		var seen [][]checksum.Change
		p := &registry.Plugin{
			Name: "concat",
			Dir: func(ctx context.Context, d *registry.Dir) error {
				seen = append(seen, d.Changes)
				files := readFiles(t, d.InputDir)
				return os.WriteFile(filepath.Join(d.OutputDir, "all.txt"), []byte(files["a.txt"]+files["b.txt"]), 0o644)
			},
		}
		tr, err := NewTransform(sess, src, p, TransformOptions{})
		require.NoError(t, err)
		require.NoError(t, tr.Start(ctx))
		defer tr.Stop()

		dir, err := tr.Ready(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"all.txt": "ab"}, readFiles(t, dir))

		writeFiles(t, src.Path(), map[string]string{"b.txt": "B"})
		src.Invalidate([]checksum.Change{{File: "b.txt", Kind: checksum.Changed}})

		dir, err = tr.Ready(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"all.txt": "aB"}, readFiles(t, dir))

		require.Len(t, seen, 2)
		assert.Equal(t, []checksum.Change{{File: "a.txt", Kind: checksum.Added}, {File: "b.txt", Kind: checksum.Added}}, seen[0])
		assert.Equal(t, []checksum.Change{{File: "b.txt", Kind: checksum.Changed}}, seen[1])
	})

	t.Run("callback plugin", func(t *testing.T) {
		sess := newSession(t)
		src := staticSource(t, sess, "root", map[string]string{"a.txt": "a"})
		p := &registry.Plugin{
			Name: "later",
			DirCallback: func(ctx context.Context, d *registry.Dir, done func(error)) {
				go func() {
					done(os.WriteFile(filepath.Join(d.OutputDir, "x.txt"), []byte("x"), 0o644))
				}()
			},
		}
		tr, err := NewTransform(sess, src, p, TransformOptions{})
		require.NoError(t, err)

		dir, err := tr.Ready(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"x.txt": "x"}, readFiles(t, dir))
		assert.Equal(t, tr, tr.FindOwner("x.txt"))
	})

	t.Run("callback error", func(t *testing.T) {
		sess := newSession(t)
		src := staticSource(t, sess, "root", map[string]string{"a.txt": "a"})
		p := &registry.Plugin{
			Name: "broken",
			DirCallback: func(ctx context.Context, d *registry.Dir, done func(error)) {
				done(errors.New("failed on line 7, column 2"))
			},
		}
		tr, err := NewTransform(sess, src, p, TransformOptions{})
		require.NoError(t, err)

		_, err = tr.Ready(ctx)
		var be *builderr.Error
		require.True(t, errors.As(err, &be))
		assert.Equal(t, 7, be.Line)
		assert.Equal(t, 2, be.Column)
		assert.NotEmpty(t, be.OutputDir)
	})
}

func TestNewTransformValidation(t *testing.T) {
	sess := newSession(t)
	src := staticSource(t, sess, "root", nil)
	u := &upper{}

	_, err := NewTransform(sess, src, &registry.Plugin{Name: "nothing"}, TransformOptions{})
	assert.Equal(t, builderr.InvalidPlugin, builderr.CodeOf(err))

	_, err = NewTransform(sess, src, &registry.Plugin{Name: "observer", Observe: func(context.Context, *registry.Dir) error { return nil }}, TransformOptions{})
	assert.Equal(t, builderr.InvalidPlugin, builderr.CodeOf(err))

	strict := u.plugin()
	strict.Keys = []string{"level"}
	_, err = NewTransform(sess, src, strict, TransformOptions{Options: registry.Options{"levle": 1}})
	assert.Equal(t, builderr.InvalidConfig, builderr.CodeOf(err))

	_, err = NewTransform(sess, src, u.plugin(), TransformOptions{Accept: []string{"re:("}})
	assert.Equal(t, builderr.InvalidConfig, builderr.CodeOf(err))

	dirPlugin := &registry.Plugin{Name: "d", Dir: func(context.Context, *registry.Dir) error { return nil }}
	_, err = NewTransform(sess, src, dirPlugin, TransformOptions{Ext: ".js"})
	assert.Equal(t, builderr.InvalidConfig, builderr.CodeOf(err))

	tr, err := NewTransform(sess, src, u.plugin(), TransformOptions{})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(tr.ID(), "-uppercase"))
	assert.Equal(t, KindTransform, tr.Kind())
}
