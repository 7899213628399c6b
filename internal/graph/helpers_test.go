package graph

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/specialistvlad/gobblego/internal/checksum"
	"github.com/specialistvlad/gobblego/internal/registry"
	"github.com/specialistvlad/gobblego/internal/session"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T) *session.Session {
	t.Helper()
	sess := session.New(filepath.Join(t.TempDir(), "scratch"))
	require.NoError(t, sess.Begin(context.Background()))
	t.Cleanup(func() { _ = sess.End() })
	return sess
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

// readFiles returns every file under root, following links.
func readFiles(t *testing.T, root string) map[string]string {
	t.Helper()
	root, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	out := map[string]string{}
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := os.Stat(p)
		if err != nil {
			return err
		}
		if info.IsDir() {
			if d.Type()&fs.ModeSymlink != 0 {
				sub := readFiles(t, p)
				rel, _ := filepath.Rel(root, p)
				for k, v := range sub {
					out[filepath.ToSlash(filepath.Join(rel, k))] = v
				}
			}
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, p)
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

// staticSource returns an unwatched directory source populated with files.
func staticSource(t *testing.T, sess *session.Session, name string, files map[string]string) *Source {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	writeFiles(t, dir, files)
	src, err := NewSource(sess, dir, SourceOptions{Name: name, Static: true})
	require.NoError(t, err)
	return src
}

// upper is an uppercase per-file plugin that records what it was called for.
type upper struct {
	mu    sync.Mutex
	calls []string
}

func (u *upper) plugin() *registry.Plugin {
	return &registry.Plugin{
		Name: "uppercase",
		File: func(ctx context.Context, code string, opts registry.Options, f *registry.File) (registry.Result, error) {
			u.mu.Lock()
			u.calls = append(u.calls, f.Name)
			u.mu.Unlock()
			return registry.Result{Code: strings.ToUpper(code)}, nil
		},
	}
}

func (u *upper) called() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.calls...)
}

// events collects everything a node emits.
type events struct {
	mu          sync.Mutex
	invalidated [][]checksum.Change
	infos       []Info
	errs        []error
}

func (e *events) listener() Listener {
	return Listener{
		Invalidate: func(c []checksum.Change) {
			e.mu.Lock()
			e.invalidated = append(e.invalidated, c)
			e.mu.Unlock()
		},
		Info: func(i Info) {
			e.mu.Lock()
			e.infos = append(e.infos, i)
			e.mu.Unlock()
		},
		Error: func(err error) {
			e.mu.Lock()
			e.errs = append(e.errs, err)
			e.mu.Unlock()
		},
	}
}

func (e *events) errors() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]error(nil), e.errs...)
}

func (e *events) codes() []InfoCode {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]InfoCode, 0, len(e.infos))
	for _, i := range e.infos {
		out = append(out, i.Code)
	}
	return out
}

func (e *events) invalidations() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.invalidated)
}
