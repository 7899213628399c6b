// Package testtree builds and reads small directory trees for plugin tests.
package testtree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/gobblego/internal/fsutil"
	"github.com/specialistvlad/gobblego/internal/registry"
	"github.com/stretchr/testify/require"
)

// Write creates files under root from a slash path -> content map.
func Write(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

// Read returns every file below root, keyed by slash path.
func Read(t *testing.T, root string) map[string]string {
	t.Helper()
	files, err := fsutil.ListFiles(root)
	require.NoError(t, err)
	out := make(map[string]string, len(files))
	for _, rel := range files {
		data, err := os.ReadFile(filepath.Join(root, rel))
		require.NoError(t, err)
		out[filepath.ToSlash(rel)] = string(data)
	}
	return out
}

// Dir returns a plugin invocation reading files and writing to a fresh
// output directory. Logged messages are appended to logs.
func Dir(t *testing.T, files map[string]string, opts registry.Options, logs *[]string) *registry.Dir {
	t.Helper()
	in := t.TempDir()
	Write(t, in, files)
	return &registry.Dir{
		InputDir:  in,
		OutputDir: filepath.Join(t.TempDir(), "out"),
		Options:   opts,
		Log: func(msg string) {
			if logs != nil {
				*logs = append(*logs, msg)
			}
		},
	}
}
