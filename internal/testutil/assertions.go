package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/specialistvlad/gobblego/internal/fsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertOutput checks that dir holds exactly the given files, keyed by
// slash-separated relative path, with the given contents.
func AssertOutput(t *testing.T, dir string, want map[string]string) {
	t.Helper()

	files, err := fsutil.ListFiles(dir)
	require.NoError(t, err, "listing output %s", dir)

	got := make(map[string]string, len(files))
	for _, rel := range files {
		data, err := os.ReadFile(filepath.Join(dir, rel))
		require.NoError(t, err)
		got[filepath.ToSlash(rel)] = string(data)
	}
	assert.Equal(t, want, got, "output of %s", dir)
}

// ReadOutput returns the content of rel under dir, or "" if it cannot be read.
func ReadOutput(dir, rel string) string {
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	if err != nil {
		return ""
	}
	return string(data)
}

// AssertLogged checks that every substring appears in the log output.
func AssertLogged(t *testing.T, logs string, substrings ...string) {
	t.Helper()
	for _, s := range substrings {
		require.True(t, strings.Contains(logs, s), "expected %q in log output", s)
	}
}
