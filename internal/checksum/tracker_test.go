package checksum

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestTrackerChanges(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.txt", "hello")
	write(t, dir, "sub/b.txt", "world")

	tr := NewTracker()

	t.Run("first call reports everything as added", func(t *testing.T) {
		changes, err := tr.Changes(dir)
		require.NoError(t, err)
		assert.Equal(t, []Change{
			{File: "a.txt", Kind: Added},
			{File: filepath.Join("sub", "b.txt"), Kind: Added},
		}, changes)
	})

	t.Run("no changes yields empty set", func(t *testing.T) {
		changes, err := tr.Changes(dir)
		require.NoError(t, err)
		assert.Empty(t, changes)
	})

	t.Run("touch without modification is not a change", func(t *testing.T) {
		later := time.Now().Add(time.Hour)
		require.NoError(t, os.Chtimes(filepath.Join(dir, "a.txt"), later, later))
		changes, err := tr.Changes(dir)
		require.NoError(t, err)
		assert.Empty(t, changes)
	})

	t.Run("classifies added removed changed", func(t *testing.T) {
		write(t, dir, "a.txt", "hello2")
		write(t, dir, "c.txt", "new")
		require.NoError(t, os.Remove(filepath.Join(dir, "sub", "b.txt")))

		changes, err := tr.Changes(dir)
		require.NoError(t, err)
		assert.Equal(t, []Change{
			{File: "c.txt", Kind: Added},
			{File: filepath.Join("sub", "b.txt"), Kind: Removed},
			{File: "a.txt", Kind: Changed},
		}, changes)
	})
}

func TestTrackerDiffWithoutCommit(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.txt", "one")

	tr := NewTracker()
	snap, err := Scan(dir)
	require.NoError(t, err)

	assert.Len(t, tr.Diff(snap), 1)
	assert.Len(t, tr.Diff(snap), 1, "diff alone must not move the baseline")

	tr.Commit(snap)
	assert.Empty(t, tr.Diff(snap))

	tr.Forget("a.txt")
	assert.Contains(t, snap, "a.txt", "the committed snapshot belongs to the caller")
	assert.Equal(t, []Change{{File: "a.txt", Kind: Added}}, tr.Diff(snap))
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a", "same")
	write(t, dir, "b", "same")
	write(t, dir, "c", "different")

	a, err := HashFile(filepath.Join(dir, "a"))
	require.NoError(t, err)
	b, err := HashFile(filepath.Join(dir, "b"))
	require.NoError(t, err)
	c, err := HashFile(filepath.Join(dir, "c"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a.String(), 64)
}

func TestTrackerApply(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.txt", "one")
	write(t, dir, "b.txt", "two")

	tr := NewTracker()
	_, err := tr.Changes(dir)
	require.NoError(t, err)

	write(t, dir, "a.txt", "uno")
	require.NoError(t, os.Remove(filepath.Join(dir, "b.txt")))
	tr.Apply(dir, []Change{{File: "a.txt", Kind: Changed}, {File: "b.txt", Kind: Removed}})

	changes, err := tr.Changes(dir)
	require.NoError(t, err)
	assert.Empty(t, changes, "applied changes are already part of the baseline")
}
