package checksum

import (
	"encoding/hex"
	"io"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/specialistvlad/gobblego/internal/fsutil"
	"lukechampine.com/blake3"
)

// Digest is a blake3-256 content hash.
type Digest [32]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Snapshot maps relative file paths to their content digests.
type Snapshot map[string]Digest

// HashFile returns the digest of the file at path.
func HashFile(path string) (Digest, error) {
	var d Digest
	f, err := os.Open(path)
	if err != nil {
		return d, err
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return d, err
	}
	copy(d[:], h.Sum(nil))
	return d, nil
}

// Scan hashes every file below dir.
func Scan(dir string) (Snapshot, error) {
	files, err := fsutil.ListFiles(dir)
	if err != nil {
		return nil, err
	}
	snap := make(Snapshot, len(files))
	for _, file := range files {
		d, err := HashFile(filepath.Join(dir, file))
		if err != nil {
			return nil, err
		}
		snap[file] = d
	}
	return snap, nil
}

// Tracker remembers the last committed snapshot of a directory. Content is
// compared by hash, so touching a file without modifying it is not a change.
type Tracker struct {
	mu   sync.Mutex
	last Snapshot
}

// NewTracker returns a Tracker with no history; its first diff reports every
// file as added.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Diff compares snap against the last committed snapshot. Added files come
// first, then removed, then changed, each group in path order.
func (t *Tracker) Diff(snap Snapshot) []Change {
	t.mu.Lock()
	defer t.mu.Unlock()

	var added, removed, changed []Change
	for _, file := range sortedKeys(snap) {
		prev, ok := t.last[file]
		switch {
		case !ok:
			added = append(added, Change{File: file, Kind: Added})
		case prev != snap[file]:
			changed = append(changed, Change{File: file, Kind: Changed})
		}
	}
	for _, file := range sortedKeys(t.last) {
		if _, ok := snap[file]; !ok {
			removed = append(removed, Change{File: file, Kind: Removed})
		}
	}

	out := make([]Change, 0, len(added)+len(removed)+len(changed))
	out = append(out, added...)
	out = append(out, removed...)
	return append(out, changed...)
}

// Commit records a copy of snap as the baseline for the next Diff. Later
// calls to Forget or Apply never touch the caller's map.
func (t *Tracker) Commit(snap Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = maps.Clone(snap)
}

// Forget drops the entry for file so that it is reported as added next time.
func (t *Tracker) Forget(file string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.last, file)
}

// Apply folds an externally observed change set into the baseline, hashing
// only the files it names. Files that can no longer be read are dropped.
func (t *Tracker) Apply(dir string, changes []Change) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.last == nil {
		t.last = make(Snapshot)
	}
	for _, c := range changes {
		if c.Kind == Removed {
			delete(t.last, c.File)
			continue
		}
		d, err := HashFile(filepath.Join(dir, c.File))
		if err != nil {
			delete(t.last, c.File)
			continue
		}
		t.last[c.File] = d
	}
}

// Reset drops all history.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = nil
}

// Changes scans dir, diffs it against the baseline and commits the result.
func (t *Tracker) Changes(dir string) ([]Change, error) {
	snap, err := Scan(dir)
	if err != nil {
		return nil, err
	}
	changes := t.Diff(snap)
	t.Commit(snap)
	return changes, nil
}
