// Package fswatch watches a directory tree, or a single file, and reports
// batches of changes after a debounce window.
package fswatch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/specialistvlad/gobblego/internal/checksum"
	"github.com/specialistvlad/gobblego/internal/ctxlog"
	"github.com/specialistvlad/gobblego/internal/fsutil"
)

// DefaultDebounce is the default window used to coalesce bursts of events.
const DefaultDebounce = 100 * time.Millisecond

// Handler receives one batch of changes per debounce window. Paths are
// relative to the watched root.
type Handler func(changes []checksum.Change)

// Options configures a Watcher.
type Options struct {
	// Debounce is how long to collect events after the first one of a burst.
	// Default: 100ms
	Debounce time.Duration

	// Ignore holds glob patterns matched against base names.
	// Default: [".git", "*.swp", "*~", ".DS_Store"]
	Ignore []string
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		Debounce: DefaultDebounce,
		Ignore:   []string{".git", "*.swp", "*~", ".DS_Store"},
	}
}

// Watcher delivers debounced change batches for one path.
type Watcher struct {
	root     string
	file     string
	handler  Handler
	debounce time.Duration
	ignore   []string

	watcher  *fsnotify.Watcher
	events   chan checksum.Change
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	watching bool
}

// New creates a watcher for path. When path is a file, its parent directory
// is watched and only events for that file are reported.
func New(path string, handler Handler, opts *Options) (*Watcher, error) {
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:     path,
		handler:  handler,
		debounce: debounce,
		ignore:   opts.Ignore,
		watcher:  fw,
		events:   make(chan checksum.Change, 1024),
		done:     make(chan struct{}),
	}
	if !info.IsDir() {
		w.root = filepath.Dir(path)
		w.file = filepath.Base(path)
	}
	return w, nil
}

// Start begins watching. It is a no-op if the watcher is already running.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if w.file != "" {
		if err := w.watcher.Add(w.root); err != nil {
			return err
		}
	} else if err := w.addRecursive(w.root); err != nil {
		return err
	}

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop ends watching. Pending, undelivered changes are dropped.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.shouldIgnore(path) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range w.ignore {
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) processEvents(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("File watcher error.", "root", w.root, "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if w.shouldIgnore(event.Name) {
		return
	}
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	if w.file != "" && rel != w.file {
		return
	}

	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			// Files may land in a new directory before it is watched.
			w.addRecursive(event.Name)
			files, _ := fsutil.ListFiles(event.Name)
			for _, f := range files {
				w.send(checksum.Change{File: filepath.Join(rel, f), Kind: checksum.Added})
			}
			return
		}
		w.send(checksum.Change{File: rel, Kind: checksum.Added})
	case event.Has(fsnotify.Write):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			return
		}
		w.send(checksum.Change{File: rel, Kind: checksum.Changed})
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.send(checksum.Change{File: rel, Kind: checksum.Removed})
	}
}

func (w *Watcher) send(c checksum.Change) {
	select {
	case w.events <- c:
	case <-w.done:
	}
}

// debounceLoop arms a timer on the first event of a burst and delivers
// everything collected when it fires. The timer is not pushed back by
// later events.
func (w *Watcher) debounceLoop(ctx context.Context) {
	var batch []checksum.Change
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case c := <-w.events:
			batch = append(batch, c)
			if timerC == nil {
				timerC = time.After(w.debounce)
			}
		case <-timerC:
			timerC = nil
			changes := checksum.Coalesce(batch)
			batch = nil
			if len(changes) > 0 && w.handler != nil {
				w.handler(changes)
			}
		}
	}
}
