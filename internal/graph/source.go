package graph

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/specialistvlad/gobblego/internal/builderr"
	"github.com/specialistvlad/gobblego/internal/checksum"
	"github.com/specialistvlad/gobblego/internal/ctxlog"
	"github.com/specialistvlad/gobblego/internal/fsutil"
	"github.com/specialistvlad/gobblego/internal/fswatch"
	"github.com/specialistvlad/gobblego/internal/session"
)

// SourceOptions configures a Source.
type SourceOptions struct {
	// Name is used in the node id. Default: the base name of the path.
	Name string
	// Static sources are never watched.
	Static bool
	// Debounce is the window used to coalesce file system events.
	// Default: fswatch.DefaultDebounce
	Debounce time.Duration
	// Ignore holds base-name globs the watcher skips.
	// Default: fswatch.DefaultOptions().Ignore
	Ignore []string
}

// Source exposes a directory, or a single file, as a build input.
type Source struct {
	emitter

	id     string
	path   string
	isFile bool
	sess   *session.Session
	opts   SourceOptions

	mu      sync.Mutex
	active  bool
	watcher *fswatch.Watcher
}

var _ Node = (*Source)(nil)

// NewSource returns a Source for path. It fails with MISSING_DIRECTORY when
// path does not exist.
func NewSource(sess *session.Session, path string, opts SourceOptions) (*Source, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		be := builderr.New(builderr.MissingDirectory, "cannot create a source from %s: no such file or directory", path)
		be.Path = path
		be.Err = err
		return nil, be
	}
	if opts.Name == "" {
		opts.Name = filepath.Base(abs)
	}
	return &Source{
		id:     sess.NextID(opts.Name),
		path:   abs,
		isFile: !info.IsDir(),
		sess:   sess,
		opts:   opts,
	}, nil
}

func (s *Source) ID() string     { return s.id }
func (s *Source) Kind() Kind     { return KindSource }
func (s *Source) Inputs() []Node { return nil }

// Path returns the absolute path the source was created from.
func (s *Source) Path() string { return s.path }

// Static reports whether the source is exempt from watching.
func (s *Source) Static() bool { return s.opts.Static }

func (s *Source) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Ready returns the source directory. A single-file source is linked into
// its generation directory first.
func (s *Source) Ready(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !s.isFile {
		return s.path, nil
	}
	dir := s.fileDir()
	if fsutil.Exists(filepath.Join(dir, filepath.Base(s.path))) {
		return dir, nil
	}
	if err := s.link(); err != nil {
		return "", err
	}
	return dir, nil
}

func (s *Source) fileDir() string {
	return s.sess.GenerationDir(s.id, 1)
}

// link places the file in the generation directory, hard-linking where
// possible.
func (s *Source) link() error {
	dir := s.fileDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	target := filepath.Join(dir, filepath.Base(s.path))
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Link(s.path, target); err == nil {
		return nil
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("failed to link source file: %w", err)
	}
	return fsutil.CopyFile(s.path, target, info.Mode().Perm())
}

// Start begins watching the source unless it is static.
func (s *Source) Start(ctx context.Context) error {
	if s.opts.Static {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return nil
	}

	if s.isFile {
		if err := s.link(); err != nil {
			return err
		}
	}

	wopts := fswatch.DefaultOptions()
	if s.opts.Debounce > 0 {
		wopts.Debounce = s.opts.Debounce
	}
	if s.opts.Ignore != nil {
		wopts.Ignore = s.opts.Ignore
	}
	w, err := fswatch.New(s.path, s.changed, &wopts)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", s.path, err)
	}
	if err := w.Start(s.sess.Context()); err != nil {
		w.Stop()
		return fmt.Errorf("failed to watch %s: %w", s.path, err)
	}
	s.watcher = w
	s.active = true

	ctxlog.FromContext(ctx).Debug("Source watching.", "node", s.id, "path", s.path)
	return nil
}

// Stop ends watching.
func (s *Source) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.watcher.Stop()
	s.watcher = nil
	s.active = false
}

func (s *Source) changed(changes []checksum.Change) {
	if len(changes) == 0 {
		return
	}
	s.Invalidate(changes)
}

// Invalidate announces changes under the source. Dependents drop their
// results and recompute the named files on their next Ready.
func (s *Source) Invalidate(changes []checksum.Change) {
	if s.isFile {
		if err := s.link(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			ctxlog.FromContext(s.sess.Context()).Warn("Failed to relink source file.", "node", s.id, "error", err)
		}
	}
	s.emitInvalidate(changes)
}

// FindOwner claims file if it exists under the source.
func (s *Source) FindOwner(file string) Node {
	if s.isFile {
		if filepath.Clean(file) == filepath.Base(s.path) {
			return s
		}
		return nil
	}
	if fsutil.Exists(filepath.Join(s.path, file)) {
		return s
	}
	return nil
}
