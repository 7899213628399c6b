// Package session owns the scratch space for one build or watch run: the
// root directory under which every node keeps its generation directories,
// the node id sequence and the execution gate shared by all nodes.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/specialistvlad/gobblego/internal/builderr"
	"github.com/specialistvlad/gobblego/internal/ctxlog"
	"github.com/specialistvlad/gobblego/internal/gate"
)

// CacheDirName is the per-node directory that survives generation cleanup.
const CacheDirName = ".cache"

// Session is an explicit handle passed to every node of a graph. Only one
// run may be active on a handle at a time.
type Session struct {
	id   string
	root string
	gate *gate.Gate
	seq  atomic.Int64

	mu     sync.Mutex
	active bool
	ctx    context.Context
	cancel context.CancelFunc
}

// New returns an inactive session rooted at root.
func New(root string) *Session {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	return &Session{
		id:   uuid.NewString(),
		root: abs,
		gate: gate.New(),
		ctx:  context.Background(),
	}
}

// ID returns the unique id of this handle.
func (s *Session) ID() string { return s.id }

// Root returns the absolute scratch directory.
func (s *Session) Root() string { return s.root }

// Gate returns the execution gate shared by the session's nodes.
func (s *Session) Gate() *gate.Gate { return s.gate }

// Begin activates the session and creates its root directory. The returned
// error has code SESSION_ACTIVE if the session is already running.
func (s *Session) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return builderr.New(builderr.SessionActive, "a build session is already active in %s", s.root)
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("failed to create session root: %w", err)
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.active = true

	ctxlog.FromContext(ctx).Debug("Session started.", "session", s.id, "root", s.root)
	return nil
}

// Context returns the session context. It is cancelled by End.
func (s *Session) Context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// Active reports whether Begin has been called without a matching End.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// End cancels outstanding work, drops queued units and wipes the root.
func (s *Session) End() error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	s.active = false
	s.cancel()
	ctx := s.ctx
	s.mu.Unlock()

	s.gate.Abort()
	ctxlog.FromContext(ctx).Debug("Session ended.", "session", s.id, "root", s.root)
	return os.RemoveAll(s.root)
}

// NextID returns a new node id of the form "NN-name", unique on this handle.
func (s *Session) NextID(name string) string {
	n := s.seq.Add(1)
	if name == "" {
		return pad(n)
	}
	return pad(n) + "-" + name
}

func pad(n int64) string {
	return fmt.Sprintf("%02d", n)
}

// NodeDir is the directory holding all generations of node id.
func (s *Session) NodeDir(id string) string {
	return filepath.Join(s.root, id)
}

// GenerationDir is the output directory for generation n of node id.
func (s *Session) GenerationDir(id string, n int) string {
	return filepath.Join(s.root, id, strconv.Itoa(n))
}

// CacheDir is the persistent per-node cache directory.
func (s *Session) CacheDir(id string) string {
	return filepath.Join(s.root, id, CacheDirName)
}

// Cleanup removes every generation of node id numbered below keep. The cache
// directory and anything not named by a number is left alone.
func (s *Session) Cleanup(id string, keep int) error {
	entries, err := os.ReadDir(s.NodeDir(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		n, err := strconv.Atoi(entry.Name())
		if err != nil || n >= keep {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.NodeDir(id), entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Clean empties dir if it exists. Tasks use it to reset a scratch root left
// over from an earlier process.
func Clean(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clean %s: %w", dir, err)
	}
	return nil
}
