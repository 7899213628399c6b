package graph

import (
	"context"
	"sync"

	"github.com/specialistvlad/gobblego/internal/builderr"
)

// computation is one Pending readiness computation; once done is closed it is
// Resolved (dir) or Failed (err).
type computation struct {
	cancel context.CancelFunc
	done   chan struct{}
	dir    string
	err    error
}

func (c *computation) wait(ctx context.Context) (string, error) {
	select {
	case <-c.done:
		return c.dir, c.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// memo holds at most one computation. A nil current computation is Empty.
type memo struct {
	mu  sync.Mutex
	cur *computation
}

// get returns the current computation, starting one with fn if there is
// none. fn runs on its own goroutine with a context that invalidate cancels.
func (m *memo) get(parent context.Context, fn func(ctx context.Context) (string, error)) *computation {
	m.mu.Lock()
	if m.cur != nil {
		c := m.cur
		m.mu.Unlock()
		return c
	}
	ctx, cancel := context.WithCancel(parent)
	c := &computation{cancel: cancel, done: make(chan struct{})}
	m.cur = c
	m.mu.Unlock()

	go func() {
		dir, err := fn(ctx)
		if ctx.Err() != nil {
			// Whatever happened after an abort is not the user's concern.
			dir, err = "", builderr.ErrAborted
		}
		c.dir, c.err = dir, err

		m.mu.Lock()
		if m.cur == c && builderr.IsAborted(err) {
			m.cur = nil
		}
		m.mu.Unlock()
		close(c.done)
	}()
	return c
}

// invalidate cancels and forgets the current computation.
func (m *memo) invalidate() {
	m.mu.Lock()
	c := m.cur
	m.cur = nil
	m.mu.Unlock()

	if c != nil {
		c.cancel()
	}
}
