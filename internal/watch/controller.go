// Package watch keeps a build graph's output fresh: it rebuilds the terminal
// node whenever an invalidation reaches it and reports each build's outcome.
package watch

import (
	"context"
	"reflect"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/specialistvlad/gobblego/internal/builderr"
	"github.com/specialistvlad/gobblego/internal/checksum"
	"github.com/specialistvlad/gobblego/internal/ctxlog"
	"github.com/specialistvlad/gobblego/internal/graph"
	"github.com/specialistvlad/gobblego/internal/metrics"
)

// Handlers receive the controller's events. Nil fields are skipped. They are
// called from the controller's goroutines and must not block for long.
type Handlers struct {
	BuildStart func()
	BuildEnd   func(dir string, took time.Duration)
	Info       func(info graph.Info)
	Error      func(err error)
}

// Controller rebuilds a node after every invalidation. At most one build
// runs at a time; invalidations that arrive before it has taken a result
// are folded into it.
type Controller struct {
	node     graph.Node
	handlers Handlers

	seen *lru.Cache[uint64, struct{}]

	mu        sync.Mutex
	ctx       context.Context
	cancel  context.CancelFunc
	pending bool
	running bool
	closed  bool
	lastErr error
	unsub   func()
	wg      sync.WaitGroup
}

// New returns a controller for node. Nothing happens until Start.
func New(node graph.Node, handlers Handlers) *Controller {
	seen, _ := lru.New[uint64, struct{}](256)
	return &Controller{
		node:     node,
		handlers: handlers,
		seen:     seen,
	}
}

// Start subscribes to the node, starts watching and schedules the first
// build.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return nil
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.unsub = c.node.Subscribe(graph.Listener{
		Invalidate: c.invalidated,
		Info:       c.info,
		Error:      c.report,
	})
	c.mu.Unlock()

	if err := c.node.Start(ctx); err != nil {
		c.Close()
		return err
	}
	ctxlog.FromContext(ctx).Debug("Watch controller started.", "node", c.node.ID())
	c.schedule()
	return nil
}

// Close stops watching and waits for a running build to settle. In-flight
// work is cancelled.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed || c.cancel == nil {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cancel()
	unsub := c.unsub
	c.unsub = nil
	c.mu.Unlock()

	unsub()
	c.node.Stop()
	c.wg.Wait()
}

func (c *Controller) invalidated(changes []checksum.Change) {
	c.mu.Lock()
	if c.pending || c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	metrics.Invalidated()
	info := graph.NewInfo(graph.BuildInvalidated, c.node.ID())
	info.Changes = changes
	c.info(info)
	c.schedule()
}

// schedule marks a build as pending and starts one on its own goroutine
// unless a build is already running, which then picks the mark up. A node
// reachable through several paths announces one change several times; they
// all land in the same build.
func (c *Controller) schedule() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.pending = true
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		c.build()
	}()
}

// build calls Ready until no invalidation arrived while it ran, then reports
// that last result once.
func (c *Controller) build() {
	start := time.Now()
	if c.handlers.BuildStart != nil {
		c.handlers.BuildStart()
	}

	var (
		ctx context.Context
		dir string
		err error
	)
	for {
		c.mu.Lock()
		c.pending = false
		ctx = c.ctx
		c.mu.Unlock()

		dir, err = c.node.Ready(ctx)

		c.mu.Lock()
		again := c.pending && !c.closed
		if !again {
			c.running = false
		}
		c.mu.Unlock()
		if !again {
			break
		}
	}

	aborted := builderr.IsAborted(err) || ctx.Err() != nil
	metrics.ObserveBuild("watch", metrics.Status(err, aborted), time.Since(start))
	if err != nil {
		if !aborted {
			c.report(err)
		}
		return
	}
	if c.handlers.BuildEnd != nil {
		c.handlers.BuildEnd(dir, time.Since(start))
	}
}

// info forwards each event once, however many paths it arrived through.
func (c *Controller) info(info graph.Info) {
	if ok, _ := c.seen.ContainsOrAdd(info.Seq, struct{}{}); ok {
		return
	}
	if c.handlers.Info != nil {
		c.handlers.Info(info)
	}
}

// report forwards err unless it is an abort or was already reported; a
// failed node both emits and returns the same error.
func (c *Controller) report(err error) {
	if err == nil || builderr.IsAborted(err) {
		return
	}
	c.mu.Lock()
	if sameError(c.lastErr, err) {
		c.mu.Unlock()
		return
	}
	c.lastErr = err
	c.mu.Unlock()

	if c.handlers.Error != nil {
		c.handlers.Error(err)
	}
}

func sameError(a, b error) bool {
	if a == nil || b == nil {
		return false
	}
	if !reflect.TypeOf(a).Comparable() || !reflect.TypeOf(b).Comparable() {
		return false
	}
	return a == b
}
