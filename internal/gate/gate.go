// Package gate serializes transformation work across a whole build graph.
//
// Many nodes may become ready at the same time, but only one unit of work
// (a file transform, a directory transform or an observer call) runs at any
// moment. Units run in submission order. The queue advances on a fresh
// goroutine after each unit settles, so a long chain of units never grows
// the stack of the goroutine that finished the previous one.
package gate

import (
	"context"
	"fmt"
	"sync"

	"github.com/specialistvlad/gobblego/internal/builderr"
	"github.com/specialistvlad/gobblego/internal/metrics"
)

// Unit is one piece of serialized work. It must call done exactly once,
// possibly from another goroutine. Later calls are ignored.
type Unit func(done func(error))

type item struct {
	unit   Unit
	result chan error
}

// Gate is a FIFO queue that runs at most one Unit at a time.
type Gate struct {
	mu      sync.Mutex
	queue   []*item
	running bool
}

// New creates an idle Gate.
func New() *Gate {
	return &Gate{}
}

// Submit enqueues u and returns a channel that receives its result once.
// A unit that panics fails with the recovered value.
func (g *Gate) Submit(u Unit) <-chan error {
	it := &item{unit: u, result: make(chan error, 1)}

	g.mu.Lock()
	g.queue = append(g.queue, it)
	metrics.SetQueueDepth(len(g.queue))
	idle := !g.running
	g.mu.Unlock()

	if idle {
		go g.next()
	}
	return it.result
}

// Do runs fn through the gate and waits for it. If ctx is already done when
// fn's turn comes, fn is skipped and ErrAborted is returned.
func (g *Gate) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	ch := g.Submit(func(done func(error)) {
		if ctx.Err() != nil {
			done(builderr.ErrAborted)
			return
		}
		done(fn(ctx))
	})
	return <-ch
}

// Abort fails every queued unit with ErrAborted without running it. A unit
// that is already running is left to finish.
func (g *Gate) Abort() {
	g.mu.Lock()
	pending := g.queue
	g.queue = nil
	metrics.SetQueueDepth(0)
	g.mu.Unlock()

	for _, it := range pending {
		it.result <- builderr.ErrAborted
	}
}

// Len returns the number of units waiting to run.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue)
}

func (g *Gate) next() {
	g.mu.Lock()
	if g.running || len(g.queue) == 0 {
		g.mu.Unlock()
		return
	}
	it := g.queue[0]
	g.queue[0] = nil
	g.queue = g.queue[1:]
	metrics.SetQueueDepth(len(g.queue))
	g.running = true
	g.mu.Unlock()

	g.run(it)
}

func (g *Gate) run(it *item) {
	var once sync.Once
	done := func(err error) {
		once.Do(func() {
			it.result <- err

			g.mu.Lock()
			g.running = false
			g.mu.Unlock()

			go g.next()
		})
	}

	defer func() {
		if r := recover(); r != nil {
			done(fmt.Errorf("unit panicked: %v", r))
		}
	}()
	it.unit(done)
}
