package graph

import (
	"sync"

	"github.com/specialistvlad/gobblego/internal/builderr"
	"github.com/specialistvlad/gobblego/internal/checksum"
)

type emitter struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener
}

func (e *emitter) Subscribe(l Listener) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listeners == nil {
		e.listeners = make(map[int]Listener)
	}
	id := e.nextID
	e.nextID++
	e.listeners[id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.listeners, id)
			e.mu.Unlock()
		})
	}
}

func (e *emitter) subscribers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

// snapshot returns the listeners in subscription order.
func (e *emitter) snapshot() []Listener {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Listener, 0, len(e.listeners))
	for id := 0; id < e.nextID; id++ {
		if l, ok := e.listeners[id]; ok {
			out = append(out, l)
		}
	}
	return out
}

func (e *emitter) emitInvalidate(changes []checksum.Change) {
	for _, l := range e.snapshot() {
		if l.Invalidate != nil {
			l.Invalidate(changes)
		}
	}
}

func (e *emitter) emitInfo(info Info) {
	for _, l := range e.snapshot() {
		if l.Info != nil {
			l.Info(info)
		}
	}
}

func (e *emitter) emitError(err error) {
	if err == nil || builderr.IsAborted(err) {
		return
	}
	for _, l := range e.snapshot() {
		if l.Error != nil {
			l.Error(err)
		}
	}
}
