package graph

import (
	"context"
	"os"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/specialistvlad/gobblego/internal/builderr"
	"github.com/specialistvlad/gobblego/internal/checksum"
	"github.com/specialistvlad/gobblego/internal/ctxlog"
	"github.com/specialistvlad/gobblego/internal/session"
)

var tracer = otel.Tracer("github.com/specialistvlad/gobblego/internal/graph")

// base carries the lifecycle shared by every dependent node: identity,
// the readiness memo, generation numbering and upstream subscriptions.
type base struct {
	emitter

	id     string
	kind   Kind
	sess   *session.Session
	inputs []Node

	memo memo
	gen  atomic.Int64

	// compute produces the node's output directory.
	compute func(ctx context.Context) (string, error)
	// onInputInvalidate records the changes of inputs[i] before the memo is
	// dropped.
	onInputInvalidate func(i int, changes []checksum.Change)

	mu     sync.Mutex
	active bool
	unsubs []func()
}

func newBase(sess *session.Session, kind Kind, name string, inputs ...Node) base {
	return base{
		id:     sess.NextID(name),
		kind:   kind,
		sess:   sess,
		inputs: inputs,
	}
}

func (b *base) ID() string     { return b.id }
func (b *base) Kind() Kind     { return b.kind }
func (b *base) Inputs() []Node { return b.inputs }

func (b *base) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// Ready returns the memoized output directory, starting a computation on the
// session context if none is pending.
func (b *base) Ready(ctx context.Context) (string, error) {
	c := b.memo.get(b.sess.Context(), b.traced)
	return c.wait(ctx)
}

func (b *base) traced(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, b.kind.String(), trace.WithAttributes(
		attribute.String("gobble.node", b.id),
	))
	defer span.End()

	dir, err := b.compute(ctx)
	if err != nil && !builderr.IsAborted(err) && ctx.Err() == nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return dir, err
}

// Start subscribes to every input and starts it. Calling Start on an active
// node is a no-op.
func (b *base) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.active {
		b.mu.Unlock()
		return nil
	}
	b.active = true
	b.mu.Unlock()

	ctxlog.FromContext(ctx).Debug("Node started.", "node", b.id, "kind", b.kind.String())

	unsubs := make([]func(), 0, len(b.inputs))
	for i, in := range b.inputs {
		i := i
		unsubs = append(unsubs, in.Subscribe(Listener{
			Invalidate: func(changes []checksum.Change) { b.inputInvalidated(i, changes) },
			Info:       b.emitInfo,
			Error:      b.emitError,
		}))
	}
	b.mu.Lock()
	b.unsubs = unsubs
	b.mu.Unlock()

	for _, in := range b.inputs {
		if err := in.Start(ctx); err != nil {
			b.Stop()
			return err
		}
	}
	return nil
}

// Stop unsubscribes from the inputs and stops each input nobody else listens
// to any more.
func (b *base) Stop() {
	b.mu.Lock()
	if !b.active {
		b.mu.Unlock()
		return
	}
	b.active = false
	unsubs := b.unsubs
	b.unsubs = nil
	b.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	for _, in := range b.inputs {
		if in.subscribers() == 0 {
			in.Stop()
		}
	}
}

func (b *base) inputInvalidated(i int, changes []checksum.Change) {
	if b.onInputInvalidate != nil {
		b.onInputInvalidate(i, changes)
	}
	b.memo.invalidate()
	b.emitInvalidate(changes)
}

// nextGeneration allocates a fresh, empty generation directory.
func (b *base) nextGeneration() (int, string, error) {
	n := int(b.gen.Add(1))
	dir := b.sess.GenerationDir(b.id, n)
	if err := os.RemoveAll(dir); err != nil {
		return 0, "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, "", err
	}
	return n, dir, nil
}

// settle finishes generation n: on success older generations are removed, on
// failure the generation itself is.
func (b *base) settle(ctx context.Context, n int, dir string, err error) {
	if err != nil || ctx.Err() != nil {
		_ = os.RemoveAll(dir)
		return
	}
	if cerr := b.sess.Cleanup(b.id, n); cerr != nil {
		ctxlog.FromContext(ctx).Warn("Failed to remove old generations.", "node", b.id, "error", cerr)
	}
}

// fail wraps a plugin error with this node's context and emits it. Errors
// from inputs and aborts are returned untouched.
func (b *base) fail(code builderr.Code, err error, inDir, outDir, file string) error {
	if builderr.IsAborted(err) {
		return err
	}
	loc := builderr.ExtractLocation(err)
	be := &builderr.Error{
		Code:      code,
		Message:   failureMessage(code),
		NodeID:    b.id,
		InputDir:  inDir,
		OutputDir: outDir,
		File:      file,
		Line:      loc.Line,
		Column:    loc.Column,
		Err:       err,
	}
	if be.File == "" {
		be.File = loc.File
	}
	if be.File != "" && len(b.inputs) == 1 {
		if owner := b.inputs[0].FindOwner(be.File); owner != nil {
			be.Creator = owner.ID()
		}
	}
	b.emitError(be)
	return be
}

func failureMessage(code builderr.Code) string {
	if code == builderr.ObservationFailed {
		return "observation failed"
	}
	return "transformation failed"
}

// aborted turns a cancelled context into the aborted sentinel.
func aborted(ctx context.Context) error {
	if ctx.Err() != nil {
		return builderr.ErrAborted
	}
	return nil
}
