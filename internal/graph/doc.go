// Package graph implements the build graph: the nodes that turn source
// directories into output directories, and the protocol that keeps their
// outputs fresh while files change.
//
// # Node variants
//
// The set of variants is closed:
//
//   - Source wraps a directory (used in place) or a single file (linked into
//     a generation directory). It watches its path and emits invalidations.
//   - Transform applies a plugin to its input's output. Per-file plugins run
//     once per accepted file and reuse cached results for untouched files;
//     directory plugins receive the whole input and a fresh output directory.
//   - Observer hands its input's output to a plugin for side effects and
//     resolves to that same directory.
//   - Merge overlays the outputs of several inputs, later inputs winning.
//
// # Readiness
//
// Ready is memoized per node. The memo is an explicit state holder:
//
//	Empty ──Ready──▶ Pending(cancel) ──settle──▶ Resolved(dir) | Failed(err)
//	  ▲                    │                          │
//	  └────invalidate──────┴──────────────────────────┘
//
// Concurrent callers share one pending computation. Invalidation cancels the
// computation's context; when it settles it reports builderr.ErrAborted,
// which consumers drop silently, and the next Ready starts afresh. A failed
// computation stays failed until the next invalidation.
//
// # Events
//
// Each node has a callback registry for three message kinds: invalidate
// (with the change set), info (progress and timing) and error. Dependents
// subscribe to their inputs in Start and forward all three upward, so the
// terminal node's subscribers see everything.
//
// # Scratch space
//
// Every node writes only below <session-root>/<node-id>/. Each computation
// gets a new numbered generation directory; older generations are removed
// once a newer one succeeds. Per-file transforms also keep a .cache
// directory holding their results across generations.
package graph
