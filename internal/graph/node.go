package graph

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/gobblego/internal/checksum"
)

// Kind identifies a node variant.
type Kind int

const (
	KindSource Kind = iota + 1
	KindTransform
	KindObserver
	KindMerge
)

func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindTransform:
		return "transform"
	case KindObserver:
		return "observe"
	case KindMerge:
		return "merge"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Node is a unit of the build graph.
type Node interface {
	ID() string
	Kind() Kind
	// Inputs returns the upstream nodes, in merge order.
	Inputs() []Node

	// Ready returns the node's output directory, computing it if needed. ctx
	// bounds only the wait; the computation itself belongs to the session.
	Ready(ctx context.Context) (string, error)
	// Start activates watching for this node and everything upstream.
	Start(ctx context.Context) error
	// Stop undoes Start. Inputs still used by another dependent keep running.
	Stop()
	Active() bool

	// FindOwner returns the node that produced file, a path relative to this
	// node's output, or nil if no node claims it.
	FindOwner(file string) Node

	// Subscribe registers l and returns a function that removes it.
	Subscribe(l Listener) (unsubscribe func())

	subscribers() int
}

// Listener receives a node's events. Nil fields are skipped. Callbacks run
// synchronously on the emitting goroutine and must not block.
type Listener struct {
	Invalidate func(changes []checksum.Change)
	Info       func(info Info)
	Error      func(err error)
}

// InfoCode names an info event.
type InfoCode string

const (
	BuildStart               InfoCode = "BUILD_START"
	BuildInvalidated         InfoCode = "BUILD_INVALIDATED"
	BuildComplete            InfoCode = "BUILD_COMPLETE"
	TransformStart           InfoCode = "TRANSFORM_START"
	TransformComplete        InfoCode = "TRANSFORM_COMPLETE"
	MergeStart               InfoCode = "MERGE_START"
	MergeComplete            InfoCode = "MERGE_COMPLETE"
	SourcemapProcessStart    InfoCode = "SOURCEMAP_PROCESS_START"
	SourcemapProcessComplete InfoCode = "SOURCEMAP_PROCESS_COMPLETE"
	PluginLog                InfoCode = "PLUGIN_LOG"
)

var infoSeq atomic.Uint64

// Info is a progress or timing report. Seq is unique per emitted event, so a
// consumer reached through several paths can drop repeats.
type Info struct {
	Seq      uint64            `json:"seq"`
	Code     InfoCode          `json:"code"`
	NodeID   string            `json:"id,omitempty"`
	Message  string            `json:"message,omitempty"`
	Duration time.Duration     `json:"duration,omitempty"`
	Progress bool              `json:"progressIndicator,omitempty"`
	Changes  []checksum.Change `json:"changes,omitempty"`
	Watch    bool              `json:"watch,omitempty"`
}

// NewInfo returns an Info with a fresh sequence number.
func NewInfo(code InfoCode, nodeID string) Info {
	return Info{Seq: infoSeq.Add(1), Code: code, NodeID: nodeID}
}
