package config

import (
	"fmt"

	"github.com/specialistvlad/gobblego/internal/builderr"
	"github.com/specialistvlad/gobblego/internal/dag"
)

// Kind is the kind of a node definition.
type Kind string

const (
	KindSource    Kind = "source"
	KindTransform Kind = "transform"
	KindObserve   Kind = "observe"
	KindMerge     Kind = "merge"
)

// Model is the unified representation of a build definition.
type Model struct {
	Nodes  []*NodeDef
	Output *Output
}

// NodeDef is one named node of the build graph.
type NodeDef struct {
	Kind Kind
	Name string

	// Source only.
	Path     string
	Static   bool
	Debounce string

	// Transform and observe.
	Input   string
	Plugin  string
	Options map[string]any
	// Per-file transforms only.
	Accept []string
	Ext    string

	// Merge only.
	Inputs []string

	// Enabled is false for nodes switched off by their definition; they are
	// replaced by their input.
	Enabled bool

	// DeclRange is where the node was declared, e.g. "site.hcl:12".
	DeclRange string
}

// Output names the node whose directory is the build result.
type Output struct {
	Node string
}

// Node returns the definition named name, or nil.
func (m *Model) Node(name string) *NodeDef {
	for _, n := range m.Nodes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// Dependencies returns the names of the nodes n reads from.
func (n *NodeDef) Dependencies() []string {
	switch n.Kind {
	case KindTransform, KindObserve:
		if n.Input == "" {
			return nil
		}
		return []string{n.Input}
	case KindMerge:
		return n.Inputs
	default:
		return nil
	}
}

// Graph validates the model and returns its dependency graph. Errors have
// code INVALID_CONFIG.
func (m *Model) Graph() (*dag.Graph, error) {
	if len(m.Nodes) == 0 {
		return nil, invalid("the build definition declares no nodes")
	}

	g := dag.New()
	for _, n := range m.Nodes {
		if err := n.validate(); err != nil {
			return nil, err
		}
		if g.Has(n.Name) {
			return nil, invalid("%s %q is declared more than once (%s)", n.Kind, n.Name, n.DeclRange)
		}
		g.AddNode(n.Name)
	}
	for _, n := range m.Nodes {
		for _, dep := range n.Dependencies() {
			if !g.Has(dep) {
				return nil, invalid("%s %q reads from unknown node %q (%s)", n.Kind, n.Name, dep, n.DeclRange)
			}
			if err := g.AddEdge(dep, n.Name); err != nil {
				return nil, builderr.Wrap(builderr.InvalidConfig, err)
			}
		}
	}
	if err := g.DetectCycles(); err != nil {
		return nil, builderr.Wrap(builderr.InvalidConfig, err)
	}

	if m.Output == nil || m.Output.Node == "" {
		return nil, invalid("the build definition has no output block")
	}
	if !g.Has(m.Output.Node) {
		return nil, invalid("output refers to unknown node %q", m.Output.Node)
	}
	return g, nil
}

func (n *NodeDef) validate() error {
	if n.Name == "" {
		return invalid("a %s block needs a name (%s)", n.Kind, n.DeclRange)
	}
	switch n.Kind {
	case KindSource:
		if n.Path == "" {
			return invalid("source %q needs a path (%s)", n.Name, n.DeclRange)
		}
	case KindTransform, KindObserve:
		if n.Input == "" || n.Plugin == "" {
			return invalid("%s %q needs an input and a plugin (%s)", n.Kind, n.Name, n.DeclRange)
		}
		if n.Kind == KindObserve && (n.Accept != nil || n.Ext != "") {
			return invalid("observe %q cannot set accept or ext (%s)", n.Name, n.DeclRange)
		}
	case KindMerge:
		if len(n.Inputs) == 0 {
			return invalid("merge %q needs at least one input (%s)", n.Name, n.DeclRange)
		}
	default:
		return invalid("unknown node kind %q (%s)", n.Kind, n.DeclRange)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return builderr.New(builderr.InvalidConfig, format, args...)
}

func (k Kind) String() string { return string(k) }

// String implements fmt.Stringer for log output.
func (n *NodeDef) String() string {
	return fmt.Sprintf("%s %q", n.Kind, n.Name)
}
