// Package pipeline turns a validated build definition into a graph of
// build nodes bound to one session.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/specialistvlad/gobblego/internal/builderr"
	"github.com/specialistvlad/gobblego/internal/config"
	"github.com/specialistvlad/gobblego/internal/ctxlog"
	"github.com/specialistvlad/gobblego/internal/dag"
	"github.com/specialistvlad/gobblego/internal/graph"
	"github.com/specialistvlad/gobblego/internal/registry"
	"github.com/specialistvlad/gobblego/internal/session"
)

// Options tune how definitions become nodes.
type Options struct {
	// Debounce applies to sources that do not set their own.
	Debounce time.Duration
	// Ignore holds base-name globs every source watcher skips.
	Ignore []string
}

// Pipeline is an assembled build graph.
type Pipeline struct {
	// Output is the node named by the definition's output block.
	Output graph.Node
	// Nodes maps every definition name to the node standing for it. A
	// disabled definition maps to the node that replaced it.
	Nodes map[string]graph.Node
	// Order lists definition names in topological order.
	Order []string

	model    *config.Model
	topology *dag.Graph
}

// Assemble validates model and creates its nodes on sess in topological
// order, so node ids follow data flow. Identical source paths share one
// node.
func Assemble(ctx context.Context, sess *session.Session, model *config.Model, reg *registry.Registry, opts Options) (*Pipeline, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Pipeline: Starting assembly.", "definitions", len(model.Nodes))

	g, err := model.Graph()
	if err != nil {
		return nil, err
	}
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, builderr.Wrap(builderr.InvalidConfig, err)
	}

	a := &assembler{
		sess:    sess,
		reg:     reg,
		opts:    opts,
		nodes:   make(map[string]graph.Node, len(order)),
		sources: make(map[string]graph.Node),
	}
	for _, name := range order {
		def := model.Node(name)
		n, err := a.node(ctx, def)
		if err != nil {
			return nil, fmt.Errorf("%s (%s): %w", def, def.DeclRange, err)
		}
		a.nodes[name] = n
	}

	p := &Pipeline{
		Output:   a.nodes[model.Output.Node],
		Nodes:    a.nodes,
		Order:    order,
		model:    model,
		topology: g,
	}
	logger.Debug("Pipeline: Assembly complete.", "output", p.Output.ID(), "sources", len(a.sources))
	return p, nil
}

type assembler struct {
	sess    *session.Session
	reg     *registry.Registry
	opts    Options
	nodes   map[string]graph.Node
	sources map[string]graph.Node
}

func (a *assembler) node(ctx context.Context, def *config.NodeDef) (graph.Node, error) {
	if !def.Enabled {
		return a.splice(ctx, def)
	}

	switch def.Kind {
	case config.KindSource:
		return a.source(ctx, def)

	case config.KindTransform:
		plugin, err := a.reg.Lookup(def.Plugin)
		if err != nil {
			return nil, err
		}
		return graph.NewTransform(a.sess, a.nodes[def.Input], plugin, graph.TransformOptions{
			Name:    def.Name,
			Accept:  def.Accept,
			Ext:     def.Ext,
			Options: registry.Options(def.Options),
		})

	case config.KindObserve:
		plugin, err := a.reg.Lookup(def.Plugin)
		if err != nil {
			return nil, err
		}
		return graph.NewObserver(a.sess, a.nodes[def.Input], plugin, graph.ObserverOptions{
			Name:    def.Name,
			Options: registry.Options(def.Options),
		})

	case config.KindMerge:
		inputs := make([]graph.Node, 0, len(def.Inputs))
		for _, in := range def.Inputs {
			inputs = append(inputs, a.nodes[in])
		}
		return graph.NewMerge(a.sess, def.Name, inputs...)
	}
	return nil, builderr.New(builderr.InvalidConfig, "unknown node kind %q", def.Kind)
}

// splice replaces a disabled definition with its (first) input.
func (a *assembler) splice(ctx context.Context, def *config.NodeDef) (graph.Node, error) {
	deps := def.Dependencies()
	if len(deps) == 0 {
		return nil, builderr.New(builderr.InvalidConfig, "a %s cannot be disabled", def.Kind)
	}
	ctxlog.FromContext(ctx).Debug("Pipeline: Node disabled, using its input instead.", "node", def.Name, "input", deps[0])
	return a.nodes[deps[0]], nil
}

func (a *assembler) source(ctx context.Context, def *config.NodeDef) (graph.Node, error) {
	abs, err := filepath.Abs(def.Path)
	if err != nil {
		return nil, err
	}
	if n, ok := a.sources[abs]; ok {
		ctxlog.FromContext(ctx).Debug("Pipeline: Reusing source for identical path.", "node", def.Name, "path", abs, "id", n.ID())
		return n, nil
	}

	debounce := a.opts.Debounce
	if def.Debounce != "" {
		debounce, err = time.ParseDuration(def.Debounce)
		if err != nil || debounce < 0 {
			return nil, builderr.New(builderr.InvalidConfig, "invalid debounce %q", def.Debounce)
		}
	}

	n, err := graph.NewSource(a.sess, abs, graph.SourceOptions{
		Name:     def.Name,
		Static:   def.Static,
		Debounce: debounce,
		Ignore:   a.opts.Ignore,
	})
	if err != nil {
		return nil, err
	}
	a.sources[abs] = n
	return n, nil
}

// Describe writes one line per definition in topological order: name, kind,
// node id, the names it reads from and the names reading from it.
func (p *Pipeline) Describe(w io.Writer) error {
	for _, name := range p.Order {
		def := p.model.Node(name)
		n := p.Nodes[name]

		line := fmt.Sprintf("%-16s %-10s %s", name, def.Kind, n.ID())
		if deps := def.Dependencies(); len(deps) > 0 {
			line += " <- " + strings.Join(deps, ", ")
		}
		readers, err := p.topology.Dependents(name)
		if err != nil {
			return err
		}
		if len(readers) > 0 {
			line += " -> " + strings.Join(readers, ", ")
		}
		if !def.Enabled {
			line += " (disabled)"
		}
		if name == p.model.Output.Node {
			line += " [output]"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
