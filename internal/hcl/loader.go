package hcl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/gobblego/internal/builderr"
	"github.com/specialistvlad/gobblego/internal/config"
	"github.com/specialistvlad/gobblego/internal/ctxlog"
)

// Loader is the HCL implementation of config.Loader.
type Loader struct{}

// NewLoader creates a new HCL definition loader.
func NewLoader() *Loader {
	return &Loader{}
}

var _ config.Loader = (*Loader)(nil)

// Extensions implements config.Loader.
func (l *Loader) Extensions() []string {
	return []string{".hcl"}
}

// declared is a node definition together with where it was declared, so
// nodes keep declaration order across block kinds.
type declared struct {
	def  *config.NodeDef
	file int
	pos  hcl.Pos
}

// Load parses every .hcl file under paths and translates the blocks into a
// single model. Errors have code INVALID_CONFIG; the model is not validated
// beyond what the syntax requires.
func (l *Loader) Load(ctx context.Context, vars config.Vars, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	hclFiles, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, builderr.Wrap(builderr.InvalidConfig, err)
	}
	if len(hclFiles) == 0 {
		return nil, builderr.New(builderr.InvalidConfig, "no .hcl files found in %v", paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	parser := hclparse.NewParser()
	ectx := evalContext(vars)
	model := &config.Model{}
	var nodes []declared

	for i, file := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, builderr.Wrap(builderr.InvalidConfig, fmt.Errorf("failed to parse HCL file %s: %w", file, diags))
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, builderr.Wrap(builderr.InvalidConfig, fmt.Errorf("failed to decode HCL file %s: %w", file, diags))
		}

		var exprs exprSet
		for _, b := range root.blocks() {
			exprs.add(b.Expressions()...)
		}
		if diags := exprs.check(ectx); diags.HasErrors() {
			return nil, builderr.Wrap(builderr.InvalidConfig, fmt.Errorf("invalid expressions in %s: %w", file, diags))
		}

		e := &evaluator{ctx: ctx, ectx: ectx}
		for _, b := range root.Sources {
			nodes = append(nodes, declared{e.source(b), i, b.Path.Range().Start})
		}
		for _, b := range root.Transforms {
			nodes = append(nodes, declared{e.transform(b), i, b.Input.Range().Start})
		}
		for _, b := range root.Observers {
			nodes = append(nodes, declared{e.observe(b), i, b.Input.Range().Start})
		}
		for _, b := range root.Merges {
			nodes = append(nodes, declared{e.merge(b), i, b.Inputs.Range().Start})
		}
		for _, b := range root.Outputs {
			if model.Output != nil {
				rng := b.Node.Range()
				return nil, builderr.Wrap(builderr.InvalidConfig, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  `Duplicate "output" block`,
					Detail:   `Only one "output" block is allowed.`,
					Subject:  &rng,
				})
			}
			model.Output = &config.Output{Node: e.string(b.Node, "node")}
		}
		if e.diags.HasErrors() {
			return nil, builderr.Wrap(builderr.InvalidConfig, fmt.Errorf("failed to evaluate HCL file %s: %w", file, e.diags))
		}
	}

	sort.SliceStable(nodes, func(a, b int) bool {
		if nodes[a].file != nodes[b].file {
			return nodes[a].file < nodes[b].file
		}
		return nodes[a].pos.Byte < nodes[b].pos.Byte
	})
	for _, n := range nodes {
		model.Nodes = append(model.Nodes, n.def)
	}

	logger.Debug("HCL loading complete.", "nodes", len(model.Nodes), "files", len(hclFiles))
	return model, nil
}

func (r *fileRoot) blocks() []expressioner {
	var out []expressioner
	for _, b := range r.Sources {
		out = append(out, b)
	}
	for _, b := range r.Transforms {
		out = append(out, b)
	}
	for _, b := range r.Observers {
		out = append(out, b)
	}
	for _, b := range r.Merges {
		out = append(out, b)
	}
	for _, b := range r.Outputs {
		out = append(out, b)
	}
	return out
}

func (e *evaluator) source(b *sourceBlock) *config.NodeDef {
	return &config.NodeDef{
		Kind:      config.KindSource,
		Name:      b.Name,
		Path:      resolvePath(b.Path, e.string(b.Path, "path")),
		Static:    e.bool(b.Static, "static", false),
		Debounce:  e.string(b.Debounce, "debounce"),
		Enabled:   e.bool(b.Enabled, "enabled", true),
		DeclRange: declRange(b.Path),
	}
}

func (e *evaluator) transform(b *transformBlock) *config.NodeDef {
	return &config.NodeDef{
		Kind:      config.KindTransform,
		Name:      b.Name,
		Input:     e.string(b.Input, "input"),
		Plugin:    e.string(b.Plugin, "plugin"),
		Options:   e.object(b.Options, "options"),
		Accept:    e.strings(b.Accept, "accept"),
		Ext:       e.string(b.Ext, "ext"),
		Enabled:   e.bool(b.Enabled, "enabled", true),
		DeclRange: declRange(b.Input),
	}
}

func (e *evaluator) observe(b *observeBlock) *config.NodeDef {
	return &config.NodeDef{
		Kind:      config.KindObserve,
		Name:      b.Name,
		Input:     e.string(b.Input, "input"),
		Plugin:    e.string(b.Plugin, "plugin"),
		Options:   e.object(b.Options, "options"),
		Enabled:   e.bool(b.Enabled, "enabled", true),
		DeclRange: declRange(b.Input),
	}
}

func (e *evaluator) merge(b *mergeBlock) *config.NodeDef {
	return &config.NodeDef{
		Kind:      config.KindMerge,
		Name:      b.Name,
		Inputs:    e.strings(b.Inputs, "inputs"),
		Enabled:   e.bool(b.Enabled, "enabled", true),
		DeclRange: declRange(b.Inputs),
	}
}

// resolvePath makes a relative source path relative to the file that
// declares it.
func resolvePath(expr hcl.Expression, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(expr.Range().Filename), path)
}

func declRange(expr hcl.Expression) string {
	rng := expr.Range()
	return fmt.Sprintf("%s:%d", filepath.Base(rng.Filename), rng.Start.Line)
}

// findAllHCLFiles walks all given paths and returns a flat list of all .hcl
// files found, in lexical order per directory.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue // It's not an error if a configured path doesn't exist.
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if info.IsDir() {
			err := filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && filepath.Ext(p) == ".hcl" {
					if _, wasSeen := seen[p]; !wasSeen {
						allFiles = append(allFiles, p)
						seen[p] = struct{}{}
					}
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		} else if filepath.Ext(path) == ".hcl" {
			if _, wasSeen := seen[path]; !wasSeen {
				allFiles = append(allFiles, path)
				seen[path] = struct{}{}
			}
		}
	}
	return allFiles, nil
}
