package yamlcfg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/specialistvlad/gobblego/internal/builderr"
	"github.com/specialistvlad/gobblego/internal/config"
	"github.com/specialistvlad/gobblego/internal/ctxlog"
	"github.com/specialistvlad/gobblego/internal/fsutil"
	"gopkg.in/yaml.v3"
)

// Loader is the YAML implementation of config.Loader.
type Loader struct{}

// NewLoader creates a new YAML definition loader.
func NewLoader() *Loader {
	return &Loader{}
}

var _ config.Loader = (*Loader)(nil)

// Extensions implements config.Loader.
func (l *Loader) Extensions() []string {
	return []string{".yaml", ".yml"}
}

type definition struct {
	Nodes  []nodeEntry `yaml:"nodes"`
	Output string      `yaml:"output"`
}

type nodeEntry struct {
	Source    string         `yaml:"source"`
	Transform string         `yaml:"transform"`
	Observe   string         `yaml:"observe"`
	Merge     string         `yaml:"merge"`
	Path      string         `yaml:"path"`
	Static    bool           `yaml:"static"`
	Debounce  string         `yaml:"debounce"`
	Input     string         `yaml:"input"`
	Plugin    string         `yaml:"plugin"`
	Options   map[string]any `yaml:"options"`
	Accept    stringList     `yaml:"accept"`
	Ext       string         `yaml:"ext"`
	Inputs    stringList     `yaml:"inputs"`
	OnlyEnv   stringList     `yaml:"only_env"`
	ExceptEnv stringList     `yaml:"except_env"`

	line int
}

var nodeFields = []string{
	"source", "transform", "observe", "merge",
	"path", "static", "debounce",
	"input", "plugin", "options", "accept", "ext",
	"inputs", "only_env", "except_env",
}

// UnmarshalYAML records the entry's line and rejects unknown fields.
func (n *nodeEntry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: a node must be a mapping", value.Line)
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		key := value.Content[i]
		if !slices.Contains(nodeFields, key.Value) {
			return fmt.Errorf("line %d: unknown field %q", key.Line, key.Value)
		}
	}
	type plain nodeEntry
	if err := value.Decode((*plain)(n)); err != nil {
		return err
	}
	n.line = value.Line
	return nil
}

// stringList accepts a single string or a sequence of strings.
type stringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *stringList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*s = stringList{value.Value}
		return nil
	}
	out := []string{}
	if err := value.Decode(&out); err != nil {
		return err
	}
	*s = out
	return nil
}

// Load reads every .yaml and .yml file under paths into one model. Errors
// have code INVALID_CONFIG and mention the offending line.
func (l *Loader) Load(ctx context.Context, vars config.Vars, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("YAML loader started.", "path_count", len(paths))

	var files []string
	for _, path := range paths {
		found, err := fsutil.FindFilesByExtension(path, l.Extensions()...)
		if err != nil {
			return nil, builderr.Wrap(builderr.InvalidConfig, err)
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, builderr.New(builderr.InvalidConfig, "no .yaml files found in %v", paths)
	}

	model := &config.Model{}
	for _, file := range files {
		if err := l.loadFile(file, vars, model); err != nil {
			be := builderr.Wrap(builderr.InvalidConfig, err)
			be.File = file
			return nil, be
		}
	}

	logger.Debug("YAML loading complete.", "nodes", len(model.Nodes), "files", len(files))
	return model, nil
}

func (l *Loader) loadFile(file string, vars config.Vars, model *config.Model) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("reading definition: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing %s: %w", file, err)
	}
	if err := expand(&doc, vars); err != nil {
		return fmt.Errorf("parsing %s: %w", file, err)
	}

	var def definition
	if err := doc.Decode(&def); err != nil {
		return fmt.Errorf("parsing %s: %w", file, err)
	}

	env := vars["env"]
	for _, entry := range def.Nodes {
		node, err := entry.toNodeDef(file, env)
		if err != nil {
			return err
		}
		model.Nodes = append(model.Nodes, node)
	}
	if def.Output != "" {
		if model.Output != nil {
			return fmt.Errorf("%s: only one output is allowed", file)
		}
		model.Output = &config.Output{Node: def.Output}
	}
	return nil
}

func (n *nodeEntry) toNodeDef(file, env string) (*config.NodeDef, error) {
	def := &config.NodeDef{
		DeclRange: fmt.Sprintf("%s:%d", filepath.Base(file), n.line),
		Enabled:   n.enabled(env),
	}

	set := 0
	for kind, name := range map[config.Kind]string{
		config.KindSource:    n.Source,
		config.KindTransform: n.Transform,
		config.KindObserve:   n.Observe,
		config.KindMerge:     n.Merge,
	} {
		if name != "" {
			def.Kind, def.Name = kind, name
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("line %d: a node needs exactly one of source, transform, observe or merge", n.line)
	}

	switch def.Kind {
	case config.KindSource:
		def.Path = n.Path
		if def.Path != "" && !filepath.IsAbs(def.Path) {
			def.Path = filepath.Join(filepath.Dir(file), def.Path)
		}
		def.Static = n.Static
		def.Debounce = n.Debounce
	case config.KindTransform, config.KindObserve:
		def.Input = n.Input
		def.Plugin = n.Plugin
		def.Options = n.Options
		def.Accept = n.Accept
		def.Ext = n.Ext
	case config.KindMerge:
		def.Inputs = n.Inputs
	}
	return def, nil
}

func (n *nodeEntry) enabled(env string) bool {
	if len(n.OnlyEnv) > 0 && !slices.Contains(n.OnlyEnv, env) {
		return false
	}
	return !slices.Contains(n.ExceptEnv, env)
}

// expand replaces ${name} in every string scalar of the document.
func expand(node *yaml.Node, vars config.Vars) error {
	if node.Kind == yaml.ScalarNode && node.ShortTag() == "!!str" && strings.Contains(node.Value, "${") {
		var missing string
		node.Value = os.Expand(node.Value, func(name string) string {
			v, ok := vars[name]
			if !ok && missing == "" {
				missing = name
			}
			return v
		})
		if missing != "" {
			return fmt.Errorf("line %d: undefined variable %q", node.Line, missing)
		}
		return nil
	}
	for _, child := range node.Content {
		if err := expand(child, vars); err != nil {
			return err
		}
	}
	return nil
}
