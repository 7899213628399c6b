package hcl

import (
	"github.com/hashicorp/hcl/v2"
)

// fileRoot decodes every top-level block of one file.
type fileRoot struct {
	Sources    []*sourceBlock    `hcl:"source,block"`
	Transforms []*transformBlock `hcl:"transform,block"`
	Observers  []*observeBlock   `hcl:"observe,block"`
	Merges     []*mergeBlock     `hcl:"merge,block"`
	Outputs    []*outputBlock    `hcl:"output,block"`
}

type sourceBlock struct {
	Name     string         `hcl:"name,label"`
	Path     hcl.Expression `hcl:"path"`
	Static   hcl.Expression `hcl:"static,optional"`
	Debounce hcl.Expression `hcl:"debounce,optional"`
	Enabled  hcl.Expression `hcl:"enabled,optional"`
}

// Expressions returns all expressions in the block.
func (b *sourceBlock) Expressions() []hcl.Expression {
	return []hcl.Expression{b.Path, b.Static, b.Debounce, b.Enabled}
}

type transformBlock struct {
	Name    string         `hcl:"name,label"`
	Input   hcl.Expression `hcl:"input"`
	Plugin  hcl.Expression `hcl:"plugin"`
	Options hcl.Expression `hcl:"options,optional"`
	Accept  hcl.Expression `hcl:"accept,optional"`
	Ext     hcl.Expression `hcl:"ext,optional"`
	Enabled hcl.Expression `hcl:"enabled,optional"`
}

// Expressions returns all expressions in the block.
func (b *transformBlock) Expressions() []hcl.Expression {
	return []hcl.Expression{b.Input, b.Plugin, b.Options, b.Accept, b.Ext, b.Enabled}
}

type observeBlock struct {
	Name    string         `hcl:"name,label"`
	Input   hcl.Expression `hcl:"input"`
	Plugin  hcl.Expression `hcl:"plugin"`
	Options hcl.Expression `hcl:"options,optional"`
	Enabled hcl.Expression `hcl:"enabled,optional"`
}

// Expressions returns all expressions in the block.
func (b *observeBlock) Expressions() []hcl.Expression {
	return []hcl.Expression{b.Input, b.Plugin, b.Options, b.Enabled}
}

type mergeBlock struct {
	Name    string         `hcl:"name,label"`
	Inputs  hcl.Expression `hcl:"inputs"`
	Enabled hcl.Expression `hcl:"enabled,optional"`
}

// Expressions returns all expressions in the block.
func (b *mergeBlock) Expressions() []hcl.Expression {
	return []hcl.Expression{b.Inputs, b.Enabled}
}

type outputBlock struct {
	Node hcl.Expression `hcl:"node"`
}

// Expressions returns all expressions in the block.
func (b *outputBlock) Expressions() []hcl.Expression {
	return []hcl.Expression{b.Node}
}

// expressioner is implemented by every block struct so its expressions can
// be checked before evaluation.
type expressioner interface {
	Expressions() []hcl.Expression
}
