package hcl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/gobblego/internal/builderr"
	"github.com/specialistvlad/gobblego/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeHCL(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const site = `
source "src" {
  path     = "src"
  debounce = "50ms"
}

transform "scripts" {
  input   = "src"
  plugin  = "replace"
  accept  = [".js", ".ts"]
  ext     = ".js"
  options = {
    pattern = "__VERSION__"
    with    = upper(var.version)
    level   = 9
    extra   = ["a", "b"]
  }
}

observe "lint" {
  input   = "scripts"
  plugin  = "print"
  enabled = env != "production"
}

merge "site" {
  inputs = ["src", "scripts"]
}

output {
  node = "site"
}
`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeHCL(t, dir, "site.hcl", site)

	model, err := NewLoader().Load(context.Background(), config.Vars{"env": "production", "version": "v1"}, dir)
	require.NoError(t, err)
	require.Len(t, model.Nodes, 4)

	src := model.Nodes[0]
	assert.Equal(t, config.KindSource, src.Kind)
	assert.Equal(t, filepath.Join(dir, "src"), src.Path)
	assert.Equal(t, "50ms", src.Debounce)
	assert.False(t, src.Static)
	assert.True(t, src.Enabled)
	assert.Equal(t, "site.hcl:3", src.DeclRange)

	scripts := model.Nodes[1]
	assert.Equal(t, "scripts", scripts.Name)
	assert.Equal(t, "src", scripts.Input)
	assert.Equal(t, "replace", scripts.Plugin)
	assert.Equal(t, []string{".js", ".ts"}, scripts.Accept)
	assert.Equal(t, ".js", scripts.Ext)
	assert.Equal(t, map[string]any{
		"pattern": "__VERSION__",
		"with":    "V1",
		"level":   float64(9),
		"extra":   []any{"a", "b"},
	}, scripts.Options)

	lint := model.Nodes[2]
	assert.Equal(t, config.KindObserve, lint.Kind)
	assert.False(t, lint.Enabled)

	merge := model.Nodes[3]
	assert.Equal(t, []string{"src", "scripts"}, merge.Inputs)

	require.NotNil(t, model.Output)
	assert.Equal(t, "site", model.Output.Node)

	_, err = model.Graph()
	assert.NoError(t, err)
}

func TestLoadKeepsDeclarationOrderAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeHCL(t, dir, "a.hcl", `
merge "all" {
  inputs = ["b"]
}
source "a" {
  path = "/abs/a"
  static = true
}
`)
	writeHCL(t, dir, "b.hcl", `
source "b" {
  path = "b"
}
output {
  node = "all"
}
`)

	model, err := NewLoader().Load(context.Background(), config.Vars{"env": "dev"}, dir)
	require.NoError(t, err)

	var names []string
	for _, n := range model.Nodes {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"all", "a", "b"}, names)
	assert.Equal(t, "/abs/a", model.Nodes[1].Path)
	assert.True(t, model.Nodes[1].Static)
}

func TestLoadSingleStringAccept(t *testing.T) {
	dir := t.TempDir()
	file := writeHCL(t, dir, "one.hcl", `
source "src" {
  path = "src"
}
transform "t" {
  input  = "src"
  plugin = "uppercase"
  accept = "*.txt"
}
output {
  node = "t"
}
`)
	model, err := NewLoader().Load(context.Background(), config.Vars{"env": "dev"}, file)
	require.NoError(t, err)
	assert.Equal(t, []string{"*.txt"}, model.Node("t").Accept)
}

func TestLoadErrors(t *testing.T) {
	testCases := []struct {
		name     string
		content  string
		wantLine int
	}{
		{
			name:    "syntax error",
			content: "source \"a\" {\n  path = \n}\n",
		},
		{
			name:     "unknown block",
			content:  "sauce \"a\" {\n}\n",
			wantLine: 1,
		},
		{
			name:     "undefined var",
			content:  "source \"a\" {\n  path = \"src\"\n}\nsource \"b\" {\n  path = var.missing\n}\n",
			wantLine: 5,
		},
		{
			name:     "unknown function",
			content:  "source \"a\" {\n  path = nope(\"x\")\n}\n",
			wantLine: 2,
		},
		{
			name:     "options not an object",
			content:  "source \"a\" {\n  path = \"a\"\n}\ntransform \"t\" {\n  input = \"a\"\n  plugin = \"p\"\n  options = \"x\"\n}\n",
			wantLine: 7,
		},
		{
			name:     "duplicate output",
			content:  "output {\n  node = \"a\"\n}\noutput {\n  node = \"b\"\n}\n",
			wantLine: 5,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeHCL(t, dir, "bad.hcl", tc.content)

			_, err := NewLoader().Load(context.Background(), config.Vars{"env": "dev"}, dir)
			require.Error(t, err)
			assert.Equal(t, builderr.InvalidConfig, builderr.CodeOf(err))
			if tc.wantLine > 0 {
				assert.Equal(t, tc.wantLine, builderr.ExtractLocation(err).Line)
			}
		})
	}
}

func TestLoadNoFiles(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), config.Vars{"env": "dev"}, filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, builderr.InvalidConfig, builderr.CodeOf(err))
}

func parseExpr(t *testing.T, src string) hcl.Expression {
	t.Helper()
	expr, diags := hclsyntax.ParseExpression([]byte(src), "test.hcl", hcl.Pos{Line: 1, Column: 1})
	require.False(t, diags.HasErrors(), diags.Error())
	return expr
}

func TestExprSet(t *testing.T) {
	var s exprSet
	s.add(
		parseExpr(t, `upper("hello")`),
		parseExpr(t, `var.foo`),
		parseExpr(t, `lower(var.bar)`),
		parseExpr(t, `var.foo`),
		nil,
	)

	var keys []string
	for _, ref := range s.references() {
		keys = append(keys, traversalKey(ref))
	}
	assert.Equal(t, []string{"var.bar", "var.foo"}, keys)

	names, _ := s.functions()
	assert.Equal(t, []string{"lower", "upper"}, names)

	diags := s.check(evalContext(config.Vars{"env": "dev", "foo": "x"}))
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Detail, "var.bar")
}
