package hcl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
)

// traversalKey returns a canonical string for t, e.g. "var.version".
func traversalKey(t hcl.Traversal) string {
	return string(hclwrite.TokensForTraversal(t).Bytes())
}

// exprSet gathers the expressions of a definition so their variable
// references and function calls can be checked in one pass.
type exprSet struct {
	expressions []hcl.Expression
}

func (s *exprSet) add(exprs ...hcl.Expression) {
	for _, expr := range exprs {
		if expr != nil {
			s.expressions = append(s.expressions, expr)
		}
	}
}

// references returns the unique variable traversals, sorted by key.
func (s *exprSet) references() []hcl.Traversal {
	byKey := make(map[string]hcl.Traversal)
	for _, expr := range s.expressions {
		for _, t := range expr.Variables() {
			key := traversalKey(t)
			if _, ok := byKey[key]; !ok {
				byKey[key] = t
			}
		}
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]hcl.Traversal, 0, len(keys))
	for _, k := range keys {
		out = append(out, byKey[k])
	}
	return out
}

// functions returns the called function names, sorted, with the range of
// their first call.
func (s *exprSet) functions() ([]string, map[string]hcl.Range) {
	calls := make(map[string]hcl.Range)
	for _, expr := range s.expressions {
		if syntaxExpr, ok := expr.(hclsyntax.Expression); ok {
			walkForFunctions(syntaxExpr, calls)
		}
	}
	names := make([]string, 0, len(calls))
	for name := range calls {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, calls
}

// check reports every reference to a variable or function ectx does not
// define.
func (s *exprSet) check(ectx *hcl.EvalContext) hcl.Diagnostics {
	var diags hcl.Diagnostics

	for _, t := range s.references() {
		root := t.RootName()
		val, ok := ectx.Variables[root]
		if !ok {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Unknown variable",
				Detail:   fmt.Sprintf("There is no variable named %q. Available: %s.", root, strings.Join(variableNames(ectx), ", ")),
				Subject:  t.SourceRange().Ptr(),
			})
			continue
		}
		if root != "var" || len(t) < 2 {
			continue
		}
		attr, ok := t[1].(hcl.TraverseAttr)
		if !ok {
			continue
		}
		if !val.Type().IsObjectType() || !val.Type().HasAttribute(attr.Name) {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Undefined variable",
				Detail:   fmt.Sprintf("%s is referenced but was not passed to the build; set it with --var %s=VALUE.", traversalKey(t), attr.Name),
				Subject:  t.SourceRange().Ptr(),
			})
		}
	}

	names, calls := s.functions()
	for _, name := range names {
		if _, ok := ectx.Functions[name]; ok {
			continue
		}
		rng := calls[name]
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Call to unknown function",
			Detail:   fmt.Sprintf("There is no function named %q.", name),
			Subject:  &rng,
		})
	}
	return diags
}

func variableNames(ectx *hcl.EvalContext) []string {
	names := make([]string, 0, len(ectx.Variables))
	for name := range ectx.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// walkForFunctions recursively walks the AST, looking only for function calls.
func walkForFunctions(expr hclsyntax.Expression, calls map[string]hcl.Range) {
	if expr == nil {
		return
	}
	switch e := expr.(type) {
	case *hclsyntax.FunctionCallExpr:
		if _, seen := calls[e.Name]; !seen {
			calls[e.Name] = e.NameRange
		}
		for _, arg := range e.Args {
			walkForFunctions(arg, calls)
		}
	case *hclsyntax.BinaryOpExpr:
		walkForFunctions(e.LHS, calls)
		walkForFunctions(e.RHS, calls)
	case *hclsyntax.ConditionalExpr:
		walkForFunctions(e.Condition, calls)
		walkForFunctions(e.TrueResult, calls)
		walkForFunctions(e.FalseResult, calls)
	case *hclsyntax.UnaryOpExpr:
		walkForFunctions(e.Val, calls)
	case *hclsyntax.TemplateExpr:
		for _, part := range e.Parts {
			walkForFunctions(part, calls)
		}
	case *hclsyntax.TemplateWrapExpr:
		walkForFunctions(e.Wrapped, calls)
	case *hclsyntax.TupleConsExpr:
		for _, item := range e.Exprs {
			walkForFunctions(item, calls)
		}
	case *hclsyntax.ObjectConsExpr:
		for _, item := range e.Items {
			walkForFunctions(item.KeyExpr, calls)
			walkForFunctions(item.ValueExpr, calls)
		}
	case *hclsyntax.ObjectConsKeyExpr:
		walkForFunctions(e.Wrapped, calls)
	case *hclsyntax.ForExpr:
		walkForFunctions(e.CollExpr, calls)
		walkForFunctions(e.KeyExpr, calls)
		walkForFunctions(e.ValExpr, calls)
		walkForFunctions(e.CondExpr, calls)
	case *hclsyntax.IndexExpr:
		walkForFunctions(e.Collection, calls)
		walkForFunctions(e.Key, calls)
	case *hclsyntax.SplatExpr:
		walkForFunctions(e.Source, calls)
		walkForFunctions(e.Each, calls)
	case *hclsyntax.ParenthesesExpr:
		walkForFunctions(e.Expression, calls)
	}
}
