package hcl

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/specialistvlad/gobblego/internal/config"
	"github.com/specialistvlad/gobblego/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// functions are callable from every expression.
var functions = map[string]function.Function{
	"coalesce":  stdlib.CoalesceFunc,
	"concat":    stdlib.ConcatFunc,
	"format":    stdlib.FormatFunc,
	"join":      stdlib.JoinFunc,
	"lower":     stdlib.LowerFunc,
	"replace":   stdlib.ReplaceFunc,
	"split":     stdlib.SplitFunc,
	"trimspace": stdlib.TrimSpaceFunc,
	"upper":     stdlib.UpperFunc,
}

// evalContext exposes vars to expressions: "env" at the top level and every
// other variable under "var".
func evalContext(vars config.Vars) *hcl.EvalContext {
	others := make(map[string]cty.Value, len(vars))
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == "env" {
			continue
		}
		others[k] = cty.StringVal(vars[k])
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.StringVal(vars["env"]),
			"var": cty.ObjectVal(others),
		},
		Functions: functions,
	}
}

// isExprDefined checks if an HCL expression was actually present in the
// source. The decoder populates omitted optional attributes with zero-width
// placeholder expressions, so a nil check is not enough.
func isExprDefined(ctx context.Context, expr hcl.Expression, attrName string) bool {
	if expr == nil {
		return false
	}
	rng := expr.Range()
	isDefined := rng.End.Byte > rng.Start.Byte

	ctxlog.FromContext(ctx).Debug("Checking if HCL attribute was explicitly defined.",
		"attribute", attrName,
		"hcl_range", rng.String(),
		"is_defined", isDefined,
	)
	return isDefined
}

// evaluator decodes expressions against one context, collecting diagnostics
// so a block reports all of its problems at once.
type evaluator struct {
	ctx   context.Context
	ectx  *hcl.EvalContext
	diags hcl.Diagnostics
}

func (e *evaluator) string(expr hcl.Expression, attr string) string {
	var s string
	if !isExprDefined(e.ctx, expr, attr) {
		return s
	}
	e.diags = append(e.diags, gohcl.DecodeExpression(expr, e.ectx, &s)...)
	return s
}

func (e *evaluator) bool(expr hcl.Expression, attr string, def bool) bool {
	if !isExprDefined(e.ctx, expr, attr) {
		return def
	}
	b := def
	e.diags = append(e.diags, gohcl.DecodeExpression(expr, e.ectx, &b)...)
	return b
}

// strings accepts either a single string or a list of strings. A missing
// attribute yields nil, an explicit empty list a non-nil empty slice.
func (e *evaluator) strings(expr hcl.Expression, attr string) []string {
	if !isExprDefined(e.ctx, expr, attr) {
		return nil
	}
	val, diags := expr.Value(e.ectx)
	e.diags = append(e.diags, diags...)
	if diags.HasErrors() {
		return nil
	}
	if val.Type() == cty.String {
		if val.IsNull() {
			return nil
		}
		return []string{val.AsString()}
	}
	out := []string{}
	e.diags = append(e.diags, gohcl.DecodeExpression(expr, e.ectx, &out)...)
	return out
}

func (e *evaluator) object(expr hcl.Expression, attr string) map[string]any {
	if !isExprDefined(e.ctx, expr, attr) {
		return nil
	}
	val, diags := expr.Value(e.ectx)
	e.diags = append(e.diags, diags...)
	if diags.HasErrors() {
		return nil
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		e.diags = append(e.diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid " + attr,
			Detail:   fmt.Sprintf("%s must be an object, got %s.", attr, val.Type().FriendlyName()),
			Subject:  expr.Range().Ptr(),
		})
		return nil
	}
	out, err := ctyValueToInterface(val)
	if err != nil {
		e.diags = append(e.diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid " + attr,
			Detail:   err.Error(),
			Subject:  expr.Range().Ptr(),
		})
		return nil
	}
	m, _ := out.(map[string]any)
	return m
}

// ctyValueToInterface converts a cty.Value to plain Go values: string,
// float64, bool, []any and map[string]any.
func ctyValueToInterface(val cty.Value) (any, error) {
	if !val.IsKnown() || val.IsNull() {
		return nil, nil
	}
	ty := val.Type()
	if ty.IsPrimitiveType() {
		switch ty {
		case cty.String:
			return val.AsString(), nil
		case cty.Number:
			f, _ := val.AsBigFloat().Float64()
			return f, nil
		case cty.Bool:
			return val.True(), nil
		default:
			return nil, fmt.Errorf("unsupported primitive type: %s", ty.FriendlyName())
		}
	}
	if ty.IsObjectType() || ty.IsMapType() {
		out := make(map[string]any, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			item, err := ctyValueToInterface(v)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = item
		}
		return out, nil
	}
	if ty.IsTupleType() || ty.IsListType() || ty.IsSetType() {
		out := make([]any, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			item, err := ctyValueToInterface(v)
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported cty.Type for conversion: %s", ty.FriendlyName())
}
