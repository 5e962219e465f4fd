package expr

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/specialistvlad/releasegrid/internal/config"
)

// IsDefined reports whether an expression was written by the user. Decoders
// fill omitted optional attributes with a static null expression, so a nil
// check alone is not enough.
func IsDefined(e hcl.Expression) bool {
	if e == nil {
		return false
	}
	if len(e.Variables()) > 0 {
		return true
	}
	v, diags := e.Value(nil)
	if diags.HasErrors() {
		return true
	}
	return !v.IsNull()
}

// Bool evaluates a condition. Undefined expressions yield def.
func Bool(e hcl.Expression, ctx *hcl.EvalContext, def bool) (bool, error) {
	if !IsDefined(e) {
		return def, nil
	}
	v, diags := e.Value(ctx)
	if diags.HasErrors() {
		return false, diags
	}
	v, err := convert.Convert(v, cty.Bool)
	if err != nil {
		return false, fmt.Errorf("%s: condition must be a bool: %w", e.Range(), err)
	}
	if v.IsNull() || !v.IsKnown() {
		return false, fmt.Errorf("%s: condition evaluated to an unknown or null value", e.Range())
	}
	return v.True(), nil
}

// String evaluates an expression into a string. Undefined expressions yield def.
func String(e hcl.Expression, ctx *hcl.EvalContext, def string) (string, error) {
	if !IsDefined(e) {
		return def, nil
	}
	v, diags := e.Value(ctx)
	if diags.HasErrors() {
		return "", diags
	}
	if v.IsNull() {
		return def, nil
	}
	sv, err := convert.Convert(v, cty.String)
	if err != nil {
		return "", fmt.Errorf("%s: value must be a string: %w", e.Range(), err)
	}
	return sv.AsString(), nil
}

// Values evaluates a map of expressions. The first failure is returned
// together with the name of the attribute that caused it.
func Values(exprs map[string]hcl.Expression, ctx *hcl.EvalContext) (map[string]cty.Value, error) {
	out := make(map[string]cty.Value, len(exprs))
	for _, name := range SortedKeys(exprs) {
		v, diags := exprs[name].Value(ctx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("evaluating %q: %w", name, diags)
		}
		out[name] = v
	}
	return out, nil
}

// Strings evaluates a map of expressions whose values must all be strings,
// as environment variables are.
func Strings(exprs map[string]hcl.Expression, ctx *hcl.EvalContext) (map[string]string, error) {
	vals, err := Values(exprs, ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(vals))
	for name, v := range vals {
		if v.IsNull() {
			out[name] = ""
			continue
		}
		if v.Type().IsPrimitiveType() {
			out[name] = config.FormatValue(v)
			continue
		}
		return nil, fmt.Errorf("%q must be a string, number or bool, got %s", name, v.Type().FriendlyName())
	}
	return out, nil
}
