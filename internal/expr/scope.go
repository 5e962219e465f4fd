package expr

import (
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Scope holds everything a job instance's expressions may reference.
type Scope struct {
	Trigger cty.Value
	Matrix  cty.Value
	Runner  string
	Job     map[string]string
	Env     map[string]string
	Secrets map[string]string
	Steps   map[string]map[string]string
}

// EvalContext renders the scope into an HCL evaluation context. Variables
// are `trigger`, `matrix`, `runner`, `job`, `env`, `secrets` and
// `steps.<name>.outputs.<key>`.
func (s *Scope) EvalContext() *hcl.EvalContext {
	vars := map[string]cty.Value{
		"trigger": orEmpty(s.Trigger),
		"matrix":  orEmpty(s.Matrix),
		"runner":  cty.StringVal(s.Runner),
		"job":     stringObject(s.Job),
		"env":     stringObject(s.Env),
		"secrets": stringObject(s.Secrets),
	}

	steps := make(map[string]cty.Value, len(s.Steps))
	for name, outputs := range s.Steps {
		steps[name] = cty.ObjectVal(map[string]cty.Value{
			"outputs": stringObject(outputs),
		})
	}
	vars["steps"] = objectOrEmpty(steps)

	return &hcl.EvalContext{
		Variables: vars,
		Functions: Functions(),
	}
}

func orEmpty(v cty.Value) cty.Value {
	if v == cty.NilVal || v.IsNull() {
		return cty.EmptyObjectVal
	}
	return v
}

func objectOrEmpty(m map[string]cty.Value) cty.Value {
	if len(m) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(m)
}

func stringObject(m map[string]string) cty.Value {
	if len(m) == 0 {
		return cty.EmptyObjectVal
	}
	vals := make(map[string]cty.Value, len(m))
	for k, v := range m {
		vals[k] = cty.StringVal(v)
	}
	return cty.ObjectVal(vals)
}

// SortedKeys returns the keys of a string map in lexical order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
