// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
package config

import (
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Expressions returns every expression attached to the job and its steps.
func (j *Job) Expressions() []hcl.Expression {
	var out []hcl.Expression
	add := func(e hcl.Expression) {
		if e != nil {
			out = append(out, e)
		}
	}
	addMap := func(m map[string]hcl.Expression) {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			add(m[k])
		}
	}

	add(j.RunsOn)
	add(j.If)
	addMap(j.Env)
	for _, s := range j.Steps {
		add(s.If)
		addMap(s.With)
		addMap(s.Env)
	}
	return out
}

// SecretRefs lists, sorted and deduplicated, the names the job reads through
// `secrets.<NAME>` anywhere in its expressions.
func (j *Job) SecretRefs() []string {
	seen := make(map[string]struct{})
	for _, e := range j.Expressions() {
		for _, traversal := range e.Variables() {
			if traversal.RootName() != "secrets" || len(traversal) < 2 {
				continue
			}
			switch step := traversal[1].(type) {
			case hcl.TraverseAttr:
				seen[step.Name] = struct{}{}
			case hcl.TraverseIndex:
				if step.Key.Type() == cty.String && step.Key.IsKnown() && !step.Key.IsNull() {
					seen[step.Key.AsString()] = struct{}{}
				}
			}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
