// This file translates the HCL schema structs into the format-agnostic
// pipeline model defined in the config package.

package hcl_adapter

import (
	"fmt"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/releasegrid/internal/config"
)

func translatePipeline(b *pipelineBlock) (*config.Pipeline, error) {
	p := &config.Pipeline{Name: b.Name}

	if b.On != nil {
		p.Trigger = &config.Trigger{Events: append([]string(nil), b.On.Events...), TagPrefix: config.DefaultTagPrefix}
		if b.On.Manual != nil && *b.On.Manual && !p.Trigger.Accepts("manual") {
			p.Trigger.Events = append(p.Trigger.Events, "manual")
		}
		if b.On.TagPrefix != nil {
			p.Trigger.TagPrefix = *b.On.TagPrefix
		}
	}

	if b.Permissions != nil {
		attrs, err := orderedAttributes(b.Permissions.Body)
		if err != nil {
			return nil, fmt.Errorf("permissions: %w", err)
		}
		p.Permissions = make(config.Permissions, len(attrs))
		for _, a := range attrs {
			v, diags := a.Expr.Value(nil)
			if diags.HasErrors() {
				return nil, fmt.Errorf("permissions: %w", diags)
			}
			if v.Type() != cty.String || v.IsNull() {
				return nil, fmt.Errorf("%s: permission %q must be a string", a.Range, a.Name)
			}
			p.Permissions[a.Name] = v.AsString()
		}
	}

	env, err := bodyAttributes(b.Env)
	if err != nil {
		return nil, fmt.Errorf("env: %w", err)
	}
	p.Env = env

	for _, jb := range b.Jobs {
		j, err := translateJob(jb)
		if err != nil {
			return nil, fmt.Errorf("job %q: %w", jb.Name, err)
		}
		p.Jobs = append(p.Jobs, j)
	}
	return p, nil
}

func translateJob(b *jobBlock) (*config.Job, error) {
	j := &config.Job{
		Name:    b.Name,
		RunsOn:  b.RunsOn,
		Needs:   b.Needs,
		If:      b.If,
		Secrets: b.Secrets,
	}
	if b.FailFast != nil {
		j.FailFast = *b.FailFast
	}
	if b.Timeout != nil {
		d, err := time.ParseDuration(*b.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", *b.Timeout, err)
		}
		j.Timeout = d
	}

	env, err := bodyAttributes(b.Env)
	if err != nil {
		return nil, fmt.Errorf("env: %w", err)
	}
	j.Env = env

	if b.Matrix != nil {
		m, err := translateMatrix(b.Matrix)
		if err != nil {
			return nil, fmt.Errorf("matrix: %w", err)
		}
		j.Matrix = m
	}

	for _, sb := range b.Steps {
		with, err := bodyAttributes(sb.With)
		if err != nil {
			return nil, fmt.Errorf("step %q: with: %w", sb.Name, err)
		}
		senv, err := bodyAttributes(sb.Env)
		if err != nil {
			return nil, fmt.Errorf("step %q: env: %w", sb.Name, err)
		}
		j.Steps = append(j.Steps, &config.Step{
			Name: sb.Name,
			Uses: sb.Uses,
			If:   sb.If,
			With: with,
			Env:  senv,
		})
	}
	return j, nil
}

// translateMatrix evaluates matrix values statically; they cannot refer to
// variables because they decide how many instances exist.
func translateMatrix(b *matrixBlock) (*config.Matrix, error) {
	m := &config.Matrix{}

	axes, err := orderedAttributes(b.Axes)
	if err != nil {
		return nil, err
	}
	for _, a := range axes {
		v, diags := a.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("axis %q: %w", a.Name, diags)
		}
		if !v.Type().IsTupleType() && !v.Type().IsListType() {
			return nil, fmt.Errorf("%s: axis %q must be a list", a.Range, a.Name)
		}
		axis := config.Axis{Name: a.Name}
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			axis.Values = append(axis.Values, ev)
		}
		m.Axes = append(m.Axes, axis)
	}

	for i, inc := range b.Include {
		attrs, err := orderedAttributes(inc.Body)
		if err != nil {
			return nil, fmt.Errorf("include %d: %w", i, err)
		}
		keys := make([]string, 0, len(attrs))
		values := make(map[string]cty.Value, len(attrs))
		for _, a := range attrs {
			v, diags := a.Expr.Value(nil)
			if diags.HasErrors() {
				return nil, fmt.Errorf("include %d, %q: %w", i, a.Name, diags)
			}
			keys = append(keys, a.Name)
			values[a.Name] = v
		}
		m.Include = append(m.Include, config.NewMatrixEntry(keys, values))
	}
	return m, nil
}
