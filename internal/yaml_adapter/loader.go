// Package yaml_adapter loads pipelines written in YAML. Scalars become HCL
// templates, so `${matrix.target}` interpolates exactly as in HCL files, and
// `if` values are parsed as bare HCL expressions.
package yaml_adapter

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"

	"github.com/specialistvlad/releasegrid/internal/config"
	"github.com/specialistvlad/releasegrid/internal/ctxlog"
)

type document struct {
	Name        string            `yaml:"name"`
	On          *onSpec           `yaml:"on"`
	Permissions map[string]string `yaml:"permissions"`
	Env         yaml.Node         `yaml:"env"`
	Jobs        yaml.Node         `yaml:"jobs"`
}

type onSpec struct {
	Manual    bool     `yaml:"manual"`
	Events    []string `yaml:"events"`
	TagPrefix *string  `yaml:"tag_prefix"`
}

type jobSpec struct {
	RunsOn   yaml.Node  `yaml:"runs_on"`
	Needs    []string   `yaml:"needs"`
	If       yaml.Node  `yaml:"if"`
	Secrets  []string   `yaml:"secrets"`
	FailFast bool       `yaml:"fail_fast"`
	Timeout  string     `yaml:"timeout"`
	Matrix   yaml.Node  `yaml:"matrix"`
	Env      yaml.Node  `yaml:"env"`
	Steps    []stepSpec `yaml:"steps"`
}

type stepSpec struct {
	Name string    `yaml:"name"`
	Uses string    `yaml:"uses"`
	If   yaml.Node `yaml:"if"`
	With yaml.Node `yaml:"with"`
	Env  yaml.Node `yaml:"env"`
}

// Loader is the YAML implementation of config.Loader.
type Loader struct{}

// NewLoader creates a new YAML pipeline loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads a single YAML pipeline file.
func (l *Loader) Load(ctx context.Context, path string) (*config.Pipeline, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("YAML loader started.", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	p, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	logger.Debug("YAML loading complete.", "pipeline", p.Name, "jobs", len(p.Jobs))
	return p, nil
}

// Parse decodes YAML bytes; filename is used in diagnostics.
func Parse(data []byte, filename string) (*config.Pipeline, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%s: pipeline is empty", filename)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: decoding pipeline: %w", filename, err)
	}

	b := &builder{filename: filename}
	p, err := b.pipeline(&doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	p.Source = filename
	return p, nil
}

type builder struct {
	filename string
}

func (b *builder) pipeline(doc *document) (*config.Pipeline, error) {
	p := &config.Pipeline{
		Name:        doc.Name,
		Permissions: config.Permissions(doc.Permissions),
	}
	if doc.On != nil {
		p.Trigger = &config.Trigger{Events: doc.On.Events, TagPrefix: config.DefaultTagPrefix}
		if doc.On.Manual && !p.Trigger.Accepts("manual") {
			p.Trigger.Events = append(p.Trigger.Events, "manual")
		}
		if doc.On.TagPrefix != nil {
			p.Trigger.TagPrefix = *doc.On.TagPrefix
		}
	}

	env, err := b.exprMap(&doc.Env)
	if err != nil {
		return nil, fmt.Errorf("env: %w", err)
	}
	p.Env = env

	if doc.Jobs.Kind != 0 && doc.Jobs.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: jobs must be a mapping", doc.Jobs.Line)
	}
	for i := 0; i+1 < len(doc.Jobs.Content); i += 2 {
		name := doc.Jobs.Content[i].Value
		var spec jobSpec
		if err := decodeJob(doc.Jobs.Content[i+1], &spec); err != nil {
			return nil, fmt.Errorf("job %q: %w", name, err)
		}
		j, err := b.job(name, &spec)
		if err != nil {
			return nil, fmt.Errorf("job %q: %w", name, err)
		}
		p.Jobs = append(p.Jobs, j)
	}
	return p, nil
}

func (b *builder) job(name string, spec *jobSpec) (*config.Job, error) {
	j := &config.Job{
		Name:     name,
		Needs:    spec.Needs,
		Secrets:  spec.Secrets,
		FailFast: spec.FailFast,
	}
	var err error
	if j.RunsOn, err = b.optionalExpr(&spec.RunsOn, false); err != nil {
		return nil, fmt.Errorf("runs_on: %w", err)
	}
	if j.If, err = b.optionalExpr(&spec.If, true); err != nil {
		return nil, fmt.Errorf("if: %w", err)
	}
	if spec.Timeout != "" {
		if j.Timeout, err = time.ParseDuration(spec.Timeout); err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", spec.Timeout, err)
		}
	}
	if j.Env, err = b.exprMap(&spec.Env); err != nil {
		return nil, fmt.Errorf("env: %w", err)
	}
	if spec.Matrix.Kind != 0 {
		if j.Matrix, err = b.matrix(&spec.Matrix); err != nil {
			return nil, fmt.Errorf("matrix: %w", err)
		}
	}

	for _, s := range spec.Steps {
		step := &config.Step{Name: s.Name, Uses: s.Uses}
		if step.If, err = b.optionalExpr(&s.If, true); err != nil {
			return nil, fmt.Errorf("step %q: if: %w", s.Name, err)
		}
		if step.With, err = b.exprMap(&s.With); err != nil {
			return nil, fmt.Errorf("step %q: with: %w", s.Name, err)
		}
		if step.Env, err = b.exprMap(&s.Env); err != nil {
			return nil, fmt.Errorf("step %q: env: %w", s.Name, err)
		}
		j.Steps = append(j.Steps, step)
	}
	return j, nil
}

// matrix reads `include` (a list of mappings) and axis lists, keeping the
// order in which keys are written.
func (b *builder) matrix(n *yaml.Node) (*config.Matrix, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: matrix must be a mapping", n.Line)
	}
	m := &config.Matrix{}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i].Value, n.Content[i+1]
		if val.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("line %d: %q must be a list", val.Line, key)
		}

		if key == "include" {
			for _, entry := range val.Content {
				if entry.Kind != yaml.MappingNode {
					return nil, fmt.Errorf("line %d: include entries must be mappings", entry.Line)
				}
				var keys []string
				values := make(map[string]cty.Value)
				for k := 0; k+1 < len(entry.Content); k += 2 {
					v, err := b.staticValue(entry.Content[k+1])
					if err != nil {
						return nil, err
					}
					keys = append(keys, entry.Content[k].Value)
					values[entry.Content[k].Value] = v
				}
				m.Include = append(m.Include, config.NewMatrixEntry(keys, values))
			}
			continue
		}

		axis := config.Axis{Name: key}
		for _, item := range val.Content {
			v, err := b.staticValue(item)
			if err != nil {
				return nil, err
			}
			axis.Values = append(axis.Values, v)
		}
		m.Axes = append(m.Axes, axis)
	}
	return m, nil
}

func (b *builder) staticValue(n *yaml.Node) (cty.Value, error) {
	e, err := b.expr(n, false)
	if err != nil {
		return cty.NilVal, err
	}
	v, diags := e.Value(nil)
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("matrix values must be constants: %w", diags)
	}
	return v, nil
}

func (b *builder) optionalExpr(n *yaml.Node, bare bool) (hcl.Expression, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	return b.expr(n, bare)
}

func (b *builder) exprMap(n *yaml.Node) (map[string]hcl.Expression, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected a mapping", n.Line)
	}
	out := make(map[string]hcl.Expression, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		e, err := b.expr(n.Content[i+1], false)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", n.Content[i].Value, err)
		}
		out[n.Content[i].Value] = e
	}
	return out, nil
}

var (
	jobKeys  = []string{"runs_on", "needs", "if", "secrets", "fail_fast", "timeout", "matrix", "env", "steps"}
	stepKeys = []string{"name", "uses", "if", "with", "env"}
)

// decodeJob decodes a job mapping, rejecting keys that are not part of the
// job schema. Node.Decode keeps positions on nested yaml.Node fields.
func decodeJob(n *yaml.Node, spec *jobSpec) error {
	if err := checkKeys(n, jobKeys); err != nil {
		return err
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value != "steps" || n.Content[i+1].Kind != yaml.SequenceNode {
			continue
		}
		for _, step := range n.Content[i+1].Content {
			if err := checkKeys(step, stepKeys); err != nil {
				return err
			}
		}
	}
	return n.Decode(spec)
}

func checkKeys(n *yaml.Node, allowed []string) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i]
		if !slices.Contains(allowed, key.Value) {
			return fmt.Errorf("line %d: unknown field %q", key.Line, key.Value)
		}
	}
	return nil
}
