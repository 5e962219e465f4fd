package hcl_adapter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/specialistvlad/releasegrid/internal/config"
	"github.com/specialistvlad/releasegrid/internal/ctxlog"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL pipeline loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses path (a .hcl file, or a directory whose .hcl files together
// hold exactly one pipeline block) into the format-agnostic model.
func (l *Loader) Load(ctx context.Context, path string) (*config.Pipeline, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path", path)

	files, err := findHCLFiles(path)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl files found at %s", path)
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	parser := hclparse.NewParser()
	var found []*pipelineBlock
	var source string
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}
		if attrs, _ := root.Remain.JustAttributes(); len(attrs) > 0 {
			for name, attr := range attrs {
				return nil, fmt.Errorf("%s: unexpected top-level attribute %q", attr.Range, name)
			}
		}
		if len(root.Pipelines) > 0 {
			source = file
		}
		found = append(found, root.Pipelines...)
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("no pipeline block found in %s", path)
	case 1:
	default:
		return nil, fmt.Errorf("%d pipeline blocks found in %s, expected exactly one", len(found), path)
	}

	p, err := translatePipeline(found[0])
	if err != nil {
		return nil, fmt.Errorf("in %s: %w", source, err)
	}
	p.Source = source

	logger.Debug("HCL loading complete.", "pipeline", p.Name, "jobs", len(p.Jobs))
	return p, nil
}

func findHCLFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing path %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(p) == ".hcl" {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// bodyAttributes converts a free-form block into a map of expressions.
func bodyAttributes(b *attrsBlock) (map[string]hcl.Expression, error) {
	if b == nil || b.Body == nil {
		return nil, nil
	}
	attrs, diags := b.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	out := make(map[string]hcl.Expression, len(attrs))
	for name, attr := range attrs {
		out[name] = attr.Expr
	}
	return out, nil
}

// orderedAttributes returns the attributes of body in source order.
func orderedAttributes(body hcl.Body) ([]*hcl.Attribute, error) {
	if body == nil {
		return nil, nil
	}
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	out := make([]*hcl.Attribute, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Range.Start.Byte < out[j].Range.Start.Byte
	})
	return out, nil
}
