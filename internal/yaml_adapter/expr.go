package yaml_adapter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

func (b *builder) rangeOf(n *yaml.Node) hcl.Range {
	pos := hcl.Pos{Line: n.Line, Column: n.Column, Byte: 0}
	end := pos
	end.Column += len(n.Value)
	return hcl.Range{Filename: b.filename, Start: pos, End: end}
}

// expr converts a YAML node into an HCL expression. Strings are templates,
// or bare expressions when bare is set; other scalars become literals;
// sequences and mappings become tuple and object constructors.
func (b *builder) expr(n *yaml.Node, bare bool) (hclsyntax.Expression, error) {
	rng := b.rangeOf(n)
	switch n.Kind {
	case yaml.AliasNode:
		return b.expr(n.Alias, bare)

	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!str":
			return b.parseString(n, bare)
		case "!!null":
			return &hclsyntax.LiteralValueExpr{Val: cty.NullVal(cty.DynamicPseudoType), SrcRange: rng}, nil
		case "!!bool":
			v, err := strconv.ParseBool(strings.ToLower(n.Value))
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid bool %q", n.Line, n.Value)
			}
			return &hclsyntax.LiteralValueExpr{Val: cty.BoolVal(v), SrcRange: rng}, nil
		case "!!int", "!!float":
			v, err := cty.ParseNumberVal(n.Value)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid number %q", n.Line, n.Value)
			}
			return &hclsyntax.LiteralValueExpr{Val: v, SrcRange: rng}, nil
		default:
			return nil, fmt.Errorf("line %d: unsupported scalar tag %s", n.Line, n.ShortTag())
		}

	case yaml.SequenceNode:
		tuple := &hclsyntax.TupleConsExpr{SrcRange: rng, OpenRange: rng}
		for _, item := range n.Content {
			e, err := b.expr(item, false)
			if err != nil {
				return nil, err
			}
			tuple.Exprs = append(tuple.Exprs, e)
		}
		return tuple, nil

	case yaml.MappingNode:
		obj := &hclsyntax.ObjectConsExpr{SrcRange: rng, OpenRange: rng}
		for i := 0; i+1 < len(n.Content); i += 2 {
			keyNode := n.Content[i]
			val, err := b.expr(n.Content[i+1], false)
			if err != nil {
				return nil, err
			}
			obj.Items = append(obj.Items, hclsyntax.ObjectConsItem{
				KeyExpr: &hclsyntax.ObjectConsKeyExpr{
					Wrapped: &hclsyntax.LiteralValueExpr{Val: cty.StringVal(keyNode.Value), SrcRange: b.rangeOf(keyNode)},
				},
				ValueExpr: val,
			})
		}
		return obj, nil

	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node", n.Line)
	}
}

func (b *builder) parseString(n *yaml.Node, bare bool) (hclsyntax.Expression, error) {
	start := hcl.Pos{Line: n.Line, Column: n.Column, Byte: 0}
	var (
		e     hclsyntax.Expression
		diags hcl.Diagnostics
	)
	if bare {
		e, diags = hclsyntax.ParseExpression([]byte(n.Value), b.filename, start)
	} else {
		e, diags = hclsyntax.ParseTemplate([]byte(n.Value), b.filename, start)
	}
	if diags.HasErrors() {
		return nil, diags
	}
	return e, nil
}
