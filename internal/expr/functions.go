package expr

import (
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// stringPredicate builds a two-argument string function returning a bool.
func stringPredicate(first, second string, fn func(a, b string) bool) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: first, Type: cty.String},
			{Name: second, Type: cty.String},
		},
		Type: function.StaticReturnType(cty.Bool),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			return cty.BoolVal(fn(args[0].AsString(), args[1].AsString())), nil
		},
	})
}

// Functions returns the function table available to every pipeline expression.
func Functions() map[string]function.Function {
	return map[string]function.Function{
		"startswith":  stringPredicate("str", "prefix", strings.HasPrefix),
		"endswith":    stringPredicate("str", "suffix", strings.HasSuffix),
		"strcontains": stringPredicate("str", "substr", strings.Contains),
		"upper":       stdlib.UpperFunc,
		"lower":       stdlib.LowerFunc,
		"format":      stdlib.FormatFunc,
		"join":        stdlib.JoinFunc,
		"split":       stdlib.SplitFunc,
		"replace":     stdlib.ReplaceFunc,
		"trimprefix":  stdlib.TrimPrefixFunc,
		"trimsuffix":  stdlib.TrimSuffixFunc,
		"trimspace":   stdlib.TrimSpaceFunc,
		"concat":      stdlib.ConcatFunc,
		"contains":    stdlib.ContainsFunc,
		"length":      stdlib.LengthFunc,
		"coalesce":    stdlib.CoalesceFunc,
	}
}
