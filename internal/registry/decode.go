package registry

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

var ctyValueType = reflect.TypeOf(cty.Value{})

type inputField struct {
	name     string
	required bool
	index    int
}

// inputFields lists the `cty` tagged fields of an input struct. A tag of
// `cty:"name,required"` marks a mandatory attribute.
func inputFields(t reflect.Type) ([]inputField, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("input must be a struct, got %s", t)
	}
	var fields []inputField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("cty")
		name, opts, _ := strings.Cut(tag, ",")
		if name == "" || name == "-" {
			continue
		}
		fields = append(fields, inputField{name: name, required: opts == "required", index: i})
	}
	return fields, nil
}

// NewInput builds an action's input struct from evaluated `with` values.
// Defaults are applied first, unknown attributes are rejected, and the
// struct's own validation runs last.
func NewInput(action *RegisteredAction, values map[string]cty.Value) (any, error) {
	input := action.NewInput()
	if d, ok := input.(Defaulter); ok {
		d.SetDefaults()
	}
	if err := DecodeInput(values, input); err != nil {
		return nil, err
	}
	if v, ok := input.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	return input, nil
}

// DecodeInput populates the struct pointed to by target from values.
func DecodeInput(values map[string]cty.Value, target any) error {
	ptr := reflect.ValueOf(target)
	if ptr.Kind() != reflect.Ptr || ptr.IsNil() {
		return fmt.Errorf("input must be a non-nil pointer")
	}
	structVal := ptr.Elem()
	fields, err := inputFields(structVal.Type())
	if err != nil {
		return err
	}

	known := make(map[string]struct{}, len(fields))
	var problems []string
	for _, f := range fields {
		known[f.name] = struct{}{}
		val, ok := values[f.name]
		if !ok || val.IsNull() {
			if f.required {
				problems = append(problems, fmt.Sprintf("missing required argument %q", f.name))
			}
			continue
		}
		if err := decodeValue(val, structVal.Field(f.index)); err != nil {
			problems = append(problems, fmt.Sprintf("argument %q: %v", f.name, err))
		}
	}

	var unknown []string
	for name := range values {
		if _, ok := known[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		problems = append(problems, fmt.Sprintf("unsupported argument %q", name))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid step input: %s", strings.Join(problems, "; "))
	}
	return nil
}

// decodeValue converts val into the Go value held by field, recursing into
// slices and maps so tuples and objects written in pipelines decode into
// typed Go collections.
func decodeValue(val cty.Value, field reflect.Value) error {
	if field.Type() == ctyValueType {
		field.Set(reflect.ValueOf(val))
		return nil
	}
	if !val.IsWhollyKnown() {
		return fmt.Errorf("value is not known")
	}
	if val.IsNull() {
		return nil
	}

	switch field.Kind() {
	case reflect.Slice:
		if !val.CanIterateElements() || val.Type().IsMapType() || val.Type().IsObjectType() {
			return fmt.Errorf("expected a list, got %s", val.Type().FriendlyName())
		}
		out := reflect.MakeSlice(field.Type(), 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			item := reflect.New(field.Type().Elem()).Elem()
			if err := decodeValue(elem, item); err != nil {
				return fmt.Errorf("element %d: %w", out.Len(), err)
			}
			out = reflect.Append(out, item)
		}
		field.Set(out)
		return nil

	case reflect.Map:
		if !val.Type().IsMapType() && !val.Type().IsObjectType() {
			return fmt.Errorf("expected a map, got %s", val.Type().FriendlyName())
		}
		out := reflect.MakeMapWithSize(field.Type(), val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			k, elem := it.Element()
			item := reflect.New(field.Type().Elem()).Elem()
			if err := decodeValue(elem, item); err != nil {
				return fmt.Errorf("key %q: %w", k.AsString(), err)
			}
			out.SetMapIndex(reflect.ValueOf(k.AsString()), item)
		}
		field.Set(out)
		return nil

	default:
		want, err := gocty.ImpliedType(field.Addr().Interface())
		if err != nil {
			return fmt.Errorf("unsupported Go type %s: %w", field.Type(), err)
		}
		converted, err := convert.Convert(val, want)
		if err != nil {
			return fmt.Errorf("expected %s: %w", want.FriendlyName(), err)
		}
		return gocty.FromCtyValue(converted, field.Addr().Interface())
	}
}
