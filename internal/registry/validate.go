package registry

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/zclconf/go-cty/cty/gocty"
)

// ValidateRegistry checks that every registered action's input struct can
// be decoded into: it must be a struct pointer whose tagged fields map to
// cty types, without duplicate attribute names.
func (r *Registry) ValidateRegistry() error {
	var errs []string
	for _, name := range r.Names() {
		input := r.actions[name].NewInput()
		t := reflect.TypeOf(input)
		if t == nil || t.Kind() != reflect.Ptr {
			errs = append(errs, fmt.Sprintf("action '%s': NewInput must return a pointer, got %T", name, input))
			continue
		}
		fields, err := inputFields(t.Elem())
		if err != nil {
			errs = append(errs, fmt.Sprintf("action '%s': %v", name, err))
			continue
		}

		seen := make(map[string]struct{}, len(fields))
		for _, f := range fields {
			if _, dup := seen[f.name]; dup {
				errs = append(errs, fmt.Sprintf("action '%s': attribute '%s' is declared twice", name, f.name))
			}
			seen[f.name] = struct{}{}

			ft := t.Elem().Field(f.index).Type
			if ft == ctyValueType {
				continue
			}
			if _, err := gocty.ImpliedType(reflect.Zero(ft).Interface()); err != nil {
				errs = append(errs, fmt.Sprintf("action '%s', attribute '%s': Go type %s has no cty equivalent", name, f.name, ft))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
