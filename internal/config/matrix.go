// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file models the build matrix of a job and its expansion into entries.
package config

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Matrix defines how a single job is fanned out into independent instances.
type Matrix struct {
	// Axes are cartesian-expanded in declaration order.
	Axes []Axis
	// Include lists explicit entries appended after the axes expansion.
	Include []MatrixEntry
}

// Axis is a named list of values.
type Axis struct {
	Name   string
	Values []cty.Value
}

// MatrixEntry is one immutable combination of matrix values.
type MatrixEntry struct {
	keys   []string
	values map[string]cty.Value
}

// NewMatrixEntry creates an entry whose keys keep the given order.
func NewMatrixEntry(keys []string, values map[string]cty.Value) MatrixEntry {
	k := make([]string, len(keys))
	copy(k, keys)
	v := make(map[string]cty.Value, len(values))
	for name, val := range values {
		v[name] = val
	}
	return MatrixEntry{keys: k, values: v}
}

// Keys returns the entry's keys in declaration order.
func (e MatrixEntry) Keys() []string {
	out := make([]string, len(e.keys))
	copy(out, e.keys)
	return out
}

// IsEmpty reports whether the entry carries no values.
func (e MatrixEntry) IsEmpty() bool {
	return len(e.keys) == 0
}

// Get returns the string form of a matrix value.
func (e MatrixEntry) Get(key string) (string, bool) {
	v, ok := e.values[key]
	if !ok {
		return "", false
	}
	return FormatValue(v), true
}

// Value returns the entry as a cty object, ready to be placed in an
// evaluation context under the name `matrix`.
func (e MatrixEntry) Value() cty.Value {
	if len(e.values) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(e.values)
}

// Label renders the entry as "k1=v1,k2=v2" in declaration order.
func (e MatrixEntry) Label() string {
	parts := make([]string, 0, len(e.keys))
	for _, k := range e.keys {
		parts = append(parts, k+"="+FormatValue(e.values[k]))
	}
	return strings.Join(parts, ",")
}

// Entries expands the matrix. A nil or empty matrix yields a single empty
// entry so that every job has at least one instance.
func (m *Matrix) Entries() []MatrixEntry {
	if m == nil || (len(m.Axes) == 0 && len(m.Include) == 0) {
		return []MatrixEntry{{}}
	}

	var entries []MatrixEntry
	if len(m.Axes) > 0 {
		entries = []MatrixEntry{{}}
		for _, axis := range m.Axes {
			next := make([]MatrixEntry, 0, len(entries)*len(axis.Values))
			for _, base := range entries {
				for _, val := range axis.Values {
					keys := append(base.Keys(), axis.Name)
					values := make(map[string]cty.Value, len(keys))
					for k, v := range base.values {
						values[k] = v
					}
					values[axis.Name] = val
					next = append(next, NewMatrixEntry(keys, values))
				}
			}
			entries = next
		}
	}

	seen := make(map[string]struct{}, len(entries)+len(m.Include))
	out := make([]MatrixEntry, 0, len(entries)+len(m.Include))
	for _, e := range append(entries, m.Include...) {
		label := e.Label()
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, e)
	}
	return out
}

// FormatValue renders a cty value the way it appears in labels and
// environment variables.
func FormatValue(v cty.Value) string {
	if v.IsNull() {
		return ""
	}
	if !v.IsKnown() {
		return "(unknown)"
	}
	switch v.Type() {
	case cty.String:
		return v.AsString()
	case cty.Bool:
		if v.True() {
			return "true"
		}
		return "false"
	case cty.Number:
		return v.AsBigFloat().Text('f', -1)
	}
	b, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	return string(b)
}
