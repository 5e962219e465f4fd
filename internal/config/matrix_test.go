package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func entry(pairs ...string) MatrixEntry {
	keys := make([]string, 0, len(pairs)/2)
	values := make(map[string]cty.Value, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		keys = append(keys, pairs[i])
		values[pairs[i]] = cty.StringVal(pairs[i+1])
	}
	return NewMatrixEntry(keys, values)
}

func labels(entries []MatrixEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Label())
	}
	return out
}

func TestMatrixEntries(t *testing.T) {
	t.Run("nil matrix yields one empty entry", func(t *testing.T) {
		var m *Matrix
		entries := m.Entries()
		require.Len(t, entries, 1)
		assert.True(t, entries[0].IsEmpty())
		assert.Equal(t, cty.EmptyObjectVal, entries[0].Value())
	})

	t.Run("include entries keep declaration order", func(t *testing.T) {
		m := &Matrix{Include: []MatrixEntry{
			entry("runner", "ubuntu-latest", "target", "x86_64"),
			entry("runner", "ubuntu-latest", "target", "aarch64"),
		}}
		assert.Equal(t, []string{
			"runner=ubuntu-latest,target=x86_64",
			"runner=ubuntu-latest,target=aarch64",
		}, labels(m.Entries()))
	})

	t.Run("axes are cartesian expanded", func(t *testing.T) {
		m := &Matrix{Axes: []Axis{
			{Name: "os", Values: []cty.Value{cty.StringVal("linux"), cty.StringVal("macos")}},
			{Name: "target", Values: []cty.Value{cty.StringVal("x86_64"), cty.StringVal("aarch64")}},
		}}
		assert.Equal(t, []string{
			"os=linux,target=x86_64",
			"os=linux,target=aarch64",
			"os=macos,target=x86_64",
			"os=macos,target=aarch64",
		}, labels(m.Entries()))
	})

	t.Run("duplicate entries collapse", func(t *testing.T) {
		m := &Matrix{
			Axes:    []Axis{{Name: "target", Values: []cty.Value{cty.StringVal("x86_64")}}},
			Include: []MatrixEntry{entry("target", "x86_64")},
		}
		assert.Len(t, m.Entries(), 1)
	})
}

func TestMatrixEntryGet(t *testing.T) {
	e := NewMatrixEntry([]string{"target", "jobs", "debug"}, map[string]cty.Value{
		"target": cty.StringVal("aarch64"),
		"jobs":   cty.NumberIntVal(4),
		"debug":  cty.False,
	})

	v, ok := e.Get("target")
	require.True(t, ok)
	assert.Equal(t, "aarch64", v)

	v, _ = e.Get("jobs")
	assert.Equal(t, "4", v)

	v, _ = e.Get("debug")
	assert.Equal(t, "false", v)

	_, ok = e.Get("missing")
	assert.False(t, ok)
}
