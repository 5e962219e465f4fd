package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

type buildInput struct {
	Target  string            `cty:"target,required"`
	Args    []string          `cty:"args"`
	Env     map[string]string `cty:"env"`
	Jobs    int               `cty:"jobs"`
	Release bool              `cty:"release"`
	Raw     cty.Value         `cty:"raw"`
}

func (in *buildInput) SetDefaults() { in.Release = true }

func (in *buildInput) Validate() error {
	if in.Jobs < 0 {
		return assert.AnError
	}
	return nil
}

func noop(context.Context, *StepContext, *buildInput) (map[string]string, error) {
	return nil, nil
}

func TestRegisterAction_PanicsOnDuplicate(t *testing.T) {
	r := New()
	r.RegisterAction("build", Action("", noop))
	assert.Panics(t, func() { r.RegisterAction("build", Action("", noop)) })
	assert.Equal(t, []string{"build"}, r.Names())
}

func TestNewInput_DecodesAndDefaults(t *testing.T) {
	action := Action("", noop)

	in, err := NewInput(action, map[string]cty.Value{
		"target": cty.StringVal("x86_64"),
		"args":   cty.TupleVal([]cty.Value{cty.StringVal("--locked"), cty.NumberIntVal(1)}),
		"env":    cty.ObjectVal(map[string]cty.Value{"A": cty.StringVal("b")}),
		"jobs":   cty.StringVal("4"),
		"raw":    cty.True,
	})
	require.NoError(t, err)

	got := in.(*buildInput)
	assert.Equal(t, "x86_64", got.Target)
	assert.Equal(t, []string{"--locked", "1"}, got.Args)
	assert.Equal(t, map[string]string{"A": "b"}, got.Env)
	assert.Equal(t, 4, got.Jobs)
	assert.True(t, got.Release)
	assert.True(t, got.Raw.True())
}

func TestNewInput_Errors(t *testing.T) {
	action := Action("", noop)

	_, err := NewInput(action, map[string]cty.Value{"tagret": cty.StringVal("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing required argument "target"`)
	assert.Contains(t, err.Error(), `unsupported argument "tagret"`)

	_, err = NewInput(action, map[string]cty.Value{
		"target": cty.StringVal("x"),
		"jobs":   cty.StringVal("many"),
	})
	require.Error(t, err)

	_, err = NewInput(action, map[string]cty.Value{
		"target": cty.StringVal("x"),
		"jobs":   cty.NumberIntVal(-1),
	})
	require.ErrorIs(t, err, assert.AnError)
}

type badInput struct {
	Ch chan int `cty:"ch"`
}

func TestValidateRegistry(t *testing.T) {
	r := New()
	r.RegisterAction("ok", Action("", noop))
	require.NoError(t, r.ValidateRegistry())

	r.RegisterAction("bad", Action("", func(context.Context, *StepContext, *badInput) (map[string]string, error) {
		return nil, nil
	}))
	err := r.ValidateRegistry()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "action 'bad', attribute 'ch'")
}

func TestStepContext_EnvironAndExport(t *testing.T) {
	sc := &StepContext{
		WorkspaceDir: "/work/build",
		BaseEnv:      []string{"PATH=/usr/bin"},
		Env:          map[string]string{"B": "2", "A": "1"},
	}
	sc.Export("PYTHON", "/usr/bin/python3")

	assert.Equal(t, []string{"PATH=/usr/bin", "A=1", "B=2", "PYTHON=/usr/bin/python3"}, sc.Environ())
	assert.Equal(t, map[string]string{"PYTHON": "/usr/bin/python3"}, sc.Exports())
	assert.Equal(t, "/work/build/dist", sc.Path("dist"))
	assert.Equal(t, "/abs", sc.Path("/abs"))
}
