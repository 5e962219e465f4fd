package config

import (
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPipeline() *Pipeline {
	return &Pipeline{
		Name:        "wheels",
		Trigger:     &Trigger{Events: []string{"manual"}, TagPrefix: DefaultTagPrefix},
		Permissions: Permissions{"contents": "read"},
		Jobs: []*Job{
			{Name: "build", Steps: []*Step{{Name: "checkout", Uses: "checkout"}}},
			{Name: "release", Needs: []string{"build"}, Secrets: []string{"PYPI_API_TOKEN"}, Steps: []*Step{{Name: "publish", Uses: "publish"}}},
		},
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid pipeline", func(t *testing.T) {
		require.NoError(t, validPipeline().Validate())
	})

	cases := []struct {
		name   string
		mutate func(p *Pipeline)
		want   string
	}{
		{"write permission", func(p *Pipeline) { p.Permissions["contents"] = "write" }, "requests write access"},
		{"no events", func(p *Pipeline) { p.Trigger.Events = nil }, "declares no trigger events"},
		{"unknown need", func(p *Pipeline) { p.Jobs[1].Needs = []string{"test"} }, `needs unknown job "test"`},
		{"self need", func(p *Pipeline) { p.Jobs[0].Needs = []string{"build"} }, "needs itself"},
		{"duplicate job", func(p *Pipeline) { p.Jobs[1].Name = "build" }, "defined more than once"},
		{"bad job name", func(p *Pipeline) { p.Jobs[0].Name = "build[x]" }, "not a valid identifier"},
		{"step without action", func(p *Pipeline) { p.Jobs[0].Steps[0].Uses = "" }, "does not say which action"},
		{"empty job", func(p *Pipeline) { p.Jobs[0].Steps = nil }, "has no steps"},
		{"undeclared secret", func(p *Pipeline) {
			p.Jobs[0].Steps[0].Env = map[string]hcl.Expression{"TOKEN": mustExpr(t, "secrets.PYPI_API_TOKEN")}
		}, `job "build" reads secret "PYPI_API_TOKEN" without declaring it`},
		{"empty axis", func(p *Pipeline) { p.Jobs[0].Matrix = &Matrix{Axes: []Axis{{Name: "target"}}} }, "has no values"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validPipeline()
			tc.mutate(p)
			err := p.Validate()
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func mustExpr(t *testing.T, src string) hcl.Expression {
	t.Helper()
	e, diags := hclsyntax.ParseExpression([]byte(src), "test.hcl", hcl.Pos{Line: 1, Column: 1})
	require.False(t, diags.HasErrors(), diags.Error())
	return e
}

func TestJobSecretRefs(t *testing.T) {
	j := &Job{
		Name: "release",
		If:   mustExpr(t, `startswith(trigger.ref, "refs/tags/")`),
		Steps: []*Step{{
			Name: "publish",
			Uses: "publish",
			With: map[string]hcl.Expression{
				"token": mustExpr(t, `secrets.PYPI_API_TOKEN`),
				"extra": mustExpr(t, `"${secrets["OTHER"]}-${matrix.target}"`),
			},
		}},
	}
	assert.Equal(t, []string{"OTHER", "PYPI_API_TOKEN"}, j.SecretRefs())
	assert.Len(t, j.Expressions(), 3)
}

func TestTriggerAccepts(t *testing.T) {
	tr := &Trigger{Events: []string{"manual"}}
	assert.True(t, tr.Accepts("manual"))
	assert.False(t, tr.Accepts("push"))

	var none *Trigger
	assert.False(t, none.Accepts("manual"))
}

func TestSecretNames(t *testing.T) {
	p := validPipeline()
	p.Jobs[0].Secrets = []string{"PYPI_API_TOKEN", "OTHER"}
	assert.Equal(t, []string{"PYPI_API_TOKEN", "OTHER"}, p.SecretNames())
}
