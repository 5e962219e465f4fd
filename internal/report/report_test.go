package report

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/releasegrid/internal/dag"
	"github.com/specialistvlad/releasegrid/internal/node"
)

func sampleReport() *Report {
	return &Report{
		RunID:       "0b7f",
		Pipeline:    "wheels",
		Trigger:     "manual@refs/heads/main",
		Permissions: map[string]string{"contents": "read"},
		Duration:    3 * time.Second,
		Result: &dag.Result{Outcomes: []dag.Outcome{
			{ID: "build[target=x86_64]", Job: "build", State: node.Succeeded, Duration: 2 * time.Second},
			{ID: "build[target=aarch64]", Job: "build", State: node.Failed, Error: errors.New("maturin exited with code 1\nmore")},
			{ID: "release", Job: "release", State: node.Skipped, Reason: "needed job instance build[target=aarch64] failed"},
		}},
	}
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "Pipeline wheels")
	assert.Contains(t, out, "permissions contents=read")
	assert.Contains(t, out, "build[target=x86_64]")
	assert.Contains(t, out, "maturin exited with code 1")
	assert.NotContains(t, out, "more")
	assert.Contains(t, out, "needed job instance build[target=aarch64] failed")
	assert.Contains(t, out, "1 succeeded, 1 failed, 1 skipped")
}

func TestSummary_Empty(t *testing.T) {
	r := &Report{Result: &dag.Result{}}
	assert.Equal(t, "nothing ran", r.Summary())
}

func TestRenderPlan(t *testing.T) {
	var buf bytes.Buffer
	err := RenderPlan(&buf, "wheels", "manual@refs/tags/v1.0.0", []PlanRow{
		{Instance: "build[target=x86_64]", RunsOn: "ubuntu-latest", Gate: "run"},
		{Instance: "release", RunsOn: "local", Needs: []string{"build"}, Gate: "run"},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Plan for wheels")
	assert.Contains(t, buf.String(), "ubuntu-latest")
}
