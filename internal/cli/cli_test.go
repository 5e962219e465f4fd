package cli_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/releasegrid/internal/cli"
	"github.com/specialistvlad/releasegrid/internal/testutil"
)

const pipeline = `
pipeline "demo" {
  on {
    manual = true
  }

  job "build" {
    step "compile" {
      uses = "run"
      with {
        script = "exit $CODE"
      }
      env {
        CODE = "0"
      }
    }
  }

  job "release" {
    needs = ["build"]
    if    = startswith(trigger.ref, "refs/tags/")

    step "announce" {
      uses = "print"
      with {
        message = "releasing ${trigger.version}"
      }
    }
  }
}
`

func writePipeline(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"pipeline.hcl": body})
	return filepath.Join(dir, "pipeline.hcl")
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return 0
	}
	var exitErr *cli.ExitError
	require.True(t, errors.As(err, &exitErr), "expected *cli.ExitError, got %T: %v", err, err)
	return exitErr.Code
}

func TestExecute(t *testing.T) {
	okPath := writePipeline(t, pipeline)
	failPath := writePipeline(t, strings.Replace(pipeline, `CODE = "0"`, `CODE = "4"`, 1))

	testCases := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
	}{
		{name: "help", args: []string{"--help"}, wantOut: "Usage:"},
		{name: "unknown flag", args: []string{"run", "--bogus"}, wantCode: cli.ExitUsage},
		{name: "no pipeline", args: []string{"validate"}, wantCode: cli.ExitUsage},
		{name: "too many args", args: []string{"validate", "a", "b"}, wantCode: cli.ExitUsage},
		{name: "bad log format", args: []string{"validate", "--log-format", "xml", okPath}, wantCode: cli.ExitUsage},
		{name: "validate ok", args: []string{"validate", okPath}},
		{name: "validate via flag", args: []string{"validate", "-p", okPath}},
		{name: "plan", args: []string{"plan", "--ref", "v1.2.0", okPath}, wantOut: "release"},
		{name: "run tag", args: []string{"run", "--ref", "v1.2.0", "--workspace", t.TempDir(), okPath}, wantOut: "releasing 1.2.0"},
		{name: "run rejected event", args: []string{"run", "--event", "push", "--ref", "main", okPath}, wantCode: cli.ExitUsage},
		{name: "run failing job", args: []string{"run", "--ref", "v1.2.0", failPath}, wantCode: cli.ExitFailed},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := &testutil.SafeBuffer{}
			err := cli.Execute(context.Background(), out, tc.args)
			assert.Equal(t, tc.wantCode, exitCode(t, err), out.String())
			if tc.wantOut != "" {
				assert.Contains(t, out.String(), tc.wantOut)
			}
		})
	}
}
