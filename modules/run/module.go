// Package run provides the `run` action, which executes a POSIX shell
// script with an embedded interpreter. The script can set step outputs by
// appending `key=value` lines to $RELEASEGRID_OUTPUT and export variables to
// later steps through $RELEASEGRID_ENV.
package run

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/specialistvlad/releasegrid/internal/command"
	"github.com/specialistvlad/releasegrid/internal/ctxlog"
	"github.com/specialistvlad/releasegrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the run action.
type Input struct {
	Script string `cty:"script,required"`
	// Dir is relative to the workspace.
	Dir string `cty:"dir"`
}

func (in *Input) SetDefaults() {
	in.Dir = "."
}

// Validate keeps the working directory inside the instance workspace.
func (in *Input) Validate() error {
	clean := filepath.Clean(filepath.FromSlash(in.Dir))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("dir %q escapes the workspace", in.Dir)
	}
	return nil
}

// OnRunScript parses and runs the script with `set -e` semantics.
func OnRunScript(ctx context.Context, sc *registry.StepContext, input *Input) (map[string]string, error) {
	logger := ctxlog.FromContext(ctx)

	file, err := syntax.NewParser().Parse(strings.NewReader(input.Script), sc.Step)
	if err != nil {
		return nil, fmt.Errorf("parsing script: %w", err)
	}

	stateDir, err := os.MkdirTemp(sc.WorkspaceDir, ".step-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(stateDir)
	outputPath := filepath.Join(stateDir, "output")
	envPath := filepath.Join(stateDir, "env")
	for _, p := range []string{outputPath, envPath} {
		if err := os.WriteFile(p, nil, 0o600); err != nil {
			return nil, err
		}
	}

	env := append(sc.Environ(), "RELEASEGRID_OUTPUT="+outputPath, "RELEASEGRID_ENV="+envPath)
	redactor := command.NewRedactor(sc.Masked...)
	stdout := command.NewLineWriter(logger, "stdout", redactor)
	stderr := command.NewLineWriter(logger, "stderr", redactor)

	runner, err := interp.New(
		interp.Dir(sc.Path(input.Dir)),
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, stdout, stderr),
		interp.Params("-e"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize shell: %w", err)
	}

	err = runner.Run(ctx, file)
	stdout.Flush()
	stderr.Flush()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if status, ok := interp.IsExitStatus(err); ok {
			return nil, &command.ExitError{Command: "script", Code: int(status)}
		}
		return nil, fmt.Errorf("running script: %w", err)
	}

	exports, err := readPairs(envPath)
	if err != nil {
		return nil, err
	}
	for k, v := range exports {
		sc.Export(k, v)
	}
	return readPairs(outputPath)
}

// readPairs parses `key=value` lines; blank lines are ignored.
func readPairs(p string) (map[string]string, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("malformed line %q in %s", line, filepath.Base(p))
		}
		out[k] = v
	}
	return out, scanner.Err()
}

// Register registers the handler with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("run", registry.Action("Runs a shell script.", OnRunScript))
}
