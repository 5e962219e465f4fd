// Package env_vars provides the `env_vars` action. It exports variables to
// the remaining steps of the same job instance and reports the resulting
// environment as outputs.
package env_vars

import (
	"context"
	"fmt"
	"strings"

	"github.com/specialistvlad/releasegrid/internal/ctxlog"
	"github.com/specialistvlad/releasegrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the env_vars action.
type Input struct {
	Set map[string]string `cty:"set"`
	// Read lists variables of the step environment to copy into outputs.
	Read []string `cty:"read"`
}

// Validate rejects names a shell could not export.
func (in *Input) Validate() error {
	for k := range in.Set {
		if k == "" || strings.ContainsAny(k, "= \t\n") {
			return fmt.Errorf("invalid variable name %q", k)
		}
	}
	return nil
}

// OnRunEnvVars exports Set and returns the requested variables. Reading a
// variable that is not set yields an empty output.
func OnRunEnvVars(ctx context.Context, sc *registry.StepContext, input *Input) (map[string]string, error) {
	logger := ctxlog.FromContext(ctx)
	for k, v := range input.Set {
		logger.Debug("Exporting variable.", "key", k)
		sc.Export(k, v)
	}

	env := make(map[string]string)
	for _, kv := range sc.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	out := make(map[string]string, len(input.Read))
	for _, k := range input.Read {
		out[k] = env[k]
	}
	return out, nil
}

// Register registers the handler with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("env_vars", registry.Action("Exports variables to later steps.", OnRunEnvVars))
}
