// Package print provides the `print` action, which writes a message and
// key/value pairs to the log. It is mostly useful for debugging pipelines.
package print

import (
	"context"

	"github.com/specialistvlad/releasegrid/internal/command"
	"github.com/specialistvlad/releasegrid/internal/ctxlog"
	"github.com/specialistvlad/releasegrid/internal/expr"
	"github.com/specialistvlad/releasegrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the print action.
type Input struct {
	Message string            `cty:"message"`
	Values  map[string]string `cty:"values"`
}

// OnRunPrint logs the message and every value in key order. Secret values
// of the job are masked.
func OnRunPrint(ctx context.Context, sc *registry.StepContext, input *Input) (map[string]string, error) {
	logger := ctxlog.FromContext(ctx)
	redactor := command.NewRedactor(sc.Masked...)

	if input.Message != "" {
		logger.Info(redactor.Apply(input.Message))
	}
	if input.Values == nil {
		return nil, nil
	}
	for _, k := range expr.SortedKeys(input.Values) {
		logger.Info("Value.", "key", k, "value", redactor.Apply(input.Values[k]))
	}
	return map[string]string{"message": redactor.Apply(input.Message)}, nil
}

// Register registers the handler with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("print", registry.Action("Logs a message and values.", OnRunPrint))
}
