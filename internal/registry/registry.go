package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// Module is the interface that all action modules implement to be registered.
type Module interface {
	Register(r *Registry)
}

// ActionFunc runs one step. The returned map becomes the step's outputs.
type ActionFunc func(ctx context.Context, sc *StepContext, input any) (map[string]string, error)

// RegisteredAction holds the compiled Go parts of an action.
type RegisteredAction struct {
	Description string
	NewInput    func() any
	Fn          ActionFunc
}

// Registry maps `uses` names to actions.
type Registry struct {
	actions map[string]*RegisteredAction
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{actions: make(map[string]*RegisteredAction)}
}

// RegisterAction registers an action under name.
func (r *Registry) RegisterAction(name string, action *RegisteredAction) {
	if _, exists := r.actions[name]; exists {
		panic(fmt.Sprintf("action with name '%s' already registered", name))
	}
	if action == nil || action.Fn == nil || action.NewInput == nil {
		panic(fmt.Sprintf("action '%s' must define NewInput and Fn", name))
	}
	slog.Debug("Registering action.", "name", name)
	r.actions[name] = action
}

// Action looks up a registered action.
func (r *Registry) Action(name string) (*RegisteredAction, bool) {
	a, ok := r.actions[name]
	return a, ok
}

// Names returns the registered action names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.actions))
	for n := range r.actions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Action wraps a typed action function. I is the input struct type; it may
// implement Defaulter and Validator.
func Action[I any](description string, fn func(ctx context.Context, sc *StepContext, in *I) (map[string]string, error)) *RegisteredAction {
	return &RegisteredAction{
		Description: description,
		NewInput:    func() any { return new(I) },
		Fn: func(ctx context.Context, sc *StepContext, input any) (map[string]string, error) {
			in, ok := input.(*I)
			if !ok {
				return nil, fmt.Errorf("unexpected input type %T", input)
			}
			return fn(ctx, sc, in)
		},
	}
}

// Defaulter is implemented by inputs that need non-zero defaults.
type Defaulter interface {
	SetDefaults()
}

// Validator is implemented by inputs that check themselves after decoding.
type Validator interface {
	Validate() error
}
