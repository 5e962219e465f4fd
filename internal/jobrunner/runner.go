package jobrunner

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/specialistvlad/releasegrid/internal/artifact"
	"github.com/specialistvlad/releasegrid/internal/config"
	"github.com/specialistvlad/releasegrid/internal/ctxlog"
	"github.com/specialistvlad/releasegrid/internal/expr"
	"github.com/specialistvlad/releasegrid/internal/node"
	"github.com/specialistvlad/releasegrid/internal/registry"
	"github.com/specialistvlad/releasegrid/internal/secrets"
	"github.com/specialistvlad/releasegrid/internal/trigger"
)

// DefaultRunner is the runner label used when a job omits runs_on.
const DefaultRunner = "local"

// Config holds everything the runner shares between job instances.
type Config struct {
	Pipeline  *config.Pipeline
	Registry  *registry.Registry
	Event     trigger.Event
	Artifacts artifact.Store
	Secrets   secrets.Provider
	// WorkspaceRoot holds one directory per job instance.
	WorkspaceRoot string
	// SourceDir is the repository checked out by the checkout action.
	SourceDir string
	// Environ is the process environment; nil means os.Environ().
	Environ []string
}

// Runner implements dag.Runner for pipeline jobs.
type Runner struct {
	cfg     Config
	baseEnv []string
}

// New creates a Runner. The inherited environment is filtered once: every
// RELEASEGRID_SECRET_* variable and every variable named like a declared
// secret is removed, so secrets only reach a job through its own scope.
func New(cfg Config) *Runner {
	environ := cfg.Environ
	if environ == nil {
		environ = os.Environ()
	}
	if cfg.Secrets == nil {
		cfg.Secrets = secrets.NewEnvProvider()
	}
	declared := cfg.Pipeline.SecretNames()
	base := make([]string, 0, len(environ))
	for _, kv := range environ {
		key, _, _ := strings.Cut(kv, "=")
		if secrets.IsSecretEnv(key, declared) {
			continue
		}
		base = append(base, kv)
	}
	return &Runner{cfg: cfg, baseEnv: base}
}

// BaseEnv returns the filtered environment every job process inherits.
func (r *Runner) BaseEnv() []string {
	return append([]string(nil), r.baseEnv...)
}

// ShouldRun evaluates the job's `if`. The condition sees the trigger, the
// matrix entry and the pipeline env, never secrets.
func (r *Runner) ShouldRun(ctx context.Context, n *node.Node) (bool, error) {
	scope, err := r.jobScope(n, nil)
	if err != nil {
		return false, err
	}
	ok, err := expr.Bool(n.Job.If, scope.EvalContext(), true)
	if err != nil {
		return false, fmt.Errorf("evaluating if of job %q: %w", n.Job.Name, err)
	}
	ctxlog.FromContext(ctx).Debug("Evaluated job condition.", "job", n.Job.Name, "result", ok)
	return ok, nil
}

// Run executes the instance's steps sequentially. The first failing step
// fails the instance; later steps do not run.
func (r *Runner) Run(ctx context.Context, n *node.Node) error {
	ctx, logger := ctxlog.With(ctx, "job", n.Job.Name, "instance", n.ID())

	values, err := secrets.ResolveAll(ctx, r.cfg.Secrets, n.Job.Secrets)
	if err != nil {
		return err
	}
	masked := make([]string, 0, len(values))
	for _, name := range expr.SortedKeys(values) {
		masked = append(masked, values[name])
	}

	scope, err := r.jobScope(n, values)
	if err != nil {
		return err
	}

	dir, err := r.workspace(n)
	if err != nil {
		return err
	}
	scope.Job["workspace"] = dir

	jobEnv, err := expr.Strings(n.Job.Env, scope.EvalContext())
	if err != nil {
		return fmt.Errorf("evaluating env of job %q: %w", n.Job.Name, err)
	}
	maps.Copy(scope.Env, jobEnv)
	maps.Copy(scope.Env, map[string]string{
		"CI":                     "true",
		"RELEASEGRID_JOB":        n.Job.Name,
		"RELEASEGRID_INSTANCE":   n.ID(),
		"RELEASEGRID_RUNNER":     scope.Runner,
		"RELEASEGRID_REF":        r.cfg.Event.Ref,
		"RELEASEGRID_REF_NAME":   r.cfg.Event.RefName(),
		"RELEASEGRID_EVENT_NAME": r.cfg.Event.Name,
		"RELEASEGRID_WORKSPACE":  dir,
	})

	logger.Info("▶️ Starting job instance.", "workspace", dir, "runner", scope.Runner)
	for i, step := range n.Job.Steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("%d", i)
		}
		if err := r.runStep(ctx, n, step, name, scope, dir, masked); err != nil {
			return fmt.Errorf("step %q (%s): %w", name, step.Uses, err)
		}
	}
	logger.Info("✅ Job instance completed.")
	return nil
}

func (r *Runner) runStep(ctx context.Context, n *node.Node, step *config.Step, name string, scope *expr.Scope, dir string, masked []string) error {
	ctx, logger := ctxlog.With(ctx, "step", name)

	action, ok := r.cfg.Registry.Action(step.Uses)
	if !ok {
		return fmt.Errorf("unknown action %q", step.Uses)
	}

	ok, err := expr.Bool(step.If, scope.EvalContext(), true)
	if err != nil {
		return fmt.Errorf("evaluating if: %w", err)
	}
	if !ok {
		logger.Info("Skipping step.", "reason", "condition is false")
		return nil
	}

	stepEnv, err := expr.Strings(step.Env, scope.EvalContext())
	if err != nil {
		return fmt.Errorf("evaluating env: %w", err)
	}
	env := maps.Clone(scope.Env)
	maps.Copy(env, stepEnv)

	stepScope := *scope
	stepScope.Env = env
	with, err := expr.Values(step.With, stepScope.EvalContext())
	if err != nil {
		return err
	}
	input, err := registry.NewInput(action, with)
	if err != nil {
		return err
	}

	sc := &registry.StepContext{
		JobID:        n.ID(),
		Job:          n.Job.Name,
		Step:         name,
		Matrix:       n.Matrix,
		Runner:       scope.Runner,
		Event:        r.cfg.Event,
		WorkspaceDir: dir,
		Workspace:    osfs.New(dir),
		SourceDir:    r.cfg.SourceDir,
		Artifacts:    r.cfg.Artifacts,
		BaseEnv:      r.baseEnv,
		Env:          env,
		Masked:       masked,
	}

	logger.Info("▶️ Running step.", "uses", step.Uses)
	outputs, err := action.Fn(ctx, sc, input)
	if err != nil {
		return err
	}

	if step.Name != "" {
		scope.Steps[step.Name] = outputs
	}
	for k, v := range sc.Exports() {
		logger.Debug("Exported variable.", "key", k)
		scope.Env[k] = v
	}
	logger.Info("✅ Step completed.", "outputs", len(outputs))
	return nil
}

// jobScope builds the expression scope shared by a job's conditions and
// steps. Pipeline env is evaluated first and may not reference secrets.
func (r *Runner) jobScope(n *node.Node, secretValues map[string]string) (*expr.Scope, error) {
	scope := &expr.Scope{
		Trigger: r.cfg.Event.CtyValue(),
		Matrix:  n.Matrix.Value(),
		Job:     map[string]string{"name": n.Job.Name, "id": n.ID()},
		Env:     map[string]string{},
		Steps:   map[string]map[string]string{},
	}

	env, err := expr.Strings(r.cfg.Pipeline.Env, scope.EvalContext())
	if err != nil {
		return nil, fmt.Errorf("evaluating pipeline env: %w", err)
	}
	scope.Env = env

	runner, err := expr.String(n.Job.RunsOn, scope.EvalContext(), DefaultRunner)
	if err != nil {
		return nil, fmt.Errorf("evaluating runs_on of job %q: %w", n.Job.Name, err)
	}
	scope.Runner = runner
	scope.Secrets = secretValues
	return scope, nil
}

// RunsOn evaluates the runner label of an instance without resolving any
// secret.
func (r *Runner) RunsOn(n *node.Node) (string, error) {
	scope, err := r.jobScope(n, nil)
	if err != nil {
		return "", err
	}
	return scope.Runner, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// workspace creates the instance's private directory. Matrix siblings get
// distinct directories derived from their instance IDs.
func (r *Runner) workspace(n *node.Node) (string, error) {
	name := strings.Trim(unsafeChars.ReplaceAllString(n.ID(), "_"), "_")
	dir := filepath.Join(r.cfg.WorkspaceRoot, name)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("cleaning workspace: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating workspace: %w", err)
	}
	return dir, nil
}

// CheckActions reports every step whose `uses` is not registered.
func CheckActions(p *config.Pipeline, reg *registry.Registry) error {
	var unknown []string
	for _, j := range p.Jobs {
		for _, s := range j.Steps {
			if _, ok := reg.Action(s.Uses); !ok {
				unknown = append(unknown, fmt.Sprintf("job %q step %q uses unknown action %q", j.Name, s.Name, s.Uses))
			}
		}
	}
	if len(unknown) > 0 {
		return errors.New(strings.Join(unknown, "; "))
	}
	return nil
}
