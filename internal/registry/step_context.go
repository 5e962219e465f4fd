package registry

import (
	"path/filepath"
	"sort"

	"github.com/go-git/go-billy/v5"

	"github.com/specialistvlad/releasegrid/internal/artifact"
	"github.com/specialistvlad/releasegrid/internal/command"
	"github.com/specialistvlad/releasegrid/internal/config"
	"github.com/specialistvlad/releasegrid/internal/trigger"
)

// StepContext is what an action may touch while it runs: its own job
// instance's workspace and environment, the artifact store, and the trigger.
type StepContext struct {
	// JobID identifies the job instance, e.g. "build[target=x86_64]".
	JobID  string
	Job    string
	Step   string
	Matrix config.MatrixEntry
	Runner string
	Event  trigger.Event

	// WorkspaceDir is the instance's private directory on disk and
	// Workspace the same directory as a billy filesystem.
	WorkspaceDir string
	Workspace    billy.Filesystem
	// SourceDir is the repository the run was started from.
	SourceDir string

	Artifacts artifact.Store

	// BaseEnv is the filtered process environment; Env holds pipeline, job
	// and step variables layered on top of it.
	BaseEnv []string
	Env     map[string]string
	// Masked lists secret values to hide in command output.
	Masked []string

	exports map[string]string
}

// Path resolves a workspace relative path to an absolute one.
func (sc *StepContext) Path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(sc.WorkspaceDir, filepath.FromSlash(rel))
}

// Environ renders the environment for a child process: BaseEnv, then Env
// in key order so later layers win.
func (sc *StepContext) Environ() []string {
	env := make([]string, 0, len(sc.BaseEnv)+len(sc.Env))
	env = append(env, sc.BaseEnv...)
	keys := make([]string, 0, len(sc.Env))
	for k := range sc.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+sc.Env[k])
	}
	return env
}

// Export sets a variable for every later step of the same job instance.
func (sc *StepContext) Export(key, value string) {
	if sc.exports == nil {
		sc.exports = make(map[string]string)
	}
	sc.exports[key] = value
	if sc.Env == nil {
		sc.Env = make(map[string]string)
	}
	sc.Env[key] = value
}

// Exports returns the variables exported by the step.
func (sc *StepContext) Exports() map[string]string {
	return sc.exports
}

// CommandOptions returns the options that run a tool inside this step: the
// workspace as working directory, the step environment and secret masking.
func (sc *StepContext) CommandOptions(extra ...command.Option) []command.Option {
	opts := []command.Option{
		command.WithDir(sc.WorkspaceDir),
		command.WithEnv(sc.Environ()),
		command.WithRedact(sc.Masked...),
	}
	return append(opts, extra...)
}
