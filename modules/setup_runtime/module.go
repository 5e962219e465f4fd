// Package setup_runtime provides the `setup_runtime` action. It locates an
// interpreter on the step's PATH whose version satisfies a semver
// constraint and exports it to the remaining steps.
package setup_runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/specialistvlad/releasegrid/internal/command"
	"github.com/specialistvlad/releasegrid/internal/ctxlog"
	"github.com/specialistvlad/releasegrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the setup_runtime action.
type Input struct {
	// Name selects the runtime, e.g. "python".
	Name string `cty:"name"`
	// Version is a constraint such as ">= 3.9" or "~3.12".
	Version string `cty:"version,required"`
	// Candidates are executable names tried in order. Defaults depend on Name.
	Candidates []string `cty:"candidates"`

	constraint *semver.Constraints
}

func (in *Input) SetDefaults() {
	in.Name = "python"
}

func (in *Input) Validate() error {
	c, err := semver.NewConstraint(in.Version)
	if err != nil {
		return fmt.Errorf("invalid version constraint %q: %w", in.Version, err)
	}
	in.constraint = c
	if len(in.Candidates) == 0 {
		in.Candidates = defaultCandidates(in.Name)
	}
	return nil
}

func defaultCandidates(name string) []string {
	switch name {
	case "python":
		return []string{"python3", "python"}
	default:
		return []string{name}
	}
}

var versionPattern = regexp.MustCompile(`\d+\.\d+(\.\d+)?`)

// ErrNoMatch is returned when no candidate satisfies the constraint.
var ErrNoMatch = errors.New("no matching runtime found")

// OnRunSetupRuntime probes each candidate with `--version`.
func OnRunSetupRuntime(ctx context.Context, sc *registry.StepContext, input *Input) (map[string]string, error) {
	logger := ctxlog.FromContext(ctx)
	pathEnv := lookupEnv(sc.Environ(), "PATH")

	var rejected []string
	for _, name := range input.Candidates {
		bin, ok := lookPath(name, pathEnv)
		if !ok {
			continue
		}
		res, err := command.Run(ctx, bin, []string{"--version"}, sc.CommandOptions(command.Quiet())...)
		if err != nil {
			rejected = append(rejected, fmt.Sprintf("%s (%v)", bin, err))
			continue
		}
		raw := versionPattern.FindString(res.Stdout + res.Stderr)
		v, err := semver.NewVersion(raw)
		if err != nil {
			rejected = append(rejected, fmt.Sprintf("%s (unparseable version %q)", bin, raw))
			continue
		}
		if !input.constraint.Check(v) {
			rejected = append(rejected, fmt.Sprintf("%s (%s)", bin, v))
			continue
		}

		logger.Info("Runtime selected.", "runtime", input.Name, "path", bin, "version", v.String())
		upper := strings.ToUpper(input.Name)
		sc.Export(upper+"_BIN", bin)
		sc.Export(upper+"_VERSION", v.String())
		return map[string]string{"path": bin, "version": v.String()}, nil
	}

	if len(rejected) == 0 {
		return nil, fmt.Errorf("%w: none of %s on PATH", ErrNoMatch, strings.Join(input.Candidates, ", "))
	}
	return nil, fmt.Errorf("%w for %s %q: %s", ErrNoMatch, input.Name, input.Version, strings.Join(rejected, "; "))
}

func lookupEnv(environ []string, key string) string {
	value := ""
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok && k == key {
			value = v
		}
	}
	return value
}

// lookPath searches pathEnv rather than the process PATH, since steps run
// with their own environment.
func lookPath(name, pathEnv string) (string, bool) {
	if strings.ContainsRune(name, filepath.Separator) {
		return name, isExecutable(name)
	}
	for _, dir := range filepath.SplitList(pathEnv) {
		if dir == "" {
			continue
		}
		p := filepath.Join(dir, name)
		if isExecutable(p) {
			return p, true
		}
	}
	return "", false
}

func isExecutable(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir() && info.Mode()&0o111 != 0
}

// Register registers the handler with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("setup_runtime", registry.Action("Selects an interpreter matching a version constraint.", OnRunSetupRuntime))
}
