// Package build_package provides the `build_package` action. It delegates
// package construction to an external build tool (maturin by default) and
// checks that the tool left files in the output directory.
package build_package

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/specialistvlad/releasegrid/internal/command"
	"github.com/specialistvlad/releasegrid/internal/ctxlog"
	"github.com/specialistvlad/releasegrid/internal/fsutil"
	"github.com/specialistvlad/releasegrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the build_package action.
type Input struct {
	Tool     string   `cty:"tool"`
	Target   string   `cty:"target"`
	Release  bool     `cty:"release"`
	OutDir   string   `cty:"out_dir"`
	Manifest string   `cty:"manifest"`
	Args     []string `cty:"args"`
	// Sccache routes rustc through the sccache compilation cache.
	Sccache bool `cty:"sccache"`
}

func (in *Input) SetDefaults() {
	in.Tool = "maturin"
	in.Release = true
	in.OutDir = "dist"
}

func (in *Input) Validate() error {
	if in.OutDir == "" || strings.HasPrefix(path.Clean(in.OutDir), "..") {
		return fmt.Errorf("out_dir %q must be inside the workspace", in.OutDir)
	}
	return nil
}

// Command returns the argument list passed to the tool.
func (in *Input) Command() []string {
	args := []string{"build"}
	if in.Release {
		args = append(args, "--release")
	}
	if in.Target != "" {
		args = append(args, "--target", in.Target)
	}
	args = append(args, "--out", in.OutDir)
	if in.Manifest != "" {
		args = append(args, "--manifest-path", in.Manifest)
	}
	return append(args, in.Args...)
}

// OnRunBuildPackage runs the build tool in the workspace. The step succeeds
// only if the tool exits zero and the output directory holds files.
func OnRunBuildPackage(ctx context.Context, sc *registry.StepContext, input *Input) (map[string]string, error) {
	logger := ctxlog.FromContext(ctx)

	var opts []command.Option
	if input.Sccache {
		env := append(sc.Environ(), "RUSTC_WRAPPER=sccache", "SCCACHE_DIR="+sc.Path(".sccache"))
		opts = append(opts, command.WithEnv(env))
	}

	args := input.Command()
	logger.Info("Running build tool.", "tool", input.Tool, "args", strings.Join(args, " "))
	if _, err := command.Run(ctx, input.Tool, args, sc.CommandOptions(opts...)...); err != nil {
		return nil, err
	}

	files, err := fsutil.ListFiles(sc.Workspace, input.OutDir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", input.OutDir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s exited successfully but produced no files in %s", input.Tool, input.OutDir)
	}
	logger.Info("Build produced packages.", "count", len(files), "files", strings.Join(files, ", "))

	return map[string]string{
		"out_dir": sc.Path(input.OutDir),
		"files":   strings.Join(files, ","),
		"count":   strconv.Itoa(len(files)),
	}, nil
}

// Register registers the handler with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("build_package", registry.Action("Builds platform packages with an external tool.", OnRunBuildPackage))
}
