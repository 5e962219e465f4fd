// Package checkout provides the `checkout` action, which materializes the
// source tree in the job instance's workspace. Without a repository it
// copies the local source directory; with one it clones it with go-git.
package checkout

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/specialistvlad/releasegrid/internal/ctxlog"
	"github.com/specialistvlad/releasegrid/internal/fsutil"
	"github.com/specialistvlad/releasegrid/internal/registry"
	"github.com/specialistvlad/releasegrid/internal/trigger"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the checkout action.
type Input struct {
	Repository string `cty:"repository"`
	Ref        string `cty:"ref"`
	Path       string `cty:"path"`
	Depth      int    `cty:"depth"`
}

func (in *Input) SetDefaults() {
	in.Path = "."
	in.Depth = 1
}

func (in *Input) Validate() error {
	if strings.HasPrefix(path.Clean(in.Path), "..") {
		return fmt.Errorf("path %q escapes the workspace", in.Path)
	}
	return nil
}

// OnRunCheckout copies or clones the source tree into the workspace.
func OnRunCheckout(ctx context.Context, sc *registry.StepContext, input *Input) (map[string]string, error) {
	if input.Repository == "" {
		return copyLocal(ctx, sc, input)
	}
	return clone(ctx, sc, input)
}

// copyLocal copies the run's source directory, leaving out .git.
func copyLocal(ctx context.Context, sc *registry.StepContext, input *Input) (map[string]string, error) {
	logger := ctxlog.FromContext(ctx)
	if sc.SourceDir == "" {
		return nil, fmt.Errorf("no source directory configured and no repository given")
	}

	src := osfs.New(sc.SourceDir)
	files, err := fsutil.CopyTree(src, ".", sc.Workspace, input.Path, func(rel string) bool {
		return rel == ".git" || strings.HasPrefix(rel, ".git/")
	})
	if err != nil {
		return nil, fmt.Errorf("copying source tree: %w", err)
	}
	logger.Info("Copied source tree.", "files", len(files), "from", sc.SourceDir)

	return map[string]string{
		"path":   sc.Path(input.Path),
		"commit": sc.Event.SHA,
		"ref":    sc.Event.Ref,
	}, nil
}

func clone(ctx context.Context, sc *registry.StepContext, input *Input) (map[string]string, error) {
	logger := ctxlog.FromContext(ctx)

	ref := input.Ref
	if ref == "" {
		ref = sc.Event.Ref
	}
	opts := &git.CloneOptions{
		URL:          input.Repository,
		Depth:        input.Depth,
		SingleBranch: ref != "",
		Tags:         git.NoTags,
	}
	if ref != "" {
		opts.ReferenceName = plumbing.ReferenceName(trigger.NormalizeRef(ref, false))
	}

	dest := sc.Path(input.Path)
	logger.Info("Cloning repository.", "url", input.Repository, "ref", ref)
	repo, err := git.PlainCloneContext(ctx, dest, false, opts)
	if err != nil {
		return nil, fmt.Errorf("cloning %s: %w", input.Repository, err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD of clone: %w", err)
	}
	return map[string]string{
		"path":   dest,
		"commit": head.Hash().String(),
		"ref":    head.Name().String(),
	}, nil
}

// Register registers the handler with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("checkout", registry.Action("Materializes the source tree in the workspace.", OnRunCheckout))
}
