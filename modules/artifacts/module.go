// Package artifacts provides the `upload_artifact` and `download_artifact`
// actions, which move files between a job instance's workspace and the
// run's artifact store.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/specialistvlad/releasegrid/internal/artifact"
	"github.com/specialistvlad/releasegrid/internal/ctxlog"
	"github.com/specialistvlad/releasegrid/internal/fsutil"
	"github.com/specialistvlad/releasegrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// UploadInput defines the arguments for upload_artifact.
type UploadInput struct {
	Name      string `cty:"name,required"`
	Path      string `cty:"path"`
	Overwrite bool   `cty:"overwrite"`
	// IfNoFilesFound is one of "error", "warn" or "ignore".
	IfNoFilesFound string `cty:"if_no_files_found"`
}

func (in *UploadInput) SetDefaults() {
	in.Path = "dist"
	in.IfNoFilesFound = "error"
}

func (in *UploadInput) Validate() error {
	if err := artifact.ValidateName(in.Name); err != nil {
		return err
	}
	switch in.IfNoFilesFound {
	case "error", "warn", "ignore":
	default:
		return fmt.Errorf("if_no_files_found must be error, warn or ignore, got %q", in.IfNoFilesFound)
	}
	return insideWorkspace(in.Path)
}

// DownloadInput defines the arguments for download_artifact. Exactly one of
// Name and Pattern is set.
type DownloadInput struct {
	Name    string `cty:"name"`
	Pattern string `cty:"pattern"`
	Path    string `cty:"path"`
	// MergeMultiple places every artifact's files directly in Path instead
	// of one sub-directory per artifact.
	MergeMultiple bool `cty:"merge_multiple"`
	// AllowEmpty turns a pattern without matches into a successful no-op.
	AllowEmpty bool `cty:"allow_empty"`
}

func (in *DownloadInput) SetDefaults() {
	in.Path = "."
}

func (in *DownloadInput) Validate() error {
	switch {
	case in.Name == "" && in.Pattern == "":
		return errors.New("one of name or pattern is required")
	case in.Name != "" && in.Pattern != "":
		return errors.New("name and pattern are mutually exclusive")
	case in.Name != "":
		if err := artifact.ValidateName(in.Name); err != nil {
			return err
		}
	default:
		if err := artifact.ValidatePattern(in.Pattern); err != nil {
			return err
		}
	}
	return insideWorkspace(in.Path)
}

func insideWorkspace(p string) error {
	if strings.HasPrefix(path.Clean(p), "..") {
		return fmt.Errorf("path %q escapes the workspace", p)
	}
	return nil
}

// OnRunUpload stores every file below Path under the artifact name.
func OnRunUpload(ctx context.Context, sc *registry.StepContext, input *UploadInput) (map[string]string, error) {
	logger := ctxlog.FromContext(ctx).With("artifact", input.Name)

	files, err := fsutil.ListFiles(sc.Workspace, input.Path)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", input.Path, err)
	}
	if len(files) == 0 {
		msg := fmt.Sprintf("no files found in %s", input.Path)
		switch input.IfNoFilesFound {
		case "ignore":
			return map[string]string{"count": "0"}, nil
		case "warn":
			logger.Warn(msg)
			return map[string]string{"count": "0"}, nil
		default:
			return nil, errors.New(msg)
		}
	}

	src, err := sc.Workspace.Chroot(input.Path)
	if err != nil {
		return nil, err
	}
	if err := sc.Artifacts.Upload(ctx, input.Name, src, files, artifact.Overwrite(input.Overwrite)); err != nil {
		return nil, err
	}
	logger.Info("Uploaded artifact.", "files", len(files))
	return map[string]string{"name": input.Name, "count": strconv.Itoa(len(files))}, nil
}

// OnRunDownload fetches one artifact by name or every artifact matching a
// pattern. A pattern without matches fails unless AllowEmpty is set.
func OnRunDownload(ctx context.Context, sc *registry.StepContext, input *DownloadInput) (map[string]string, error) {
	logger := ctxlog.FromContext(ctx)

	if err := sc.Workspace.MkdirAll(input.Path, 0o755); err != nil {
		return nil, err
	}
	dst, err := sc.Workspace.Chroot(input.Path)
	if err != nil {
		return nil, err
	}

	var downloaded map[string][]string
	if input.Name != "" {
		files, err := sc.Artifacts.Download(ctx, input.Name, dst)
		if err != nil {
			return nil, err
		}
		downloaded = map[string][]string{input.Name: files}
	} else {
		downloaded, err = artifact.DownloadMatching(ctx, sc.Artifacts, input.Pattern, dst, !input.MergeMultiple)
		if errors.Is(err, artifact.ErrNoMatch) && input.AllowEmpty {
			logger.Warn("No artifacts matched.", "pattern", input.Pattern)
			return map[string]string{"artifacts": "0", "count": "0", "path": sc.Path(input.Path)}, nil
		}
		if err != nil {
			return nil, err
		}
	}

	count := 0
	names := make([]string, 0, len(downloaded))
	for name, files := range downloaded {
		names = append(names, name)
		count += len(files)
	}
	sort.Strings(names)
	logger.Info("Downloaded artifacts.", "artifacts", len(downloaded), "files", count)
	return map[string]string{
		"artifacts": strconv.Itoa(len(downloaded)),
		"count":     strconv.Itoa(count),
		"names":     strings.Join(names, ","),
		"path":      sc.Path(input.Path),
	}, nil
}

// Register registers both actions with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("upload_artifact", registry.Action("Stores workspace files as a named artifact.", OnRunUpload))
	r.RegisterAction("download_artifact", registry.Action("Fetches artifacts into the workspace.", OnRunDownload))
}
