package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/hashicorp/hcl/v2"

	"github.com/specialistvlad/releasegrid/internal/config"
	"github.com/specialistvlad/releasegrid/internal/ctxlog"
	"github.com/specialistvlad/releasegrid/internal/dag"
	"github.com/specialistvlad/releasegrid/internal/hcl_adapter"
	"github.com/specialistvlad/releasegrid/internal/jobrunner"
	"github.com/specialistvlad/releasegrid/internal/trigger"
	"github.com/specialistvlad/releasegrid/internal/yaml_adapter"
)

// ErrConfig marks errors caused by the pipeline file or the invocation
// rather than by a job.
var ErrConfig = errors.New("configuration error")

// loaderFor picks the pipeline syntax from the file extension. Directories
// are read as HCL.
func loaderFor(path string) config.Loader {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml_adapter.NewLoader()
	default:
		return hcl_adapter.NewLoader()
	}
}

// Load reads and validates the pipeline and checks every step against the
// registry.
func (a *App) Load(ctx context.Context) (*config.Pipeline, error) {
	ctx = a.withLogger(ctx)
	logger := ctxlog.FromContext(ctx)

	p, err := loaderFor(a.config.PipelinePath).Load(ctx, a.config.PipelinePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if err := jobrunner.CheckActions(p, a.registry); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if a.config.FailFast {
		for _, j := range p.Jobs {
			j.FailFast = true
		}
	}
	for _, w := range lint(p) {
		logger.Warn(w)
	}
	logger.Debug("Pipeline loaded.", "pipeline", p.Name, "jobs", len(p.Jobs), "source", p.Source)
	return p, nil
}

// Validate loads the pipeline and builds its graph without running anything.
func (a *App) Validate(ctx context.Context) error {
	ctx = a.withLogger(ctx)
	p, err := a.Load(ctx)
	if err != nil {
		return err
	}
	if _, err := dag.Build(ctx, p); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return nil
}

// lint reports artifact names that would collide between matrix siblings.
func lint(p *config.Pipeline) []string {
	var warnings []string
	for _, j := range p.Jobs {
		if j.Matrix == nil || len(j.Matrix.Entries()) < 2 {
			continue
		}
		for _, s := range j.Steps {
			if s.Uses != "upload_artifact" {
				continue
			}
			name, ok := s.With["name"]
			if !ok || referencesMatrix(name.Variables()) {
				continue
			}
			warnings = append(warnings, fmt.Sprintf(
				"job %q step %q: artifact name does not reference matrix, instances of the job will collide", j.Name, s.Name))
		}
	}
	return warnings
}

func referencesMatrix(vars []hcl.Traversal) bool {
	for _, v := range vars {
		if v.RootName() == "matrix" {
			return true
		}
	}
	return false
}

// resolveEvent builds the trigger from --event and --ref, or from the
// repository when no ref was given.
func (a *App) resolveEvent(ctx context.Context, p *config.Pipeline) (trigger.Event, error) {
	name := a.config.Event
	if !p.Trigger.Accepts(name) {
		return trigger.Event{}, fmt.Errorf("%w: pipeline %q does not accept event %q", ErrConfig, p.Name, name)
	}
	if a.config.Ref != "" {
		return trigger.Event{
			Name:      name,
			Ref:       trigger.NormalizeRef(a.config.Ref, isVersion(a.config.Ref)),
			TagPrefix: p.Trigger.TagPrefix,
		}, nil
	}
	ev, err := trigger.FromRepository(ctx, name, a.config.RepoDir)
	if err != nil {
		return trigger.Event{}, fmt.Errorf("%w: %w (use --ref to set it)", ErrConfig, err)
	}
	ev.TagPrefix = p.Trigger.TagPrefix
	return ev, nil
}

// isVersion treats a short ref such as "v1.2.0" as a tag name.
func isVersion(ref string) bool {
	_, err := semver.StrictNewVersion(strings.TrimPrefix(ref, "v"))
	return err == nil
}
