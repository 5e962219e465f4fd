package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/specialistvlad/releasegrid/internal/artifact"
	"github.com/specialistvlad/releasegrid/internal/ctxlog"
	"github.com/specialistvlad/releasegrid/internal/dag"
	"github.com/specialistvlad/releasegrid/internal/jobrunner"
	"github.com/specialistvlad/releasegrid/internal/node"
	"github.com/specialistvlad/releasegrid/internal/notify"
	"github.com/specialistvlad/releasegrid/internal/report"
	"github.com/specialistvlad/releasegrid/internal/secrets"
)

// Run executes the pipeline once and returns its report. The returned error
// is non-nil when the pipeline could not start (wrapping ErrConfig for
// invalid input) or when any job instance failed; the report is returned in
// the latter case too.
func (a *App) Run(ctx context.Context) (*report.Report, error) {
	start := time.Now()
	runID := uuid.NewString()
	ctx, logger := ctxlog.With(a.withLogger(ctx), "run_id", runID)

	p, err := a.Load(ctx)
	if err != nil {
		return nil, err
	}
	ev, err := a.resolveEvent(ctx, p)
	if err != nil {
		return nil, err
	}
	g, err := dag.Build(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	workspace, cleanup, err := a.workspace()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	location := a.config.Artifacts
	if location == "" {
		location = filepath.Join(workspace, "artifacts")
	}
	store, err := artifact.OpenRun(ctx, location, runID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	provider, err := secrets.Open(ctx, a.config.Secrets)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	notifier, err := a.notifier(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := notifier.Close(); err != nil {
			logger.Warn("Closing notifier failed.", "error", err)
		}
	}()

	nodes := g.Nodes()
	health := &healthCheck{state: healthState{RunID: runID, Pipeline: p.Name, Total: len(nodes)}}
	if err := a.startHealthCheckServer(health); err != nil {
		return nil, err
	}
	defer a.closeHealthCheckServer()

	sourceDir, err := filepath.Abs(a.config.RepoDir)
	if err != nil {
		return nil, fmt.Errorf("resolving repository directory: %w", err)
	}
	runner := jobrunner.New(jobrunner.Config{
		Pipeline:      p,
		Registry:      a.registry,
		Event:         ev,
		Artifacts:     store,
		Secrets:       provider,
		WorkspaceRoot: filepath.Join(workspace, "jobs"),
		SourceDir:     sourceDir,
	})

	observer := func(n *node.Node) {
		if n.GetState().Terminal() {
			health.finished.Add(1)
		}
		notifier.Notify(ctx, notify.FromNode(runID, p.Name, n))
	}
	executor := dag.NewExecutor(g, runner,
		dag.WithWorkers(a.config.WorkerCount),
		dag.WithObserver(observer),
	)

	logger.Info("🚀 Starting run.", "pipeline", p.Name, "trigger", ev.String(), "instances", len(nodes), "workers", a.config.WorkerCount)
	result := executor.Run(ctx)

	rep := &report.Report{
		RunID:       runID,
		Pipeline:    p.Name,
		Trigger:     ev.String(),
		Permissions: p.Permissions,
		Duration:    time.Since(start),
		Result:      result,
	}
	logger.Info("🏁 Run finished.", "summary", rep.Summary(), "duration", rep.Duration)
	if err := report.Render(a.outW, rep); err != nil {
		logger.Warn("Rendering report failed.", "error", err)
	}
	return rep, result.Err()
}

// workspace returns the run's working directory. A directory created here
// is removed by the returned cleanup; a configured one is kept.
func (a *App) workspace() (string, func(), error) {
	if dir := a.config.WorkspaceDir; dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", nil, fmt.Errorf("resolving workspace: %w", err)
		}
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return "", nil, fmt.Errorf("creating workspace: %w", err)
		}
		return abs, func() {}, nil
	}
	dir, err := os.MkdirTemp("", "releasegrid-*")
	if err != nil {
		return "", nil, fmt.Errorf("creating workspace: %w", err)
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil {
			a.logger.Warn("Removing workspace failed.", "dir", dir, "error", err)
		}
	}, nil
}

func (a *App) notifier(ctx context.Context) (notify.Notifier, error) {
	if a.config.NotifyURL == "" {
		return notify.Noop{}, nil
	}
	n, err := notify.DialSocketIO(ctx, a.config.NotifyURL, notify.SocketIOOptions{})
	if err != nil {
		return nil, fmt.Errorf("connecting notifier: %w", err)
	}
	return n, nil
}
