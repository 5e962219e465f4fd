package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/releasegrid/internal/ctxlog"
	"github.com/specialistvlad/releasegrid/internal/dag"
	"github.com/specialistvlad/releasegrid/internal/jobrunner"
	"github.com/specialistvlad/releasegrid/internal/report"
)

// Gate outcomes shown by Plan.
const (
	GateRun     = "run"
	GateSkip    = "skip"
	GateUnknown = "unknown"
)

// Plan expands the pipeline into job instances and evaluates each job's
// condition against the trigger, then writes the plan to the output. No
// step is executed and no secret is resolved.
func (a *App) Plan(ctx context.Context) ([]report.PlanRow, error) {
	ctx = a.withLogger(ctx)
	logger := ctxlog.FromContext(ctx)

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

	runner := jobrunner.New(jobrunner.Config{Pipeline: p, Registry: a.registry, Event: ev})
	var rows []report.PlanRow
	for _, n := range g.Nodes() {
		row := report.PlanRow{Instance: n.ID(), Needs: n.Job.Needs, Gate: GateRun}

		runsOn, err := runner.RunsOn(n)
		if err != nil {
			logger.Debug("runs_on could not be evaluated.", "instance", n.ID(), "error", err)
			runsOn = "?"
		}
		row.RunsOn = runsOn

		ok, err := runner.ShouldRun(ctx, n)
		switch {
		case err != nil:
			logger.Debug("Condition could not be evaluated.", "instance", n.ID(), "error", err)
			row.Gate = GateUnknown
		case !ok:
			row.Gate = GateSkip
		}
		rows = append(rows, row)
	}

	label := fmt.Sprintf("%s (release tag: %t)", ev, ev.IsTag(ev.TagPrefix))
	if err := report.RenderPlan(a.outW, p.Name, label, rows); err != nil {
		return nil, err
	}
	return rows, nil
}
