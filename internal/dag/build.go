package dag

import (
	"context"
	"fmt"

	"github.com/specialistvlad/releasegrid/internal/config"
	"github.com/specialistvlad/releasegrid/internal/ctxlog"
	"github.com/specialistvlad/releasegrid/internal/node"
)

// Build expands every job into its matrix instances and links each instance
// to all instances of the jobs it needs, so a fan-out job followed by a
// single job forms a fan-in.
func Build(ctx context.Context, p *config.Pipeline) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	g := New()

	for _, job := range p.Jobs {
		for _, entry := range job.Matrix.Entries() {
			if err := g.AddNode(node.New(job, entry)); err != nil {
				return nil, err
			}
		}
	}

	for _, job := range p.Jobs {
		for _, need := range job.Needs {
			upstream := g.Instances(need)
			if len(upstream) == 0 {
				return nil, fmt.Errorf("job %q needs unknown job %q", job.Name, need)
			}
			for _, to := range g.Instances(job.Name) {
				for _, from := range upstream {
					if err := g.AddEdge(from.ID(), to.ID()); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	if err := g.DetectCycles(); err != nil {
		return nil, err
	}

	for _, n := range g.Nodes() {
		n.SetDepCount(int32(len(n.Deps)))
	}
	logger.Debug("Built execution graph.", "instances", len(g.order), "jobs", len(p.Jobs))
	return g, nil
}
