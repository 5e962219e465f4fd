package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// PlanRow describes one job instance before anything runs.
type PlanRow struct {
	Instance string
	RunsOn   string
	Needs    []string
	// Gate is "run", "skip" or "unknown" when the condition depends on
	// values only known at run time.
	Gate string
}

// RenderPlan writes the expanded job instances of a pipeline to w.
func RenderPlan(w io.Writer, pipeline, trigger string, rows []PlanRow) error {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("JOB", "RUNS ON", "NEEDS", "GATE").
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return s.Bold(true)
			}
			return s
		})
	for _, r := range rows {
		needs := strings.Join(r.Needs, ", ")
		if needs == "" {
			needs = "-"
		}
		t.Row(r.Instance, r.RunsOn, needs, r.Gate)
	}

	out := titleStyle.Render(fmt.Sprintf("Plan for %s", pipeline)) + "\n" +
		mutedStyle.Render("trigger "+trigger) + "\n" +
		t.Render() + "\n"
	_, err := io.WriteString(w, out)
	return err
}
