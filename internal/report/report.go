// Package report renders the outcome of a run, and the plan of one, as a
// terminal table.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/specialistvlad/releasegrid/internal/dag"
	"github.com/specialistvlad/releasegrid/internal/node"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))

	stateColors = map[node.State]lipgloss.Color{
		node.Succeeded: lipgloss.Color("#3FB950"),
		node.Failed:    lipgloss.Color("#FF6B6B"),
		node.Skipped:   lipgloss.Color("#AAAAAA"),
		node.Canceled:  lipgloss.Color("#D29922"),
	}
)

// Report is the summary of one run.
type Report struct {
	RunID       string
	Pipeline    string
	Trigger     string
	Permissions map[string]string
	Duration    time.Duration
	Result      *dag.Result
}

// Summary counts outcomes, e.g. "2 succeeded, 1 skipped".
func (r *Report) Summary() string {
	var parts []string
	for _, s := range []node.State{node.Succeeded, node.Failed, node.Skipped, node.Canceled} {
		if n := r.Result.Count(s); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, s))
		}
	}
	if len(parts) == 0 {
		return "nothing ran"
	}
	return strings.Join(parts, ", ")
}

// Render writes the report to w.
func Render(w io.Writer, r *Report) error {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("JOB", "STATE", "DURATION", "DETAIL").
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return s.Bold(true)
			}
			if col == 1 && row >= 0 && row < len(r.Result.Outcomes) {
				return s.Foreground(stateColors[r.Result.Outcomes[row].State])
			}
			return s
		})

	for _, o := range r.Result.Outcomes {
		t.Row(o.ID, o.State.String(), formatDuration(o.Duration), detail(o))
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Pipeline %s", r.Pipeline)))
	b.WriteString("\n")
	meta := fmt.Sprintf("run %s · trigger %s · took %s", r.RunID, r.Trigger, formatDuration(r.Duration))
	if len(r.Permissions) > 0 {
		meta += " · permissions " + formatPermissions(r.Permissions)
	}
	b.WriteString(mutedStyle.Render(meta))
	b.WriteString("\n")
	b.WriteString(t.Render())
	b.WriteString("\n")
	b.WriteString(r.Summary())
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func detail(o dag.Outcome) string {
	switch {
	case o.Error != nil && o.Reason != "":
		return o.Reason + ": " + firstLine(o.Error.Error())
	case o.Error != nil:
		return firstLine(o.Error.Error())
	default:
		return o.Reason
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(10 * time.Millisecond).String()
}

func formatPermissions(p map[string]string) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+p[k])
	}
	return strings.Join(parts, ",")
}
