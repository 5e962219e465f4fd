package dag

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/specialistvlad/releasegrid/internal/node"
)

// Outcome is the final state of one job instance.
type Outcome struct {
	ID       string
	Job      string
	Matrix   string
	State    node.State
	Reason   string
	Error    error
	Duration time.Duration
}

// Result collects the outcomes of a run in graph order.
type Result struct {
	Outcomes []Outcome
	canceled error
}

func newResult(nodes []*node.Node, canceled error) *Result {
	r := &Result{canceled: canceled}
	for _, n := range nodes {
		r.Outcomes = append(r.Outcomes, Outcome{
			ID:       n.ID(),
			Job:      n.Job.Name,
			Matrix:   n.Matrix.Label(),
			State:    n.GetState(),
			Reason:   n.Reason,
			Error:    n.Error,
			Duration: n.Duration(),
		})
	}
	return r
}

// Count returns the number of instances that ended in state s.
func (r *Result) Count(s node.State) int {
	count := 0
	for _, o := range r.Outcomes {
		if o.State == s {
			count++
		}
	}
	return count
}

// Outcome returns the outcome of the instance with the given ID.
func (r *Result) Outcome(id string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.ID == id {
			return o, true
		}
	}
	return Outcome{}, false
}

// Err returns nil when no instance failed. Skipped instances are not
// failures. The returned error wraps the first failure's cause.
func (r *Result) Err() error {
	var failed []string
	var rootCause error
	for _, o := range r.Outcomes {
		if o.State != node.Failed {
			continue
		}
		failed = append(failed, o.ID)
		if rootCause == nil {
			rootCause = o.Error
		}
	}
	if len(failed) > 0 {
		if rootCause == nil {
			rootCause = errors.New("job failed")
		}
		return fmt.Errorf("execution failed for %s: %w", strings.Join(failed, ", "), rootCause)
	}
	if r.canceled != nil && r.Count(node.Canceled) > 0 {
		return fmt.Errorf("run canceled: %w", r.canceled)
	}
	return nil
}
