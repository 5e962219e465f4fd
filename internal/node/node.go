// Package node defines the vertex of the execution graph: one instance of a
// job, i.e. a job combined with one entry of its matrix.
package node

import (
	"sync/atomic"
	"time"

	"github.com/specialistvlad/releasegrid/internal/config"
)

// State represents the execution state of a job instance.
type State int32

const (
	// Pending indicates the instance is waiting for the jobs it needs.
	Pending State = iota
	// Running indicates a worker is executing the instance's steps.
	Running
	// Succeeded indicates every step finished without error.
	Succeeded
	// Failed indicates a step, the condition or the setup returned an error.
	Failed
	// Skipped indicates the instance never ran: its condition was false or
	// a job it needs did not succeed. Skipped is not a failure.
	Skipped
	// Canceled indicates the instance was stopped by fail_fast or by the
	// run being interrupted.
	Canceled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s >= Succeeded
}

// Node is one job instance.
type Node struct {
	id     string
	Job    *config.Job
	Matrix config.MatrixEntry

	// Deps and Dependents are maintained by the graph.
	Deps       []*Node
	Dependents []*Node

	// Written by the worker that owns the node, read after it finished.
	Error    error
	Reason   string
	Started  time.Time
	Finished time.Time

	depCount atomic.Int32
	state    atomic.Int32
}

// New creates a pending node for one matrix entry of job.
func New(job *config.Job, entry config.MatrixEntry) *Node {
	return &Node{id: FormatID(job.Name, entry), Job: job, Matrix: entry}
}

// FormatID names an instance "job" or "job[key=value,...]".
func FormatID(job string, entry config.MatrixEntry) string {
	if entry.IsEmpty() {
		return job
	}
	return job + "[" + entry.Label() + "]"
}

// ID returns the instance name.
func (n *Node) ID() string {
	return n.id
}

// SetDepCount stores the number of unmet dependencies.
func (n *Node) SetDepCount(count int32) {
	n.depCount.Store(count)
}

// DepCount atomically returns the current number of unmet dependencies.
func (n *Node) DepCount() int32 {
	return n.depCount.Load()
}

// DecrementDepCount atomically decrements the dependency counter and returns the new value.
func (n *Node) DecrementDepCount() int32 {
	return n.depCount.Add(-1)
}

// SetState atomically sets the node's execution state.
func (n *Node) SetState(s State) {
	n.state.Store(int32(s))
}

// GetState atomically retrieves the node's execution state.
func (n *Node) GetState() State {
	return State(n.state.Load())
}

// Duration is the wall time between start and finish, zero if the node
// never ran.
func (n *Node) Duration() time.Duration {
	if n.Started.IsZero() || n.Finished.IsZero() {
		return 0
	}
	return n.Finished.Sub(n.Started)
}
