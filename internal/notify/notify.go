// Package notify publishes job status changes of a run to an external
// listener. The only transport is socket.io; Noop is used when no endpoint
// is configured.
package notify

import (
	"context"
	"time"

	"github.com/specialistvlad/releasegrid/internal/node"
)

// EventName is the socket.io event carrying job status updates.
const EventName = "job_status"

// Event describes one state change of a job instance.
type Event struct {
	RunID    string    `json:"run_id"`
	Pipeline string    `json:"pipeline"`
	Instance string    `json:"instance"`
	Job      string    `json:"job"`
	Matrix   string    `json:"matrix,omitempty"`
	State    string    `json:"state"`
	Reason   string    `json:"reason,omitempty"`
	Error    string    `json:"error,omitempty"`
	Time     time.Time `json:"time"`
}

// Notifier delivers events. Notify must not block the caller for long and
// must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
	Close() error
}

// FromNode builds the event for the node's current state.
func FromNode(runID, pipeline string, n *node.Node) Event {
	ev := Event{
		RunID:    runID,
		Pipeline: pipeline,
		Instance: n.ID(),
		Job:      n.Job.Name,
		Matrix:   n.Matrix.Label(),
		State:    n.GetState().String(),
		Reason:   n.Reason,
		Time:     time.Now().UTC(),
	}
	if n.Error != nil {
		ev.Error = n.Error.Error()
	}
	return ev
}

// Noop discards every event.
type Noop struct{}

func (Noop) Notify(context.Context, Event) {}

func (Noop) Close() error { return nil }
