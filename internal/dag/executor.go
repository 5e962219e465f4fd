package dag

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/specialistvlad/releasegrid/internal/ctxlog"
	"github.com/specialistvlad/releasegrid/internal/node"
)

// Runner executes a single job instance.
type Runner interface {
	// ShouldRun evaluates the job's `if` condition for the instance.
	ShouldRun(ctx context.Context, n *node.Node) (bool, error)
	// Run executes the instance's steps.
	Run(ctx context.Context, n *node.Node) error
}

// Observer is notified every time an instance changes state.
type Observer func(n *node.Node)

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithObserver registers a state change observer. Observers are called from
// worker goroutines and must be concurrency-safe.
func WithObserver(o Observer) ExecutorOption {
	return func(e *Executor) {
		e.observers = append(e.observers, o)
	}
}

// WithWorkers sets the number of instances executed in parallel.
func WithWorkers(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.numWorkers = n
		}
	}
}

// Executor runs a graph with a pool of workers.
type Executor struct {
	graph      *Graph
	runner     Runner
	numWorkers int
	observers  []Observer
	wg         sync.WaitGroup

	// Per-job contexts, present only for fail_fast jobs.
	jobCtx     map[string]context.Context
	jobCancels map[string]context.CancelCauseFunc
}

// NewExecutor creates an executor for g. The worker count defaults to the
// number of CPUs.
func NewExecutor(g *Graph, runner Runner, opts ...ExecutorOption) *Executor {
	e := &Executor{
		graph:      g,
		runner:     runner,
		numWorkers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes every instance of the graph and returns the outcome of each.
// A failing instance never stops independent work; only its fail_fast
// siblings and the instances that need it are affected.
func (e *Executor) Run(ctx context.Context) *Result {
	logger := ctxlog.FromContext(ctx)
	nodes := e.graph.Nodes()

	e.jobCtx = make(map[string]context.Context)
	e.jobCancels = make(map[string]context.CancelCauseFunc)
	for _, n := range nodes {
		if !n.Job.FailFast {
			continue
		}
		if _, ok := e.jobCtx[n.Job.Name]; ok {
			continue
		}
		jobCtx, cancel := context.WithCancelCause(ctx)
		e.jobCtx[n.Job.Name] = jobCtx
		e.jobCancels[n.Job.Name] = cancel
	}
	defer func() {
		for _, cancel := range e.jobCancels {
			cancel(nil)
		}
	}()

	readyChan := make(chan *node.Node, len(nodes))
	for _, n := range nodes {
		if n.DepCount() == 0 {
			logger.Debug("Found root node.", "nodeID", n.ID())
			readyChan <- n
		}
	}

	e.wg.Add(len(nodes))
	workers := min(e.numWorkers, max(len(nodes), 1))
	logger.Debug("Starting worker pool.", "workers", workers)
	for i := 0; i < workers; i++ {
		go e.worker(ctx, readyChan, i)
	}

	e.wg.Wait()
	close(readyChan)
	logger.Debug("All job instances completed.")

	return newResult(nodes, ctx.Err())
}

func (e *Executor) worker(ctx context.Context, readyChan chan *node.Node, workerID int) {
	logger := ctxlog.FromContext(ctx)
	for n := range readyChan {
		workerLogger := logger.With("workerID", workerID, "nodeID", n.ID())
		e.execute(ctxlog.WithLogger(ctx, workerLogger), n)

		for _, dependent := range n.Dependents {
			if dependent.DecrementDepCount() == 0 {
				workerLogger.Debug("Unlocking dependent node.", "dependentID", dependent.ID())
				readyChan <- dependent
			}
		}
		e.wg.Done()
	}
}

// execute decides the outcome of a single instance whose dependencies are
// all terminal.
func (e *Executor) execute(ctx context.Context, n *node.Node) {
	logger := ctxlog.FromContext(ctx)

	if err := ctx.Err(); err != nil {
		e.finish(n, node.Canceled, "run canceled", err)
		return
	}

	if dep := firstUnsuccessful(n.Deps); dep != nil {
		reason := fmt.Sprintf("needed job instance %s %s", dep.ID(), dep.GetState())
		logger.Info("Skipping job instance.", "reason", reason)
		e.finish(n, node.Skipped, reason, nil)
		return
	}

	jobCtx := ctx
	if c, ok := e.jobCtx[n.Job.Name]; ok {
		jobCtx = c
	}
	if jobCtx.Err() != nil {
		e.finish(n, node.Canceled, cancelReason(jobCtx), nil)
		return
	}

	ok, err := e.runner.ShouldRun(jobCtx, n)
	if err != nil {
		logger.Error("Evaluating job condition failed.", "error", err)
		e.finish(n, node.Failed, "condition error", err)
		e.failFast(n)
		return
	}
	if !ok {
		logger.Info("Skipping job instance.", "reason", "condition is false")
		e.finish(n, node.Skipped, "condition is false", nil)
		return
	}

	n.Started = time.Now()
	e.transition(n, node.Running)
	logger.Info("Job instance started.")

	runCtx := jobCtx
	if n.Job.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(jobCtx, n.Job.Timeout)
		defer cancel()
	}

	err = e.runner.Run(runCtx, n)
	switch {
	case err == nil:
		logger.Info("Job instance succeeded.", "duration", time.Since(n.Started))
		e.finish(n, node.Succeeded, "", nil)
	case jobCtx.Err() != nil:
		logger.Warn("Job instance canceled.", "error", err)
		e.finish(n, node.Canceled, cancelReason(jobCtx), err)
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		err = fmt.Errorf("timed out after %s: %w", n.Job.Timeout, err)
		logger.Error("Job instance timed out.", "error", err)
		e.finish(n, node.Failed, "timeout", err)
		e.failFast(n)
	default:
		logger.Error("Job instance failed.", "error", err)
		e.finish(n, node.Failed, "", err)
		e.failFast(n)
	}
}

// failFast cancels the remaining instances of n's job when the job opts in.
func (e *Executor) failFast(n *node.Node) {
	if cancel, ok := e.jobCancels[n.Job.Name]; ok {
		cancel(fmt.Errorf("fail_fast: %s failed", n.ID()))
	}
}

func (e *Executor) finish(n *node.Node, s node.State, reason string, err error) {
	n.Finished = time.Now()
	n.Reason = reason
	n.Error = err
	e.transition(n, s)
}

func (e *Executor) transition(n *node.Node, s node.State) {
	n.SetState(s)
	for _, o := range e.observers {
		o(n)
	}
}

func cancelReason(ctx context.Context) string {
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause.Error()
	}
	return "run canceled"
}

// firstUnsuccessful returns the dependency with the lowest ID that did not
// succeed, so the reported reason is deterministic.
func firstUnsuccessful(deps []*node.Node) *node.Node {
	var bad []*node.Node
	for _, d := range deps {
		if d.GetState() != node.Succeeded {
			bad = append(bad, d)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	slices.SortFunc(bad, func(a, b *node.Node) int {
		return strings.Compare(a.ID(), b.ID())
	})
	return bad[0]
}
